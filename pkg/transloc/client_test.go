package transloc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubZips struct {
	data []byte
	url  string
	err  error
}

func (s *stubZips) Get(ctx context.Context, url string) ([]byte, error) {
	s.url = url
	return s.data, s.err
}

func liveFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/stops", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_routes"))
		assert.Equal(t, "643", r.URL.Query().Get("agencies"))
		fmt.Fprint(w, `{
			"routes": [{"id": 100, "stops": [1, 2]}],
			"stops": [
				{"id": 2, "code": "S02", "name": "Library", "position": [43.086, -77.671]},
				{"id": 1, "code": "S01", "name": "Main Gate", "position": [43.084, -77.674]},
				{"id": 3, "code": "S03", "name": "Elsewhere", "position": [43.09, -77.68]}
			]
		}`)
	})
	mux.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"routes": [{"id": 100, "agency_id": 643, "long_name": "Campus Loop", "short_name": "A", "is_active": true}],
			"success": true
		}`)
	})
	mux.HandleFunc("/vehicle_statuses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_arrivals"))
		fmt.Fprint(w, `{
			"vehicles": [
				{"id": 66, "call_name": "Bus 66", "position": [43.085, -77.672], "heading": 90, "speed": 25, "timestamp": 1710507600000}
			],
			"arrivals": [
				{"agency_id": 643, "call_name": "Bus 66", "route_id": 100, "stop_id": 1, "timestamp": 1710507900, "type": "vehicle-based", "vehicle_id": 66, "distance": 120.5}
			]
		}`)
	})
	mux.HandleFunc("/announcements", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("contents"))
		fmt.Fprint(w, `{
			"announcements": [
				{"id": 9001, "agency_id": 643, "title": "Detour", "html": "<p>Detour on Campus Loop</p>", "start_at": "2024-03-15T08:00:00-04:00", "urgent": false, "has_content": true}
			],
			"success": true
		}`)
	})
	return httptest.NewServer(mux)
}

func TestSnapshot(t *testing.T) {
	server := liveFeedServer(t)
	defer server.Close()

	client := New(server.URL, server.URL+"/gtfs", &stubZips{}, 5*time.Second, testLogger())

	snap, err := client.Snapshot(context.Background(), 643)
	require.NoError(t, err)

	route, ok := snap.Routes[100]
	require.True(t, ok)
	assert.Equal(t, "Campus Loop", route.LongName)

	// Only the stops on the thin route, in stops-endpoint order.
	require.Len(t, route.Stops, 2)
	assert.Equal(t, uint64(2), route.Stops[0].ID)
	assert.Equal(t, uint64(1), route.Stops[1].ID)
	assert.Equal(t, "S01", route.Stops[1].Code)

	vehicle, ok := snap.VehiclesByID[66]
	require.True(t, ok)
	assert.Equal(t, "Bus 66", vehicle.CallName)
	assert.Equal(t, uint64(1710507600000), vehicle.TimestampMS)
	assert.Equal(t, 25.0, vehicle.SpeedMPH)

	require.Len(t, snap.Arrivals, 1)
	assert.Equal(t, uint64(100), snap.Arrivals[0].RouteID)
	assert.Equal(t, int64(1710507900), snap.Arrivals[0].Timestamp)
}

func TestSnapshotInconsistentUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stops", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"routes": [], "stops": []}`)
	})
	mux.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"routes": [{"id": 100, "long_name": "Campus Loop"}], "success": true}`)
	})
	mux.HandleFunc("/vehicle_statuses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vehicles": [], "arrivals": []}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, server.URL, &stubZips{}, 5*time.Second, testLogger())

	_, err := client.Snapshot(context.Background(), 643)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentSnapshot)
}

func TestSnapshotUpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stops", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"routes": [], "success": true}`)
	})
	mux.HandleFunc("/vehicle_statuses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vehicles": [], "arrivals": []}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, server.URL, &stubZips{}, 5*time.Second, testLogger())

	_, err := client.Snapshot(context.Background(), 643)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestAnnouncements(t *testing.T) {
	server := liveFeedServer(t)
	defer server.Close()

	client := New(server.URL, server.URL, &stubZips{}, 5*time.Second, testLogger())

	anns, err := client.Announcements(context.Background(), 643)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, uint64(9001), anns[0].ID)
	assert.Equal(t, "Detour", anns[0].Title)
	assert.Equal(t, "2024-03-15T08:00:00-04:00", anns[0].StartAt)
}

func TestStaticZip(t *testing.T) {
	zips := &stubZips{data: []byte("zip-bytes")}
	client := New("http://feeds.example", "https://api.example/gtfs", zips, 5*time.Second, testLogger())

	data, err := client.StaticZip(context.Background(), "rit")
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), data)
	assert.Equal(t, "https://api.example/gtfs/rit.zip", zips.url)
}
