package feed

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translocrt/internal/domain"
	"translocrt/internal/schedule"
	"translocrt/pkg/gtfs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dt(secs uint64) gtfs.DayTime {
	return gtfs.DayTime{Raw: gtfs.FormatDayTime(secs), Seconds: secs}
}

// testSchedule has one live route joined to one static route with a single
// fixed trip whose only stop-time is at 09:00:00.
func testSchedule(t *testing.T, arrivals []domain.Arrival, vehicles map[uint64]domain.Vehicle) *schedule.Schedule {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	live := &domain.Snapshot{
		Routes: map[uint64]domain.Route{
			100: {
				ID:       100,
				LongName: "Campus Loop",
				Stops:    []domain.Stop{{ID: 1, Code: "S01", Name: "Main Gate"}},
			},
		},
		VehiclesByID: vehicles,
		Arrivals:     arrivals,
	}
	static := &gtfs.Static{
		RoutesByLongName: map[string]gtfs.Route{
			"Campus Loop": {ID: 10, LongName: "Campus Loop"},
		},
		StopsByCode: map[string]gtfs.Stop{
			"S01": {ID: 501, Code: "S01"},
		},
		Trips: []gtfs.Trip{{ID: 7, RouteID: 10, ServiceID: 1}},
		StopTimes: []gtfs.StopTime{
			{TripID: 7, Arrival: dt(32400), Departure: dt(32400), StopID: 501, StopSequence: 3},
		},
		FrequenciesByTrip: map[uint64]gtfs.Frequency{},
	}
	return schedule.New(live, static, false, loc, testLogger())
}

func arrivalNear0900(t *testing.T, vehicleID uint64, offsetSecs int) domain.Arrival {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return domain.Arrival{
		AgencyID:  643,
		RouteID:   100,
		StopID:    1,
		Timestamp: time.Date(2024, 3, 15, 9, 0, offsetSecs, 0, loc).Unix(),
		VehicleID: vehicleID,
	}
}

func TestArrivalEntitiesVehicleKnown(t *testing.T) {
	arrival := arrivalNear0900(t, 66, 0)
	vehicle := domain.Vehicle{
		ID:          66,
		CallName:    "Bus 66",
		Lat:         43.085,
		Lon:         -77.672,
		Heading:     90,
		SpeedMPH:    25,
		TimestampMS: 1710507600123,
	}
	sched := testSchedule(t, []domain.Arrival{arrival}, map[uint64]domain.Vehicle{66: vehicle})

	now := time.Now()
	entities := ArrivalEntities(sched, now, testLogger())
	require.Len(t, entities, 2)

	update := entities[0]
	assert.Equal(t, fmt.Sprintf("7-%d", arrival.Timestamp), update.GetId())
	require.NotNil(t, update.TripUpdate)
	assert.Equal(t, "7", update.TripUpdate.Trip.GetTripId())
	assert.Equal(t, "66", update.TripUpdate.Vehicle.GetId())
	assert.Equal(t, "Bus 66", update.TripUpdate.Vehicle.GetLabel())
	assert.Equal(t, uint64(1710507600), update.TripUpdate.GetTimestamp())

	require.Len(t, update.TripUpdate.StopTimeUpdate, 1)
	stu := update.TripUpdate.StopTimeUpdate[0]
	assert.Equal(t, uint32(3), stu.GetStopSequence())
	assert.Equal(t, "501", stu.GetStopId())
	assert.Equal(t, gtfsrt.TripUpdate_StopTimeUpdate_SCHEDULED, stu.GetScheduleRelationship())
	require.NotNil(t, stu.Arrival)
	require.NotNil(t, stu.Departure)
	assert.Equal(t, arrival.Timestamp, stu.Arrival.GetTime())
	assert.Equal(t, stu.Arrival.GetTime(), stu.Departure.GetTime())
	assert.Equal(t, int32(60), stu.Arrival.GetUncertainty())

	position := entities[1]
	assert.Equal(t, "vehicle-66", position.GetId())
	require.NotNil(t, position.Vehicle)
	assert.Equal(t, gtfsrt.VehiclePosition_IN_TRANSIT_TO, position.Vehicle.GetCurrentStatus())
	assert.Equal(t, uint32(3), position.Vehicle.GetCurrentStopSequence())
	assert.Equal(t, "501", position.Vehicle.GetStopId())
	assert.Equal(t, uint64(1710507600), position.Vehicle.GetTimestamp())
	assert.InDelta(t, float32(90), position.Vehicle.Position.GetBearing(), 1e-6)
	assert.InDelta(t, 25*0.44704, float64(position.Vehicle.Position.GetSpeed()), 1e-5)
}

func TestArrivalEntitiesVehicleUnknown(t *testing.T) {
	arrival := arrivalNear0900(t, 55, 0)
	sched := testSchedule(t, []domain.Arrival{arrival}, map[uint64]domain.Vehicle{})

	now := time.Now()
	entities := ArrivalEntities(sched, now, testLogger())

	// No vehicle-position entity and no vehicle descriptor; the update
	// timestamp falls back to wall clock.
	require.Len(t, entities, 1)
	require.NotNil(t, entities[0].TripUpdate)
	assert.Nil(t, entities[0].TripUpdate.Vehicle)
	assert.Equal(t, uint64(now.Unix()), entities[0].TripUpdate.GetTimestamp())
}

func TestArrivalEntitiesSkipsUnmatched(t *testing.T) {
	arrival := arrivalNear0900(t, 66, 0)
	arrival.RouteID = 999
	sched := testSchedule(t, []domain.Arrival{arrival}, map[uint64]domain.Vehicle{})

	entities := ArrivalEntities(sched, time.Now(), testLogger())
	assert.Empty(t, entities)
}

func TestDedupeRepeatedVehicle(t *testing.T) {
	first := arrivalNear0900(t, 66, 10)
	second := arrivalNear0900(t, 66, 20)
	vehicle := domain.Vehicle{ID: 66, CallName: "Bus 66", SpeedMPH: 10, TimestampMS: 1710507600000}
	sched := testSchedule(t, []domain.Arrival{first, second}, map[uint64]domain.Vehicle{66: vehicle})

	entities := Dedupe(ArrivalEntities(sched, time.Now(), testLogger()))

	// Two trip updates with distinct per-arrival ids, one position.
	require.Len(t, entities, 3)
	updates, positions := 0, 0
	seen := map[string]bool{}
	for _, e := range entities {
		assert.False(t, seen[e.GetId()], "duplicate entity id %s", e.GetId())
		seen[e.GetId()] = true
		if e.TripUpdate != nil {
			updates++
		}
		if e.Vehicle != nil {
			positions++
		}
	}
	assert.Equal(t, 2, updates)
	assert.Equal(t, 1, positions)
}

func TestSpeedConversionExact(t *testing.T) {
	// The schema wants m/s; upstream reports mph.
	assert.True(t, math.Abs(mphToMetersPerSecond*3600/1609.344-1) < 1e-9)
}
