package transloc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"translocrt/internal/domain"
)

// ErrInconsistentSnapshot marks an upstream view that disagrees with
// itself: a route listed on the routes endpoint is absent from the stops
// endpoint. The snapshot cannot be joined and the request must fail.
var ErrInconsistentSnapshot = errors.New("inconsistent upstream snapshot")

// ZipFetcher fetches a URL through the process-wide caching HTTP client.
type ZipFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client talks to the TransLoc realtime feed endpoints and the static
// GTFS dump host.
type Client struct {
	feedsBaseURL string
	gtfsBaseURL  string
	httpClient   *http.Client
	zips         ZipFetcher
	logger       *slog.Logger
}

func New(feedsBaseURL, gtfsBaseURL string, zips ZipFetcher, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		feedsBaseURL: feedsBaseURL,
		gtfsBaseURL:  gtfsBaseURL,
		zips:         zips,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With("component", "transloc_client"),
	}
}

// Snapshot fetches stops, routes and vehicle statuses concurrently and
// joins them into one live view. Any fetch failure fails the snapshot.
func (c *Client) Snapshot(ctx context.Context, agencyID uint64) (*domain.Snapshot, error) {
	var (
		stops    stopsResponse
		routes   routesResponse
		statuses vehicleStatusesResponse
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url := fmt.Sprintf("%s/stops?include_routes=true&agencies=%d", c.feedsBaseURL, agencyID)
		return c.getJSON(ctx, url, &stops)
	})
	g.Go(func() error {
		url := fmt.Sprintf("%s/routes?agencies=%d", c.feedsBaseURL, agencyID)
		return c.getJSON(ctx, url, &routes)
	})
	g.Go(func() error {
		url := fmt.Sprintf("%s/vehicle_statuses?agencies=%d&include_arrivals=true", c.feedsBaseURL, agencyID)
		return c.getJSON(ctx, url, &statuses)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	joined, err := joinRoutes(routes.Routes, stops)
	if err != nil {
		return nil, err
	}

	vehicles := make(map[uint64]domain.Vehicle, len(statuses.Vehicles))
	for _, v := range statuses.Vehicles {
		vehicles[v.ID] = v.toDomain()
	}

	c.logger.Debug("live snapshot joined",
		"agency_id", agencyID,
		"routes", len(joined),
		"vehicles", len(vehicles),
		"arrivals", len(statuses.Arrivals),
	)

	return &domain.Snapshot{
		Routes:       joined,
		VehiclesByID: vehicles,
		Arrivals:     statuses.Arrivals,
	}, nil
}

// joinRoutes matches each full route record against its thin counterpart
// from the stops endpoint and copies over the stops on the route, keeping
// the order the stops endpoint reported them in.
func joinRoutes(routes []wireRoute, stops stopsResponse) (map[uint64]domain.Route, error) {
	thinByID := make(map[uint64]thinRoute, len(stops.Routes))
	for _, thin := range stops.Routes {
		thinByID[thin.ID] = thin
	}

	joined := make(map[uint64]domain.Route, len(routes))
	for _, route := range routes {
		thin, ok := thinByID[route.ID]
		if !ok {
			return nil, fmt.Errorf("%w: route %d missing from stops endpoint", ErrInconsistentSnapshot, route.ID)
		}

		onRoute := make(map[uint64]bool, len(thin.Stops))
		for _, stopID := range thin.Stops {
			onRoute[stopID] = true
		}

		var routeStops []domain.Stop
		for _, stop := range stops.Stops {
			if onRoute[stop.ID] {
				routeStops = append(routeStops, stop.toDomain())
			}
		}

		joined[route.ID] = domain.Route{
			ID:       route.ID,
			LongName: route.LongName,
			Stops:    routeStops,
		}
	}
	return joined, nil
}

// Announcements fetches rider-facing announcements for the agency.
func (c *Client) Announcements(ctx context.Context, agencyID uint64) ([]domain.Announcement, error) {
	var resp announcementsResponse
	url := fmt.Sprintf("%s/announcements?contents=true&agencies=%d", c.feedsBaseURL, agencyID)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.Announcements, nil
}

// StaticZip fetches the agency's GTFS dump through the caching client.
func (c *Client) StaticZip(ctx context.Context, agencyCode string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.zip", c.gtfsBaseURL, agencyCode)
	return c.zips.Get(ctx, url)
}

func (c *Client) getJSON(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
