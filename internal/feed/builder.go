package feed

import (
	"context"
	"log/slog"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"translocrt/internal/domain"
	"translocrt/internal/schedule"
	"translocrt/pkg/transloc"
)

// Builder produces one complete feed message per request: alerts first,
// then the entities derived from correlated arrivals.
type Builder struct {
	client *transloc.Client
	loader *schedule.Loader
	logger *slog.Logger
}

func NewBuilder(client *transloc.Client, loader *schedule.Loader, logger *slog.Logger) *Builder {
	return &Builder{
		client: client,
		loader: loader,
		logger: logger.With("component", "feed_builder"),
	}
}

// Build fetches everything concurrently and assembles the feed. The
// schedule and live fetches are essential; an announcements failure only
// costs the alerts.
func (b *Builder) Build(ctx context.Context, agencyID uint64, agencyCode string, workaround bool) (*gtfsrt.FeedMessage, error) {
	var (
		announcements []domain.Announcement
		sched         *schedule.Schedule
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		anns, err := b.client.Announcements(gctx, agencyID)
		if err != nil {
			b.logger.Warn("announcements fetch failed, emitting no alerts", "agency_id", agencyID, "error", err)
			return nil
		}
		announcements = anns
		return nil
	})
	g.Go(func() error {
		var err error
		sched, err = b.loader.Load(gctx, agencyID, agencyCode, workaround)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()

	entities := AlertEntities(announcements, agencyID, b.logger)
	entities = append(entities, ArrivalEntities(sched, now, b.logger)...)
	entities = Dedupe(entities)

	return &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrt.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: entities,
	}, nil
}
