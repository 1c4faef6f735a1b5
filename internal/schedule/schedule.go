package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"translocrt/internal/domain"
	"translocrt/pkg/gtfs"
	"translocrt/pkg/transloc"
)

// Schedule is the joint view of one live snapshot and one static GTFS
// dump, built per request. Nothing mutates after construction.
type Schedule struct {
	Live       *domain.Snapshot
	Static     *gtfs.Static
	Workaround bool
	Location   *time.Location

	logger *slog.Logger
}

func New(live *domain.Snapshot, static *gtfs.Static, workaround bool, loc *time.Location, logger *slog.Logger) *Schedule {
	return &Schedule{
		Live:       live,
		Static:     static,
		Workaround: workaround,
		Location:   loc,
		logger:     logger.With("component", "schedule"),
	}
}

// Loader assembles Schedules: the static dump fetch+parse runs
// concurrently with the live snapshot (which itself fans out into three
// fetches), so request latency is the slowest upstream, not the sum.
type Loader struct {
	client   *transloc.Client
	parser   *gtfs.Parser
	location *time.Location
	base     *slog.Logger
	logger   *slog.Logger
}

func NewLoader(client *transloc.Client, location *time.Location, logger *slog.Logger) *Loader {
	return &Loader{
		client:   client,
		parser:   gtfs.NewParser(logger),
		location: location,
		base:     logger,
		logger:   logger.With("component", "schedule_loader"),
	}
}

func (l *Loader) Load(ctx context.Context, agencyID uint64, agencyCode string, workaround bool) (*Schedule, error) {
	start := time.Now()

	var (
		static *gtfs.Static
		snap   *domain.Snapshot
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf, err := l.client.StaticZip(ctx, agencyCode)
		if err != nil {
			return fmt.Errorf("fetching static dump: %w", err)
		}
		static, err = l.parser.Parse(buf)
		if err != nil {
			return fmt.Errorf("parsing static dump: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap, err = l.client.Snapshot(ctx, agencyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("schedule loaded",
		"agency_id", agencyID,
		"agency_code", agencyCode,
		"arrivals", len(snap.Arrivals),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return New(snap, static, workaround, l.location, l.base), nil
}
