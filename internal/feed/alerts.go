package feed

import (
	"log/slog"
	"strconv"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"translocrt/internal/domain"
)

// AlertEntities maps announcements to alert entities. The upstream gives
// no cause or effect, so both stay unknown. The active period starts at
// the announcement's start_at and never ends; an unparseable start_at
// leaves the range open on both sides.
func AlertEntities(announcements []domain.Announcement, agencyID uint64, logger *slog.Logger) []*gtfsrt.FeedEntity {
	agency := strconv.FormatUint(agencyID, 10)

	entities := make([]*gtfsrt.FeedEntity, 0, len(announcements))
	for _, a := range announcements {
		period := &gtfsrt.TimeRange{}
		if start, err := time.Parse(time.RFC3339, a.StartAt); err == nil {
			period.Start = proto.Uint64(uint64(start.Unix()))
		} else {
			logger.Debug("announcement start_at not RFC 3339", "announcement_id", a.ID, "start_at", a.StartAt)
		}

		entities = append(entities, &gtfsrt.FeedEntity{
			Id: proto.String(strconv.FormatUint(a.ID, 10)),
			Alert: &gtfsrt.Alert{
				ActivePeriod: []*gtfsrt.TimeRange{period},
				InformedEntity: []*gtfsrt.EntitySelector{{
					AgencyId: proto.String(agency),
				}},
				Cause:           gtfsrt.Alert_UNKNOWN_CAUSE.Enum(),
				Effect:          gtfsrt.Alert_UNKNOWN_EFFECT.Enum(),
				HeaderText:      translated(a.Title),
				DescriptionText: translated(a.HTML),
			},
		})
	}
	return entities
}

// translated wraps text as a single translation with no language tag.
func translated(text string) *gtfsrt.TranslatedString {
	return &gtfsrt.TranslatedString{
		Translation: []*gtfsrt.TranslatedString_Translation{{
			Text: proto.String(text),
		}},
	}
}
