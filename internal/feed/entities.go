package feed

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"translocrt/internal/schedule"
)

// mphToMetersPerSecond converts the upstream speed unit to the one the
// realtime schema expects.
const mphToMetersPerSecond = 0.44704

// arrivalUncertaintySecs is attached to every re-emitted upstream
// prediction.
const arrivalUncertaintySecs = 60

// ArrivalEntities emits one trip-update entity per correlated arrival,
// plus a vehicle-position entity when the reporting vehicle is known.
// Arrivals that cannot be correlated are skipped.
func ArrivalEntities(sched *schedule.Schedule, now time.Time, logger *slog.Logger) []*gtfsrt.FeedEntity {
	var entities []*gtfsrt.FeedEntity
	matched, skipped := 0, 0

	for _, arrival := range sched.Live.Arrivals {
		trip, stopTime, ok := sched.FindTrip(arrival)
		if !ok {
			skipped++
			continue
		}
		matched++

		vehicle, vehicleKnown := sched.Live.VehiclesByID[arrival.VehicleID]

		var vehicleDesc *gtfsrt.VehicleDescriptor
		if vehicleKnown {
			vehicleDesc = &gtfsrt.VehicleDescriptor{
				Id:    proto.String(strconv.FormatUint(vehicle.ID, 10)),
				Label: proto.String(vehicle.CallName),
			}
		}

		// The vehicle reports in milliseconds; entity timestamps are
		// seconds. Fall back to wall clock when the vehicle is unknown.
		timestamp := uint64(now.Unix())
		if vehicleKnown {
			timestamp = vehicle.TimestampMS / 1000
		}

		stopID := strconv.FormatUint(stopTime.StopID, 10)

		entities = append(entities, &gtfsrt.FeedEntity{
			Id: proto.String(fmt.Sprintf("%d-%d", stopTime.TripID, arrival.Timestamp)),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip:    trip,
				Vehicle: vehicleDesc,
				StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{{
					StopSequence:         proto.Uint32(stopTime.StopSequence),
					StopId:               proto.String(stopID),
					Arrival:              stopTimeEvent(arrival.Timestamp),
					Departure:            stopTimeEvent(arrival.Timestamp),
					ScheduleRelationship: gtfsrt.TripUpdate_StopTimeUpdate_SCHEDULED.Enum(),
				}},
				Timestamp: proto.Uint64(timestamp),
			},
		})

		if !vehicleKnown {
			continue
		}

		entities = append(entities, &gtfsrt.FeedEntity{
			Id: proto.String(fmt.Sprintf("vehicle-%d", vehicle.ID)),
			Vehicle: &gtfsrt.VehiclePosition{
				Trip:    trip,
				Vehicle: vehicleDesc,
				Position: &gtfsrt.Position{
					Latitude:  proto.Float32(float32(vehicle.Lat)),
					Longitude: proto.Float32(float32(vehicle.Lon)),
					Bearing:   proto.Float32(float32(vehicle.Heading)),
					Speed:     proto.Float32(float32(vehicle.SpeedMPH * mphToMetersPerSecond)),
				},
				CurrentStopSequence: proto.Uint32(stopTime.StopSequence),
				StopId:              proto.String(stopID),
				CurrentStatus:       gtfsrt.VehiclePosition_IN_TRANSIT_TO.Enum(),
				Timestamp:           proto.Uint64(vehicle.TimestampMS / 1000),
			},
		})
	}

	logger.Debug("built arrival entities",
		"matched", matched,
		"skipped", skipped,
		"entities", len(entities),
	)
	return entities
}

func stopTimeEvent(ts int64) *gtfsrt.TripUpdate_StopTimeEvent {
	return &gtfsrt.TripUpdate_StopTimeEvent{
		Time:        proto.Int64(ts),
		Uncertainty: proto.Int32(arrivalUncertaintySecs),
	}
}

// Dedupe drops entities whose id was already seen, keeping the first
// occurrence. Two arrivals for the same vehicle otherwise yield two
// identical vehicle-position entities.
func Dedupe(entities []*gtfsrt.FeedEntity) []*gtfsrt.FeedEntity {
	seen := make(map[string]bool, len(entities))
	out := make([]*gtfsrt.FeedEntity, 0, len(entities))
	for _, e := range entities {
		if seen[e.GetId()] {
			continue
		}
		seen[e.GetId()] = true
		out = append(out, e)
	}
	return out
}
