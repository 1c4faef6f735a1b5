package schedule

import (
	"fmt"
	"math"
	"strconv"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"translocrt/internal/domain"
	"translocrt/pkg/gtfs"
)

// matchSlackSecs is the tolerance applied on both sides when comparing a
// live arrival against scheduled times: the "nearby" window for fixed
// trips and the validity-window buffer for headway trips.
const matchSlackSecs = 600

// FindTrip resolves a live arrival to a scheduled trip instance and the
// stop-time row it hit.
//
// The live and static feeds assign ids independently; the only join keys
// are the route long name and the stop code. After the cross-namespace
// hop, trips are scanned in file order and the first qualifying stop-time
// wins — file order is the tie-break, there is no best-match search.
func (s *Schedule) FindTrip(arrival domain.Arrival) (*gtfsrt.TripDescriptor, gtfs.StopTime, bool) {
	var none gtfs.StopTime

	route, ok := s.Live.Routes[arrival.RouteID]
	if !ok {
		s.logger.Debug("arrival on unknown live route", "route_id", arrival.RouteID, "vehicle_id", arrival.VehicleID)
		return nil, none, false
	}
	csvRoute, ok := s.Static.RoutesByLongName[route.LongName]
	if !ok {
		s.logger.Debug("live route has no static counterpart", "long_name", route.LongName)
		return nil, none, false
	}

	var liveStop *domain.Stop
	for i := range route.Stops {
		if route.Stops[i].ID == arrival.StopID {
			liveStop = &route.Stops[i]
			break
		}
	}
	if liveStop == nil {
		s.logger.Debug("arrival stop not on live route", "stop_id", arrival.StopID, "route_id", arrival.RouteID)
		return nil, none, false
	}
	csvStop, ok := s.Static.StopsByCode[liveStop.Code]
	if !ok {
		s.logger.Debug("live stop has no static counterpart", "stop_code", liveStop.Code)
		return nil, none, false
	}

	arrivalSecs := gtfs.ServiceDaySeconds(arrival.Timestamp, s.Location)

	for _, trip := range s.Static.Trips {
		if trip.RouteID != csvRoute.ID {
			continue
		}

		if freq, headway := s.Static.FrequenciesByTrip[trip.ID]; headway {
			if desc, st, ok := s.matchHeadwayTrip(trip, freq, csvRoute, arrivalSecs); ok {
				return desc, st, true
			}
			continue
		}

		for _, st := range s.Static.StopTimes {
			if st.TripID != trip.ID || st.StopID != csvStop.ID {
				continue
			}
			if !nearby(arrivalSecs, st.Arrival.Seconds) {
				continue
			}
			return &gtfsrt.TripDescriptor{
				TripId:  proto.String(strconv.FormatUint(trip.ID, 10)),
				RouteId: proto.String(strconv.FormatUint(trip.RouteID, 10)),
			}, st, true
		}
	}

	s.logger.Debug("no scheduled trip for arrival",
		"route_id", arrival.RouteID,
		"stop_id", arrival.StopID,
		"vehicle_id", arrival.VehicleID,
		"service_day_secs", arrivalSecs,
	)
	return nil, none, false
}

// matchHeadwayTrip matches against a headway-based trip. The first
// stop-time belonging to the trip that falls inside the buffered validity
// window wins, whichever stop it is at: for headway trips the match
// establishes the trip instance, not the stop. The instance is identified
// by snapping the arrival to the nearest repetition of the pattern.
func (s *Schedule) matchHeadwayTrip(trip gtfs.Trip, freq gtfs.Frequency, csvRoute gtfs.Route, arrivalSecs uint64) (*gtfsrt.TripDescriptor, gtfs.StopTime, bool) {
	for _, st := range s.Static.StopTimes {
		if st.TripID != trip.ID {
			continue
		}
		if int64(arrivalSecs) <= int64(freq.Start.Seconds)-matchSlackSecs ||
			int64(arrivalSecs) >= int64(freq.End.Seconds)+matchSlackSecs {
			continue
		}

		iter := int64(math.Round(float64(int64(arrivalSecs)-int64(st.Arrival.Seconds)) / float64(freq.HeadwaySecs)))
		if iter < 0 {
			iter = 0
		}
		startSecs := freq.Start.Seconds + uint64(iter)*freq.HeadwaySecs

		desc := &gtfsrt.TripDescriptor{
			RouteId:              proto.String(strconv.FormatUint(csvRoute.ID, 10)),
			ScheduleRelationship: gtfsrt.TripDescriptor_SCHEDULED.Enum(),
		}
		if s.Workaround {
			// Consumers that key on trip_id alone cannot tell two
			// repetitions of a headway trip apart, so the start time is
			// folded into the id instead of the start_time field.
			desc.TripId = proto.String(fmt.Sprintf("%d_%d", trip.ID, startSecs))
		} else {
			desc.TripId = proto.String(strconv.FormatUint(trip.ID, 10))
			desc.StartTime = proto.String(gtfs.FormatDayTime(startSecs))
		}
		return desc, st, true
	}
	return nil, gtfs.StopTime{}, false
}

func nearby(arrivalSecs, scheduledSecs uint64) bool {
	delta := int64(arrivalSecs) - int64(scheduledSecs)
	return delta > -matchSlackSecs && delta < matchSlackSecs
}
