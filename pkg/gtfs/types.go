package gtfs

// Row types for the static GTFS tables consumed from the agency dump.
// Field tags follow the GTFS column names; unsigned ids match what the
// TransLoc exporter emits.

// Route is one row of routes.txt.
type Route struct {
	ID        uint64 `csv:"route_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Desc      string `csv:"route_desc"`
	URL       string `csv:"route_url"`
	Color     string `csv:"route_color"`
	TextColor string `csv:"route_text_color"`
	Type      uint64 `csv:"route_type"`
}

// Stop is one row of stops.txt.
type Stop struct {
	ID           uint64  `csv:"stop_id"`
	Code         string  `csv:"stop_code"`
	Name         string  `csv:"stop_name"`
	Desc         string  `csv:"stop_desc"`
	Lat          float64 `csv:"stop_lat"`
	Lon          float64 `csv:"stop_lon"`
	URL          string  `csv:"stop_url"`
	LocationType uint64  `csv:"location_type"`
}

// Trip is one row of trips.txt.
type Trip struct {
	ID          uint64 `csv:"trip_id"`
	RouteID     uint64 `csv:"route_id"`
	ServiceID   uint64 `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID uint64 `csv:"direction_id"`
	ShapeID     string `csv:"shape_id"`
	BlockID     string `csv:"block_id"`
}

// StopTime is one row of stop_times.txt.
type StopTime struct {
	TripID       uint64  `csv:"trip_id"`
	Arrival      DayTime `csv:"arrival_time"`
	Departure    DayTime `csv:"departure_time"`
	StopID       uint64  `csv:"stop_id"`
	StopSequence uint32  `csv:"stop_sequence"`
}

// Frequency is one row of frequencies.txt. A trip indexed here is
// headway-based: it repeats every HeadwaySecs over [Start, End] and each
// repetition is a distinct trip instance.
type Frequency struct {
	TripID      uint64  `csv:"trip_id"`
	Start       DayTime `csv:"start_time"`
	End         DayTime `csv:"end_time"`
	HeadwaySecs uint64  `csv:"headway_secs"`
	ExactTimes  uint8   `csv:"exact_times"`
}

// Static is the in-memory schedule built from one GTFS dump.
//
// Trips and StopTimes keep file order: trip matching returns the first
// qualifying row, so iteration order is part of the matching contract.
type Static struct {
	RoutesByLongName  map[string]Route
	StopsByCode       map[string]Stop
	Trips             []Trip
	StopTimes         []StopTime
	FrequenciesByTrip map[uint64]Frequency
}
