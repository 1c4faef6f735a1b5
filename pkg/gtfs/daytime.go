package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayTime is a GTFS time of day: seconds since the start of the service
// day. Hours above 23 are legal and mark trips that run past midnight
// (e.g. "25:30:00"). Raw keeps the original string for diagnostics.
type DayTime struct {
	Raw     string
	Seconds uint64
}

// ParseDayTime parses "HH:MM:SS". Each component must be an unsigned
// decimal integer; the hour is not bounded.
func ParseDayTime(s string) (DayTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return DayTime{}, fmt.Errorf("time %q: expected 3 components, got %d", s, len(parts))
	}

	var hms [3]uint64
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return DayTime{}, fmt.Errorf("time %q component %d: %w", s, i, err)
		}
		hms[i] = v
	}

	return DayTime{
		Raw:     s,
		Seconds: hms[0]*3600 + hms[1]*60 + hms[2],
	}, nil
}

// FormatDayTime renders service-day seconds as "HH:MM:SS", zero-padded.
// Hours can exceed two digits for pathological inputs.
func FormatDayTime(secs uint64) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// String returns the canonical formatting of the parsed value.
func (d DayTime) String() string {
	return FormatDayTime(d.Seconds)
}

// UnmarshalCSV implements gocsv decoding for tagged CSV structs.
func (d *DayTime) UnmarshalCSV(s string) error {
	parsed, err := ParseDayTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalCSV implements gocsv encoding.
func (d DayTime) MarshalCSV() (string, error) {
	if d.Raw != "" {
		return d.Raw, nil
	}
	return FormatDayTime(d.Seconds), nil
}

// ServiceDaySeconds converts an epoch-second timestamp to seconds from the
// start of the service day in the given civil timezone. Events before 04:00
// belong to the previous service day, so they map past 86400 the same way
// GTFS encodes post-midnight stop times.
func ServiceDaySeconds(ts int64, loc *time.Location) uint64 {
	civil := time.Unix(ts, 0).In(loc)
	secs := uint64(civil.Hour()*3600 + civil.Minute()*60 + civil.Second())
	if civil.Hour() < 4 {
		return secs + 86400
	}
	return secs
}
