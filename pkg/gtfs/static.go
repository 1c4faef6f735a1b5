package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"
)

func init() {
	// LazyCSVReader survives sloppy quoting in agency dumps. The BOM
	// reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// Parser decodes a static GTFS ZIP into a Static bundle.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("component", "gtfs_parser"),
	}
}

// Parse opens the ZIP and decodes the five tables the matcher needs.
// frequencies.txt is optional; the other four are required. Rows that fail
// to decode are dropped, never aborting the table.
func (p *Parser) Parse(buf []byte) (*Static, error) {
	start := time.Now()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, errors.Wrap(err, "opening zip")
	}

	file := map[string]*zip.File{
		"routes.txt":      nil,
		"stops.txt":       nil,
		"trips.txt":       nil,
		"stop_times.txt":  nil,
		"frequencies.txt": nil,
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Some agencies nest the tables in a subdirectory.
		path := strings.Split(f.Name, "/")
		name := path[len(path)-1]
		if _, wanted := file[name]; wanted {
			file[name] = f
		}
	}

	for _, required := range []string{"routes.txt", "stops.txt", "trips.txt", "stop_times.txt"} {
		if file[required] == nil {
			return nil, errors.Errorf("missing %s", required)
		}
	}

	routes, err := decodeTable[Route](file["routes.txt"], p.logger)
	if err != nil {
		return nil, err
	}
	stops, err := decodeTable[Stop](file["stops.txt"], p.logger)
	if err != nil {
		return nil, err
	}
	trips, err := decodeTable[Trip](file["trips.txt"], p.logger)
	if err != nil {
		return nil, err
	}
	stopTimes, err := decodeTable[StopTime](file["stop_times.txt"], p.logger)
	if err != nil {
		return nil, err
	}

	var frequencies []Frequency
	if file["frequencies.txt"] != nil {
		frequencies, err = decodeTable[Frequency](file["frequencies.txt"], p.logger)
		if err != nil {
			return nil, err
		}
	}

	static := &Static{
		RoutesByLongName:  make(map[string]Route, len(routes)),
		StopsByCode:       make(map[string]Stop, len(stops)),
		Trips:             trips,
		StopTimes:         stopTimes,
		FrequenciesByTrip: make(map[uint64]Frequency, len(frequencies)),
	}
	for _, route := range routes {
		static.RoutesByLongName[route.LongName] = route
	}
	for _, stop := range stops {
		static.StopsByCode[stop.Code] = stop
	}
	for _, freq := range frequencies {
		static.FrequenciesByTrip[freq.TripID] = freq
	}

	p.logger.Info("parsed static schedule",
		"routes", len(routes),
		"stops", len(stops),
		"trips", len(trips),
		"stop_times", len(stopTimes),
		"frequencies", len(frequencies),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return static, nil
}

// decodeTable decodes one CSV table, dropping rows that fail to decode.
// gocsv keeps erroneous rows in place with zeroed fields, so the handler
// records their line numbers and they are filtered out afterwards (header
// is line 1, first data row is line 2).
func decodeTable[T any](f *zip.File, logger *slog.Logger) ([]T, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", f.Name)
	}
	defer rc.Close()

	var rows []T
	bad := map[int]bool{}
	err = gocsv.UnmarshalWithErrorHandler(rc, func(pe *csv.ParseError) bool {
		bad[pe.Line-2] = true
		logger.Debug("dropping malformed row",
			"table", f.Name,
			"line", pe.Line,
			"error", pe.Err,
		)
		return true
	}, &rows)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", f.Name)
	}

	if len(bad) == 0 {
		return rows, nil
	}
	kept := make([]T, 0, len(rows))
	for i, row := range rows {
		if !bad[i] {
			kept = append(kept, row)
		}
	}
	return kept, nil
}
