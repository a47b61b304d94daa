// Package depth handles the tabular seafloor-depth product.
//
// The detection stage writes one depth file per Sv store. Files are named
// "<segment>-<rest>.csv", where the segment identifier groups every file
// recorded on the same deployment leg. This package loads those files,
// subsamples them onto a regular interval, and exports the result.
package depth

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wflyer/echopipe/internal/discover"
)

// Record is one detected depth sounding.
type Record struct {
	PingTime    time.Time
	Latitude    float64 // NaN when the fix was missing
	Longitude   float64 // NaN when the fix was missing
	BottomDepth float64 // meters, NaN when detection failed for the ping
}

// Sample is one exported row after resampling.
type Sample struct {
	PingTime  time.Time
	Latitude  float64
	Longitude float64
	Depth     float64
	Segment   string
}

// columns is the header the detection stage writes.
var columns = []string{"ping_time", "latitude", "longitude", "bottom_depth"}

// ReadFile parses a depth file written by the detection stage.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read parses depth records from r. The first row must be the header.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < len(columns) {
		return nil, fmt.Errorf("short header: %v", header)
	}
	for i, want := range columns {
		if strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], want)
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("bad ping_time %q: %w", row[0], err)
		}
		records = append(records, Record{
			PingTime:    t,
			Latitude:    parseValue(row[1]),
			Longitude:   parseValue(row[2]),
			BottomDepth: parseValue(row[3]),
		})
	}
	return records, nil
}

// parseValue treats empty and unparseable fields as missing.
func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// SegmentOf extracts the segment identifier from a depth file path:
// everything in the stem before the first "-".
func SegmentOf(path string) string {
	stem := discover.Stem(path)
	if i := strings.Index(stem, "-"); i >= 0 {
		return stem[:i]
	}
	return stem
}

// GroupBySegment partitions depth file paths by segment identifier and
// returns the sorted segment list alongside the grouping.
func GroupBySegment(paths []string) ([]string, map[string][]string) {
	groups := make(map[string][]string)
	for _, p := range paths {
		seg := SegmentOf(p)
		groups[seg] = append(groups[seg], p)
	}
	segments := make([]string, 0, len(groups))
	for seg := range groups {
		segments = append(segments, seg)
		sort.Strings(groups[seg])
	}
	sort.Strings(segments)
	return segments, groups
}

// Method selects how Resample fills each interval.
type Method int

const (
	// Last keeps the final sounding in each interval.
	Last Method = iota
	// Interpolate linearly interpolates values at interval boundaries.
	Interpolate
)

// Resample subsamples records onto a regular interval and stamps each output
// with the segment identifier. Rows with a missing position or depth are
// dropped. The reported time is the end of each interval.
func Resample(records []Record, segment string, interval time.Duration, method Method) []Sample {
	if len(records) == 0 || interval <= 0 {
		return nil
	}
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PingTime.Before(sorted[j].PingTime) })

	var picked []Record
	switch method {
	case Interpolate:
		picked = interpolate(sorted, interval)
	default:
		picked = lastPerInterval(sorted, interval)
	}

	var samples []Sample
	for _, rec := range picked {
		if math.IsNaN(rec.Latitude) || math.IsNaN(rec.Longitude) || math.IsNaN(rec.BottomDepth) {
			continue
		}
		samples = append(samples, Sample{
			PingTime:  rec.PingTime,
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
			Depth:     rec.BottomDepth,
			Segment:   segment,
		})
	}
	return samples
}

// lastPerInterval keeps the last record of every interval, restamped to the
// interval's end.
func lastPerInterval(sorted []Record, interval time.Duration) []Record {
	var out []Record
	for _, rec := range sorted {
		end := rec.PingTime.Truncate(interval).Add(interval)
		if len(out) > 0 && out[len(out)-1].PingTime.Equal(end) {
			out[len(out)-1] = rec
			out[len(out)-1].PingTime = end
			continue
		}
		restamped := rec
		restamped.PingTime = end
		out = append(out, restamped)
	}
	return out
}

// interpolate evaluates the record series at every interval boundary between
// the first and last sounding.
func interpolate(sorted []Record, interval time.Duration) []Record {
	first := sorted[0].PingTime.Truncate(interval).Add(interval)
	last := sorted[len(sorted)-1].PingTime
	var out []Record
	i := 0
	for t := first; !t.After(last); t = t.Add(interval) {
		for i < len(sorted)-1 && sorted[i+1].PingTime.Before(t) {
			i++
		}
		if i == len(sorted)-1 {
			break
		}
		a, b := sorted[i], sorted[i+1]
		span := b.PingTime.Sub(a.PingTime)
		if span <= 0 {
			continue
		}
		frac := float64(t.Sub(a.PingTime)) / float64(span)
		if frac < 0 || frac > 1 {
			continue
		}
		out = append(out, Record{
			PingTime:    t,
			Latitude:    lerp(a.Latitude, b.Latitude, frac),
			Longitude:   lerp(a.Longitude, b.Longitude, frac),
			BottomDepth: lerp(a.BottomDepth, b.BottomDepth, frac),
		})
	}
	return out
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}

// WriteCSV writes samples in the export format: positions to three decimal
// places, depth to one, timestamps at second precision in UTC.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ping_time", "latitude", "longitude", "depth", "segment"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.PingTime.UTC().Truncate(time.Second).Format(time.RFC3339),
			fmt.Sprintf("%.3f", s.Latitude),
			fmt.Sprintf("%.3f", s.Longitude),
			fmt.Sprintf("%.1f", s.Depth),
			s.Segment,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
