// Package export projects stored sessions into CSV rows and chart series.
// Neither projection mutates the session.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/biomech/internal/types"
)

const (
	// Header is the exact first line of every exported file.
	Header = "timestamp,leftKnee,rightKnee,leftHip,rightHip,leftElbow,rightElbow,leftShoulder,rightShoulder"
	// ContentType is the MIME type of the CSV export.
	ContentType = "text/csv"

	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	// ChartLabelLayout is the local time label used on chart axes.
	ChartLabelLayout = "15:04:05"
)

// Columns returns the header fields in order.
func Columns() []string {
	return strings.Split(Header, ",")
}

// Row renders one sample. Absent angles become empty cells.
func Row(s types.JointAngleSample) []string {
	row := make([]string, 0, 1+types.NumJoints)
	row = append(row, s.Timestamp.UTC().Format(TimestampLayout))
	for _, j := range types.AllJoints {
		if v, ok := s.Angles.Get(j); ok {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			row = append(row, "")
		}
	}
	return row
}

// Rows renders every sample in session order, header excluded.
func Rows(s types.Session) [][]string {
	out := make([][]string, len(s.JointData))
	for i, sample := range s.JointData {
		out[i] = Row(sample)
	}
	return out
}

// WriteCSV writes the header followed by one row per sample.
func WriteCSV(w io.Writer, s types.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(s)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadCSV parses a file produced by WriteCSV back into samples.
func ReadCSV(r io.Reader) ([]types.JointAngleSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1 + int(types.NumJoints)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.Join(header, ",") != Header {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var out []types.JointAngleSample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		sample := types.JointAngleSample{Timestamp: ts}
		for i, j := range types.AllJoints {
			cell := strings.TrimSpace(rec[i+1])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || !types.ValidDegrees(v) {
				return nil, fmt.Errorf("line %d: bad %s value %q", line, j, cell)
			}
			sample.Angles.Set(j, v)
		}
		out = append(out, sample)
	}
	return out, nil
}

// ChartPoint is one sample keyed by a display label. The angle fields are flattened into the JSON object.
type ChartPoint struct {
	Timestamp string `json:"timestamp"`
	types.JointAngles
}

// Chart returns one point per sample, in session order, labeled in loc.
func Chart(s types.Session, loc *time.Location) []ChartPoint {
	if loc == nil {
		loc = time.Local
	}
	out := make([]ChartPoint, len(s.JointData))
	for i, sample := range s.JointData {
		out[i] = ChartPoint{
			Timestamp:   sample.Timestamp.In(loc).Format(ChartLabelLayout),
			JointAngles: sample.Angles.Clone(),
		}
	}
	return out
}

// Filename returns session-<name>-<yyyy-MM-dd>.csv, dated by the session's local start day.
func Filename(s types.Session) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(s.Name))
	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf("session-%s-%s.csv", name, s.StartTime.Local().Format("2006-01-02"))
}
