package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/biomech/internal/types"
)

func testSession() types.Session {
	start := time.Date(2024, 7, 4, 9, 30, 0, 0, time.UTC)
	s := types.Session{ID: "abc", Name: "squat", Type: "strength", StartTime: start, EndTime: start.Add(time.Second)}
	for i := 0; i < 4; i++ {
		var a types.JointAngles
		for _, j := range types.AllJoints {
			a.Set(j, 100+float64(i)+float64(j)*0.25)
		}
		if i == 3 {
			a.Clear(types.LeftElbowAngle)
		}
		s.JointData = append(s.JointData, types.JointAngleSample{
			Timestamp: start.Add(time.Duration(i) * 250 * time.Millisecond),
			Angles:    a,
		})
	}
	return s
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testSession()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != Header {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d lines", len(lines))
	}
	if want := "2024-07-04T09:30:00.000Z,100,100.25,100.5,100.75,101,101.25,101.5,101.75"; lines[1] != want {
		t.Errorf("row 1 = %q, want %q", lines[1], want)
	}
	// leftElbow is the sixth column.
	if want := "2024-07-04T09:30:00.750Z,103,103.25,103.5,103.75,,104.25,104.5,104.75"; lines[4] != want {
		t.Errorf("row 4 = %q, want %q", lines[4], want)
	}
	if strings.Contains(buf.String(), "NaN") {
		t.Error("absent angles must not render as NaN")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	in := testSession()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatal(err)
	}

	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(out) != len(in.JointData) {
		t.Fatalf("row count %d, want %d", len(out), len(in.JointData))
	}
	for i := range out {
		if !out[i].Timestamp.Equal(in.JointData[i].Timestamp) {
			t.Errorf("row %d out of order: %v vs %v", i, out[i].Timestamp, in.JointData[i].Timestamp)
		}
		if out[i].Angles.Present() != in.JointData[i].Angles.Present() {
			t.Errorf("row %d present count changed", i)
		}
	}
	if _, ok := out[3].Angles.Get(types.LeftElbowAngle); ok {
		t.Error("empty cell must parse back as absent")
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "time,a,b,c,d,e,f,g,h\n"},
		{"bad timestamp", Header + "\nyesterday,1,2,3,4,5,6,7,8\n"},
		{"bad number", Header + "\n2024-07-04T09:30:00.000Z,x,2,3,4,5,6,7,8\n"},
		{"short row", Header + "\n2024-07-04T09:30:00.000Z,1,2\n"},
		{"NaN angle", Header + "\n2024-07-04T09:30:00.000Z,NaN,2,3,4,5,6,7,8\n"},
		{"infinite angle", Header + "\n2024-07-04T09:30:00.000Z,1,Inf,3,4,5,6,7,8\n"},
		{"angle above 180", Header + "\n2024-07-04T09:30:00.000Z,1,2,500,4,5,6,7,8\n"},
		{"negative angle", Header + "\n2024-07-04T09:30:00.000Z,1,2,3,-3,5,6,7,8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEmptySessionExportsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, types.Session{Name: "empty"}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimRight(buf.String(), "\n"); got != Header {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestChart(t *testing.T) {
	s := testSession()
	loc := time.FixedZone("UTC+2", 2*60*60)
	points := Chart(s, loc)

	if len(points) != len(s.JointData) {
		t.Fatalf("expected %d points, got %d", len(s.JointData), len(points))
	}
	if points[0].Timestamp != "11:30:00" {
		t.Errorf("label = %q, want local 11:30:00", points[0].Timestamp)
	}

	raw, err := json.Marshal(points[3])
	if err != nil {
		t.Fatal(err)
	}
	var obj map[string]any
	json.Unmarshal(raw, &obj)
	if _, ok := obj["leftElbow"]; ok {
		t.Error("absent angle must be omitted from the chart point")
	}
	if _, ok := obj["rightElbow"].(float64); !ok {
		t.Errorf("angles must be flattened into the point, got %s", raw)
	}

	// The projection must not alias session data.
	points[0].Set(types.LeftKneeAngle, -5)
	if v, _ := s.JointData[0].Angles.Get(types.LeftKneeAngle); v == -5 {
		t.Error("Chart mutated the session")
	}
}

func TestFilename(t *testing.T) {
	start := time.Date(2024, 7, 4, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		want string
	}{
		{"squat", "session-squat-2024-07-04.csv"},
		{"left/right", "session-left_right-2024-07-04.csv"},
		{"  ", "session-untitled-2024-07-04.csv"},
	}
	for _, tt := range tests {
		if got := Filename(types.Session{Name: tt.name, StartTime: start}); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
