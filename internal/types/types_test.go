package types

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestParseLandmark(t *testing.T) {
	tests := []struct {
		name    string
		want    Landmark
		wantErr bool
	}{
		{"left_knee", LeftKnee, false},
		{"leftKnee", LeftKnee, false},
		{" RIGHT_WRIST ", RightWrist, false},
		{"nose", Nose, false},
		{"left_toe", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLandmark(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLandmark(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLandmark(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestToKeypointSet(t *testing.T) {
	if ToKeypointSet(nil, 0.3) != nil {
		t.Error("an empty detection must mean no pose")
	}

	set := ToKeypointSet([]DetectedKeypoint{
		{Name: "left_hip", X: 1, Y: 2, Score: 0.9},
		{Name: "left_knee", X: 3, Y: 4, Score: 0.29},
		{Name: "tail", X: 5, Y: 6, Score: 1},
	}, 0.3)
	if set == nil {
		t.Fatal("expected a keypoint set")
	}
	if p, ok := set.Point(LeftHip); !ok || p != (Point2D{X: 1, Y: 2}) {
		t.Errorf("left hip = %+v (%v)", p, ok)
	}
	if _, ok := set.Point(LeftKnee); ok {
		t.Error("keypoint below the score floor should be absent")
	}
	faint := ToKeypointSet([]DetectedKeypoint{
		{Name: "left_hip", X: 1, Y: 2, Score: 0.1},
		{Name: "tail", X: 5, Y: 6, Score: 1},
	}, 0.3)
	if faint != nil {
		t.Errorf("no keypoint passed the filter, want no pose, got %+v", faint)
	}
}

func TestJointAnglesJSONOmitsAbsent(t *testing.T) {
	var a JointAngles
	a.Set(LeftKneeAngle, 90)
	a.Set(RightKneeAngle, 0)

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, `"rightKnee":0`) {
		t.Errorf("a present zero angle must be kept: %s", got)
	}
	if strings.Contains(got, "leftHip") {
		t.Errorf("absent angles must be omitted: %s", got)
	}
	if a.Present() != 2 {
		t.Errorf("Present() = %d, want 2", a.Present())
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	var a JointAngles
	a.Set(LeftElbowAngle, 45)
	s := Session{Name: "curl", JointData: []JointAngleSample{{Angles: a}}}

	c := s.Clone()
	c.JointData[0].Angles.Set(LeftElbowAngle, 10)
	c.JointData[0].Angles.Clear(RightElbowAngle)

	if v, _ := s.JointData[0].Angles.Get(LeftElbowAngle); v != 45 {
		t.Errorf("original mutated through clone: %v", v)
	}
}

func TestJointNames(t *testing.T) {
	for _, j := range AllJoints {
		parsed, err := ParseJoint(j.String())
		if err != nil || parsed != j {
			t.Errorf("ParseJoint(%q) = %v, %v", j.String(), parsed, err)
		}
	}
	if _, err := ParseJoint("neck"); err == nil {
		t.Error("expected error for unknown joint")
	}
}

func TestJointAnglesValidate(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"straight", 180, false},
		{"negative", -3, true},
		{"above range", 500, true},
		{"NaN", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a JointAngles
			a.Set(LeftHipAngle, 90)
			a.Set(RightShoulderAngle, tt.value)
			if err := a.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() with %v = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}

	var empty JointAngles
	if err := empty.Validate(); err != nil {
		t.Errorf("absent angles are valid, got %v", err)
	}
}
