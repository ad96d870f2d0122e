package types

import (
	"fmt"
	"math"
	"time"
)

// Joint names one of the tracked joint angles.
type Joint int

const (
	LeftKneeAngle Joint = iota
	RightKneeAngle
	LeftHipAngle
	RightHipAngle
	LeftElbowAngle
	RightElbowAngle
	LeftShoulderAngle
	RightShoulderAngle

	NumJoints
)

// AllJoints lists the joints in export column order.
var AllJoints = [NumJoints]Joint{
	LeftKneeAngle,
	RightKneeAngle,
	LeftHipAngle,
	RightHipAngle,
	LeftElbowAngle,
	RightElbowAngle,
	LeftShoulderAngle,
	RightShoulderAngle,
}

var jointNames = [NumJoints]string{
	"leftKnee",
	"rightKnee",
	"leftHip",
	"rightHip",
	"leftElbow",
	"rightElbow",
	"leftShoulder",
	"rightShoulder",
}

func (j Joint) String() string {
	if j < 0 || j >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJoint maps a column name such as "leftKnee" back to its Joint.
func ParseJoint(name string) (Joint, error) {
	for i, n := range jointNames {
		if n == name {
			return Joint(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", name)
}

// JointAngles holds one angle per joint in degrees. A nil field means the angle
// could not be computed for that frame; it is never zero-filled.
type JointAngles struct {
	LeftKnee      *float64 `json:"leftKnee,omitempty"`
	RightKnee     *float64 `json:"rightKnee,omitempty"`
	LeftHip       *float64 `json:"leftHip,omitempty"`
	RightHip      *float64 `json:"rightHip,omitempty"`
	LeftElbow     *float64 `json:"leftElbow,omitempty"`
	RightElbow    *float64 `json:"rightElbow,omitempty"`
	LeftShoulder  *float64 `json:"leftShoulder,omitempty"`
	RightShoulder *float64 `json:"rightShoulder,omitempty"`
}

func (a *JointAngles) field(j Joint) **float64 {
	switch j {
	case LeftKneeAngle:
		return &a.LeftKnee
	case RightKneeAngle:
		return &a.RightKnee
	case LeftHipAngle:
		return &a.LeftHip
	case RightHipAngle:
		return &a.RightHip
	case LeftElbowAngle:
		return &a.LeftElbow
	case RightElbowAngle:
		return &a.RightElbow
	case LeftShoulderAngle:
		return &a.LeftShoulder
	case RightShoulderAngle:
		return &a.RightShoulder
	}
	panic(fmt.Sprintf("types: invalid joint %d", int(j)))
}

// Get returns the angle for j and whether it is present.
func (a JointAngles) Get(j Joint) (float64, bool) {
	p := *a.field(j)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set stores a present angle for j.
func (a *JointAngles) Set(j Joint, degrees float64) {
	v := degrees
	*a.field(j) = &v
}

// Clear marks the angle for j as absent.
func (a *JointAngles) Clear(j Joint) {
	*a.field(j) = nil
}

// ValidDegrees reports whether v is a finite angle in [0, 180].
func ValidDegrees(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 180
}

// Validate rejects present angles outside [0, 180], including NaN and infinities.
func (a JointAngles) Validate() error {
	for _, j := range AllJoints {
		if v, ok := a.Get(j); ok && !ValidDegrees(v) {
			return fmt.Errorf("%s angle %v is outside [0, 180]", j, v)
		}
	}
	return nil
}

// Present counts the joints that carry a value.
func (a JointAngles) Present() int {
	n := 0
	for _, j := range AllJoints {
		if _, ok := a.Get(j); ok {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no pointers with a.
func (a JointAngles) Clone() JointAngles {
	var out JointAngles
	for _, j := range AllJoints {
		if v, ok := a.Get(j); ok {
			out.Set(j, v)
		}
	}
	return out
}

// JointAngleSample is one timestamped snapshot of all tracked joint angles.
type JointAngleSample struct {
	Timestamp time.Time   `json:"timestamp"`
	Angles    JointAngles `json:"angles"`
}

// Session is one recording interval and its ordered time series of samples.
type Session struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	StartTime time.Time          `json:"startTime"`
	EndTime   time.Time          `json:"endTime"`
	JointData []JointAngleSample `json:"jointData"`
}

// Clone deep-copies the session so callers can't mutate stored data.
func (s Session) Clone() Session {
	out := s
	out.JointData = make([]JointAngleSample, len(s.JointData))
	for i, sample := range s.JointData {
		out.JointData[i] = JointAngleSample{Timestamp: sample.Timestamp, Angles: sample.Angles.Clone()}
	}
	return out
}

// SessionMeta describes a session before any samples exist.
type SessionMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// JointStats aggregates the present values of one joint across a session.
type JointStats struct {
	Joint   string  `json:"joint"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Missing int     `json:"missing"`
}

// SessionSummary is the listing view of a stored session.
type SessionSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	SampleCount int       `json:"sampleCount"`
}
