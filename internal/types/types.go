package types

import (
	"fmt"
	"strings"
)

// FrameTask represents a single captured frame handed to the pose worker
type FrameTask struct {
	Index int
	Data  []byte
}

// Point2D is a pixel-space coordinate as reported by the pose model.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmark identifies an anatomical keypoint. The order matches the 17-point COCO layout
// emitted by MoveNet, so a landmark doubles as its index in the model output.
type Landmark int

const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

func (l Landmark) String() string {
	if l < 0 || l >= NumLandmarks {
		return fmt.Sprintf("landmark(%d)", int(l))
	}
	return landmarkNames[l]
}

// ParseLandmark accepts the model's snake_case names ("left_knee") as well as camelCase ("leftKnee").
func ParseLandmark(name string) (Landmark, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	for i, n := range landmarkNames {
		if strings.ReplaceAll(n, "_", "") == normalized {
			return Landmark(i), nil
		}
	}
	return 0, fmt.Errorf("unknown landmark %q", name)
}

// Keypoint is one landmark slot of a detection. Present is false when the model
// did not report the landmark or reported it below the confidence floor.
type Keypoint struct {
	Point   Point2D
	Score   float64
	Present bool
}

// KeypointSet is a single-person detection for one frame.
type KeypointSet struct {
	Keypoints [NumLandmarks]Keypoint
}

// Set marks a landmark as detected at p.
func (k *KeypointSet) Set(l Landmark, p Point2D, score float64) {
	k.Keypoints[l] = Keypoint{Point: p, Score: score, Present: true}
}

// Clear marks a landmark as absent.
func (k *KeypointSet) Clear(l Landmark) {
	k.Keypoints[l] = Keypoint{}
}

// Point returns the landmark position and whether it was detected.
func (k *KeypointSet) Point(l Landmark) (Point2D, bool) {
	kp := k.Keypoints[l]
	return kp.Point, kp.Present
}

// DetectedKeypoint is the wire shape of a single keypoint produced by the pose worker and replay dumps.
type DetectedKeypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// DetectionResult matches the JSON structure returned by the Python pose worker.
// An empty Keypoints slice means no pose was found in the frame.
type DetectionResult struct {
	Keypoints []DetectedKeypoint `json:"keypoints"`
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// ToKeypointSet converts wire keypoints into a KeypointSet, treating anything scored below
// minScore as absent. Unknown landmark names are ignored. It returns nil when no keypoint survives.
func ToKeypointSet(kps []DetectedKeypoint, minScore float64) *KeypointSet {
	if len(kps) == 0 {
		return nil
	}
	set := &KeypointSet{}
	kept := 0
	for _, kp := range kps {
		l, err := ParseLandmark(kp.Name)
		if err != nil {
			continue
		}
		if kp.Score < minScore {
			continue
		}
		set.Set(l, Point2D{X: kp.X, Y: kp.Y}, kp.Score)
		kept++
	}
	if kept == 0 {
		return nil
	}
	return set
}
