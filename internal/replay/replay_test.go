package replay

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/types"
)

const dump = `{
  "fps": 30,
  "frames": {
    "1": {"keypoints": [
      {"name": "left_hip", "x": 110, "y": 250, "score": 0.9},
      {"name": "left_knee", "x": 100, "y": 340, "score": 0.8},
      {"name": "left_ankle", "x": 115, "y": 430, "score": 0.2}
    ]},
    "3": {"2d_joints": {
      "left_hip": {"x": 110, "y": 250},
      "left_knee": {"x": 100, "y": 340},
      "left_ankle": {"x": 115, "y": 430},
      "right_ankle": {"x": 185, "y": 430, "score": 0.1}
    }}
  }
}`

func TestReplaySource(t *testing.T) {
	d, err := Decode(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.FPS != 30 {
		t.Errorf("fps = %v", d.FPS)
	}

	src := NewSource(d, 0.3)
	ctx := context.Background()
	if src.Remaining() != 3 {
		t.Errorf("expected 3 frames to replay, got %d", src.Remaining())
	}

	// Frame 1: ankle below the confidence floor.
	set, err := src.Detect(ctx)
	if err != nil || set == nil {
		t.Fatalf("frame 1: %v, %v", set, err)
	}
	if _, ok := set.Point(types.LeftAnkle); ok {
		t.Error("frame 1: low-confidence ankle should be absent")
	}

	// Frame 2: missing from the dump, so no detection.
	set, err = src.Detect(ctx)
	if err != nil || set != nil {
		t.Fatalf("frame 2: expected no detection, got %v, %v", set, err)
	}

	// Frame 3: map form, scores optional.
	set, err = src.Detect(ctx)
	if err != nil || set == nil {
		t.Fatalf("frame 3: %v, %v", set, err)
	}
	if p, ok := set.Point(types.LeftAnkle); !ok || p.Y != 430 {
		t.Errorf("frame 3: ankle = %+v (present=%v)", p, ok)
	}
	if _, ok := set.Point(types.RightAnkle); ok {
		t.Error("frame 3: an explicit low score must still apply")
	}

	if _, err := src.Detect(ctx); !errors.Is(err, pipeline.ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed after last frame, got %v", err)
	}
}

func TestReplayThroughSampler(t *testing.T) {
	d, _ := Decode(strings.NewReader(dump))
	gate := &sliceGate{}
	err := pipeline.NewSampler(NewSource(d, 0.3), nil, pipeline.Config{}).Run(context.Background(), gate)
	if !errors.Is(err, pipeline.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
	if len(gate.samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(gate.samples))
	}
	if _, ok := gate.samples[0].Angles.Get(types.LeftKneeAngle); ok {
		t.Error("knee angle needs the ankle, which was below the floor in frame 1")
	}
	if _, ok := gate.samples[1].Angles.Get(types.LeftKneeAngle); !ok {
		t.Error("knee angle should be present in frame 3")
	}
}

type sliceGate struct {
	samples []types.JointAngleSample
}

func (g *sliceGate) Recording() bool { return true }

func (g *sliceGate) Commit(s types.JointAngleSample) bool {
	g.samples = append(g.samples, s)
	return true
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squat.json")
	if err := os.WriteFile(path, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Path != path || len(d.Frames) != 2 {
		t.Errorf("unexpected dump %+v", d)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecodeRejectsEmptyDump(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"frames": {}}`)); err == nil {
		t.Error("expected error for a dump without frames")
	}
	if _, err := Decode(strings.NewReader(`[`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestReplaySparseFrameNumbers(t *testing.T) {
	frame := Frame{Keypoints: []types.DetectedKeypoint{{Name: "left_hip", X: 1, Y: 2, Score: 1}}}
	d := &Dump{Frames: map[int]Frame{
		0:             frame,
		1_000_000_000: frame,
		math.MaxInt:   frame,
	}}

	src := NewSource(d, 0.3)
	if src.Remaining() != 5 {
		t.Fatalf("expected 3 frames and 2 gaps, got %d steps", src.Remaining())
	}

	ctx := context.Background()
	want := []bool{true, false, true, false, true}
	for i, present := range want {
		set, err := src.Detect(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if (set != nil) != present {
			t.Errorf("step %d: detection = %v, want present=%v", i, set, present)
		}
	}
	if _, err := src.Detect(ctx); !errors.Is(err, pipeline.ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed, got %v", err)
	}
}

func TestReplayCancelled(t *testing.T) {
	d, _ := Decode(strings.NewReader(dump))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSource(d, 0).Detect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
