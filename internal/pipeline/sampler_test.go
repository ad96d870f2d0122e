package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
)

// scriptedSource replays a fixed list of detections and then reports ErrSourceClosed.
type scriptedSource struct {
	mu     sync.Mutex
	frames []frame
	calls  int
}

type frame struct {
	set *types.KeypointSet
	err error
}

func (s *scriptedSource) Detect(ctx context.Context) (*types.KeypointSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.frames) {
		return nil, ErrSourceClosed
	}
	f := s.frames[s.calls]
	s.calls++
	return f.set, f.err
}

// bufferGate retains samples while open is true.
type bufferGate struct {
	mu   sync.Mutex
	open bool
	buf  *session.Buffer
}

func (g *bufferGate) Recording() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *bufferGate) Commit(s types.JointAngleSample) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return false
	}
	return g.buf.Append(s) == nil
}

type countingObserver struct {
	BaseObserver
	detected, skipped, failed, retained, dropped int
}

func (c *countingObserver) FrameDetected(time.Duration)           { c.detected++ }
func (c *countingObserver) FrameSkipped(time.Duration)            { c.skipped++ }
func (c *countingObserver) DetectFailed(error)                    { c.failed++ }
func (c *countingObserver) SampleRetained(types.JointAngleSample) { c.retained++ }
func (c *countingObserver) SampleDropped(types.JointAngleSample)  { c.dropped++ }

func completeSet() *types.KeypointSet {
	set := &types.KeypointSet{}
	pts := map[types.Landmark]types.Point2D{
		types.LeftShoulder:  {X: 280, Y: 120},
		types.RightShoulder: {X: 360, Y: 120},
		types.LeftElbow:     {X: 250, Y: 190},
		types.RightElbow:    {X: 390, Y: 190},
		types.LeftWrist:     {X: 270, Y: 260},
		types.RightWrist:    {X: 370, Y: 260},
		types.LeftHip:       {X: 290, Y: 270},
		types.RightHip:      {X: 350, Y: 270},
		types.LeftKnee:      {X: 270, Y: 360},
		types.RightKnee:     {X: 370, Y: 360},
		types.LeftAnkle:     {X: 295, Y: 450},
		types.RightAnkle:    {X: 345, Y: 450},
	}
	for l, p := range pts {
		set.Set(l, p, 0.95)
	}
	return set
}

func TestSamplerScenario(t *testing.T) {
	missingElbow := completeSet()
	missingElbow.Clear(types.LeftElbow)

	src := &scriptedSource{frames: []frame{
		{set: completeSet()},
		{set: completeSet()},
		{set: nil}, // no pose this frame
		{set: missingElbow},
	}}
	gate := &bufferGate{open: true, buf: session.NewBuffer()}
	obs := &countingObserver{}

	s := NewSampler(src, NewProcessor(), Config{Observer: obs})
	if err := s.Run(context.Background(), gate); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}

	samples := gate.buf.Snapshot()
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples (frame 3 skipped), got %d", len(samples))
	}
	for i := 0; i < 2; i++ {
		if got := samples[i].Angles.Present(); got != int(types.NumJoints) {
			t.Errorf("sample %d: expected all joints, got %d", i+1, got)
		}
	}
	last := samples[2].Angles
	if _, ok := last.Get(types.LeftElbowAngle); ok {
		t.Error("sample 3: leftElbow should be absent")
	}
	for _, j := range types.AllJoints {
		if j == types.LeftElbowAngle {
			continue
		}
		if v, ok := last.Get(j); !ok || v < 0 || v > 180 {
			t.Errorf("sample 3: %s should be a valid angle, got %v (present=%v)", j, v, ok)
		}
	}
	if obs.detected != 3 || obs.skipped != 1 || obs.retained != 3 {
		t.Errorf("unexpected observer counts %+v", obs)
	}
}

func TestSamplerSurvivesDetectionErrors(t *testing.T) {
	src := &scriptedSource{frames: []frame{
		{err: errors.New("decoder hiccup")},
		{set: completeSet()},
		{err: errors.New("worker timeout")},
		{set: completeSet()},
	}}
	gate := &bufferGate{open: true, buf: session.NewBuffer()}
	obs := &countingObserver{}

	s := NewSampler(src, nil, Config{Observer: obs, ErrorBackoff: time.Millisecond})
	if err := s.Run(context.Background(), gate); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
	if gate.buf.Len() != 2 {
		t.Errorf("expected 2 samples after 2 failures, got %d", gate.buf.Len())
	}
	if obs.failed != 2 {
		t.Errorf("expected 2 failures, got %d", obs.failed)
	}
}

func TestSamplerDoesNotRunWhenClosed(t *testing.T) {
	src := &scriptedSource{frames: []frame{{set: completeSet()}}}
	gate := &bufferGate{open: false, buf: session.NewBuffer()}

	if err := NewSampler(src, nil, Config{}).Run(context.Background(), gate); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if src.calls != 0 {
		t.Errorf("source was called %d times while not recording", src.calls)
	}
}

// closingSource closes the gate while a detection is in flight.
type closingSource struct {
	gate *bufferGate
}

func (c *closingSource) Detect(ctx context.Context) (*types.KeypointSet, error) {
	c.gate.mu.Lock()
	c.gate.open = false
	c.gate.mu.Unlock()
	return completeSet(), nil
}

func TestSamplerDropsInFlightResultAfterStop(t *testing.T) {
	gate := &bufferGate{open: true, buf: session.NewBuffer()}
	obs := &countingObserver{}

	err := NewSampler(&closingSource{gate: gate}, nil, Config{Observer: obs}).Run(context.Background(), gate)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if gate.buf.Len() != 0 {
		t.Errorf("in-flight sample was appended after stop")
	}
	if obs.dropped != 1 {
		t.Errorf("expected 1 dropped sample, got %d", obs.dropped)
	}
}

func TestSamplerFrameInterval(t *testing.T) {
	src := &scriptedSource{frames: []frame{{set: completeSet()}, {set: completeSet()}, {set: completeSet()}}}
	gate := &bufferGate{open: true, buf: session.NewBuffer()}

	started := time.Now()
	NewSampler(src, nil, Config{FrameInterval: 20 * time.Millisecond}).Run(context.Background(), gate)
	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Errorf("3 attempts at 20ms spacing finished in %v", elapsed)
	}
}

func TestSamplerCancel(t *testing.T) {
	src := &scriptedSource{frames: []frame{{set: completeSet()}}}
	gate := &bufferGate{open: true, buf: session.NewBuffer()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSampler(src, nil, Config{}).Run(ctx, gate); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	if gate.buf.Len() != 0 {
		t.Error("cancelled sampler must not append")
	}
}

func TestProcessorStampsEmissionTime(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &Processor{Now: func() time.Time { return fixed }}

	s := p.Process(completeSet())
	if !s.Timestamp.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, s.Timestamp)
	}
}
