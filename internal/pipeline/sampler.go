package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/andresmejia3/biomech/internal/types"
)

// Gate decides whether the loop keeps running and whether a finished sample is retained.
type Gate interface {
	// Recording reports whether another sampling attempt should be armed.
	Recording() bool
	// Commit retains the sample if the recording that armed this attempt is still active.
	// A false return means the recording ended while the detection was in flight.
	Commit(types.JointAngleSample) bool
}

// Observer is notified of every sampling attempt. Implementations must not block.
type Observer interface {
	FrameDetected(latency time.Duration)
	FrameSkipped(latency time.Duration)
	DetectFailed(err error)
	SampleRetained(s types.JointAngleSample)
	SampleDropped(s types.JointAngleSample)
}

// BaseObserver implements Observer with no-ops so implementations can pick the events they need.
type BaseObserver struct{}

func (BaseObserver) FrameDetected(time.Duration)           {}
func (BaseObserver) FrameSkipped(time.Duration)            {}
func (BaseObserver) DetectFailed(error)                    {}
func (BaseObserver) SampleRetained(types.JointAngleSample) {}
func (BaseObserver) SampleDropped(types.JointAngleSample)  {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) FrameDetected(d time.Duration) {
	for _, ob := range o {
		ob.FrameDetected(d)
	}
}

func (o Observers) FrameSkipped(d time.Duration) {
	for _, ob := range o {
		ob.FrameSkipped(d)
	}
}

func (o Observers) DetectFailed(err error) {
	for _, ob := range o {
		ob.DetectFailed(err)
	}
}

func (o Observers) SampleRetained(s types.JointAngleSample) {
	for _, ob := range o {
		ob.SampleRetained(s)
	}
}

func (o Observers) SampleDropped(s types.JointAngleSample) {
	for _, ob := range o {
		ob.SampleDropped(s)
	}
}

// Config tunes the sampling loop.
type Config struct {
	// FrameInterval is the minimum spacing between the starts of two attempts.
	// Zero runs attempts back to back, paced only by detection latency.
	FrameInterval time.Duration
	// ErrorBackoff is the pause after a failed detection.
	ErrorBackoff time.Duration
	Observer     Observer
	Logger       *slog.Logger
}

// Sampler is the self-rescheduling detect -> compute -> commit loop.
// A new attempt is armed only after the previous detection has settled.
type Sampler struct {
	source    KeypointSource
	processor *Processor
	cfg       Config
}

// NewSampler wires a source and processor into a loop.
func NewSampler(source KeypointSource, processor *Processor, cfg Config) *Sampler {
	if cfg.Observer == nil {
		cfg.Observer = BaseObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 50 * time.Millisecond
	}
	if processor == nil {
		processor = NewProcessor()
	}
	return &Sampler{source: source, processor: processor, cfg: cfg}
}

// Run samples until the gate closes or ctx is cancelled, both of which return nil.
// It returns ErrSourceClosed when the source runs out of frames. Detection errors are logged and skipped.
func (s *Sampler) Run(ctx context.Context, gate Gate) error {
	log := s.cfg.Logger
	obs := s.cfg.Observer

	for {
		if ctx.Err() != nil || !gate.Recording() {
			return nil
		}

		started := time.Now()
		set, err := s.source.Detect(ctx)
		latency := time.Since(started)

		switch {
		case errors.Is(err, ErrSourceClosed):
			log.Info("keypoint source exhausted")
			return ErrSourceClosed
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			obs.DetectFailed(err)
			log.Warn("detection failed, skipping frame", "error", err, "latency", latency)
			if !sleep(ctx, s.cfg.ErrorBackoff) {
				return nil
			}
			continue
		case set == nil:
			obs.FrameSkipped(latency)
		default:
			obs.FrameDetected(latency)
			sample := s.processor.Process(set)
			if !gate.Commit(sample) {
				obs.SampleDropped(sample)
				log.Debug("recording stopped during detection, sample dropped")
				return nil
			}
			obs.SampleRetained(sample)
		}

		if s.cfg.FrameInterval > 0 && !sleep(ctx, time.Until(started.Add(s.cfg.FrameInterval))) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
