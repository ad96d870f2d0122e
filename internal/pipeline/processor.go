// Package pipeline turns pose detections into timestamped joint-angle samples.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/andresmejia3/biomech/internal/angle"
	"github.com/andresmejia3/biomech/internal/types"
)

// ErrSourceClosed is returned by a KeypointSource that has no more frames to offer.
var ErrSourceClosed = errors.New("keypoint source closed")

// KeypointSource supplies the current pose detection.
//
// Detect returns (nil, nil) when no pose was found in the current frame. It may block for as long
// as the model needs; the sampler never imposes a timeout on it.
type KeypointSource interface {
	Detect(ctx context.Context) (*types.KeypointSet, error)
}

// Processor derives a JointAngleSample from one detection.
type Processor struct {
	// Now stamps samples at emission time. Defaults to time.Now.
	Now func() time.Time
}

// NewProcessor returns a processor using the wall clock.
func NewProcessor() *Processor {
	return &Processor{Now: time.Now}
}

// Process computes every joint angle for the set. Joints whose landmarks are missing stay absent.
func (p *Processor) Process(set *types.KeypointSet) types.JointAngleSample {
	angles := angle.Compute(set)
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return types.JointAngleSample{Timestamp: now(), Angles: angles}
}
