package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/worker"
)

// FrameSource yields encoded frames.
type FrameSource interface {
	Next(ctx context.Context) (types.FrameTask, error)
}

// Estimator runs the pose model on one encoded frame.
type Estimator interface {
	ProcessFrame(jpeg []byte) (*types.KeypointSet, error)
}

// Source pairs a frame source with a pose model to form a pipeline.KeypointSource.
type Source struct {
	frames    FrameSource
	estimator Estimator
}

func NewSource(frames FrameSource, estimator Estimator) *Source {
	return &Source{frames: frames, estimator: estimator}
}

// Detect grabs the latest frame and runs the model on it. The end of the input and a dead
// worker both surface as pipeline.ErrSourceClosed.
func (s *Source) Detect(ctx context.Context) (*types.KeypointSet, error) {
	frame, err := s.frames.Next(ctx)
	if errors.Is(err, ErrInputEnded) {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrSourceClosed, err)
	}
	if err != nil {
		return nil, err
	}

	set, err := s.estimator.ProcessFrame(frame.Data)
	if errors.Is(err, worker.ErrWorkerExited) {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrSourceClosed, err)
	}
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
	}
	return set, nil
}
