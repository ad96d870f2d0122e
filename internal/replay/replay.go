// Package replay feeds pre-computed keypoint dumps through the sampling loop in place of a live camera.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/types"
)

// Position is a 2-D joint position. A missing score means full confidence.
type Position struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Score *float64 `json:"score,omitempty"`
}

// Frame is one frame's detection. Either list form or the joint map form may be used.
type Frame struct {
	Keypoints []types.DetectedKeypoint `json:"keypoints,omitempty"`
	Joint2D   map[string]Position      `json:"2d_joints,omitempty"`
}

// Dump is a keypoint recording keyed by frame number. Frame numbers with no entry had no detection.
type Dump struct {
	Path   string        `json:"-"`
	FPS    float64       `json:"fps,omitempty"`
	Frames map[int]Frame `json:"frames"`
}

// Load reads a dump file from disk.
func Load(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Path = path
	return d, nil
}

// Decode parses a dump.
func Decode(r io.Reader) (*Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode keypoint dump: %w", err)
	}
	if len(d.Frames) == 0 {
		return nil, fmt.Errorf("keypoint dump has no frames")
	}
	return &d, nil
}

// keypoints flattens either representation into wire keypoints.
func (f Frame) keypoints() []types.DetectedKeypoint {
	if len(f.Keypoints) > 0 {
		return f.Keypoints
	}
	names := make([]string, 0, len(f.Joint2D))
	for name := range f.Joint2D {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.DetectedKeypoint, 0, len(names))
	for _, name := range names {
		p := f.Joint2D[name]
		score := 1.0
		if p.Score != nil {
			score = *p.Score
		}
		out = append(out, types.DetectedKeypoint{Name: name, X: p.X, Y: p.Y, Score: score})
	}
	return out
}

// Source replays a dump one frame per Detect call, from the lowest frame number to the highest.
// A run of missing frame numbers replays as a single frame without a detection.
type Source struct {
	minScore float64

	mu    sync.Mutex
	steps []*Frame
	next  int
}

func NewSource(d *Dump, minScore float64) *Source {
	idx := make([]int, 0, len(d.Frames))
	for i := range d.Frames {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	steps := make([]*Frame, 0, 2*len(idx))
	for i, n := range idx {
		if i > 0 && n-1 > idx[i-1] {
			steps = append(steps, nil)
		}
		f := d.Frames[n]
		steps = append(steps, &f)
	}
	return &Source{minScore: minScore, steps: steps}
}

func (s *Source) Detect(ctx context.Context) (*types.KeypointSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.steps) {
		return nil, pipeline.ErrSourceClosed
	}
	f := s.steps[s.next]
	s.next++

	if f == nil {
		return nil, nil
	}
	return types.ToKeypointSet(f.keypoints(), s.minScore), nil
}

// Remaining reports how many frames have not been replayed yet.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}
