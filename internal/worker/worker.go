package worker

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/utils" // Using the SafeCommand wrapper
)

// ErrWorkerExited wraps pipe failures: the Python process is gone and no further frames can be processed.
var ErrWorkerExited = errors.New("pose worker exited")

// Config selects the pose model process.
type Config struct {
	Python   string  // interpreter, e.g. "python3"
	Script   string  // path to the worker script
	MinScore float64 // keypoints scored below this are treated as absent
}

// PoseWorker runs one pose-estimation process and talks to it over stdin and an FD 3 side channel.
type PoseWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	MinScore float64

	mu sync.Mutex // one request in flight per process
}

func NewPoseWorker(id int, cfg Config) (*PoseWorker, error) {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	py := utils.NewSafeCommand(python, "-u", cfg.Script)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PoseWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		MinScore: cfg.MinScore,
	}, nil
}

func (w *PoseWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends one JPEG to the model and returns the detected pose, or nil when no one is in frame.
// A model-side error is returned as a plain error; a broken pipe wraps ErrWorkerExited.
func (w *PoseWorker) ProcessFrame(jpeg []byte) (*types.KeypointSet, error) {
	w.mu.Lock()
	resp, err := w.Communicate(jpeg)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerExited, err)
	}

	var res struct {
		types.DetectionResult
		types.ErrorResult
	}
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("python worker error: %s", res.Error)
	}
	return types.ToKeypointSet(res.Keypoints, w.MinScore), nil
}

func (w *PoseWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
