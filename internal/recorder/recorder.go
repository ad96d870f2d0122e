// Package recorder owns the Idle/Recording state machine that gates sample retention.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
)

// State is the controller's recording state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Runner is the sampling loop the controller arms on Start.
type Runner interface {
	Run(ctx context.Context, gate pipeline.Gate) error
}

// Controller gates the sampling loop. At most one recording exists at a time, and it is
// the only writer of its buffer.
type Controller struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	gen     uint64
	buf     *session.Buffer
	meta    types.SessionMeta
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// New creates an idle controller driving runner.
func New(runner Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	closed := make(chan struct{})
	close(closed)
	return &Controller{runner: runner, logger: logger, now: time.Now, done: closed}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves Idle -> Recording with a fresh buffer and arms the sampling loop.
// It returns false, leaving the current recording untouched, when already recording.
func (c *Controller) Start(meta types.SessionMeta) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Recording {
		return false
	}

	c.gen++
	c.state = Recording
	c.buf = session.NewBuffer()
	c.meta = meta
	c.started = c.now()
	c.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	prev := c.done
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	g := &gate{c: c, gen: c.gen}
	go func() {
		defer close(done)
		defer cancel()
		// A detection from the previous recording may still be in flight; the source is not
		// shared between two loops.
		<-prev
		err := c.runner.Run(ctx, g)
		c.loopExited(g.gen, err)
	}()

	c.logger.Info("recording started", "name", meta.Name, "type", meta.Type)
	return true
}

// Stop moves Recording -> Idle and returns the finalized session. It reports false when idle.
// A detection still in flight is discarded when it completes.
func (c *Controller) Stop() (types.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording {
		return types.Session{}, false
	}
	return c.finalizeLocked(), true
}

func (c *Controller) finalizeLocked() types.Session {
	c.state = Idle
	c.cancel()
	s := session.Finalize(c.buf, c.meta, c.started, c.now())
	c.logger.Info("recording stopped", "name", s.Name, "samples", len(s.JointData))
	return s
}

// loopExited records why the loop ended. The recording itself stays open until Stop.
func (c *Controller) loopExited(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.lastErr = err
		if c.state == Recording {
			c.logger.Info("sampling loop ended before stop", "reason", err)
		}
	}
}

// Done is closed when the current sampling loop has exited.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Wait blocks until the current sampling loop has exited.
func (c *Controller) Wait() {
	<-c.Done()
}

// Err returns the error that ended the last sampling loop, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Live returns a snapshot of the in-progress recording without blocking the loop.
func (c *Controller) Live() []types.JointAngleSample {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	if buf == nil {
		return nil
	}
	return buf.Snapshot()
}

// Status describes the controller for status endpoints.
type Status struct {
	State     string    `json:"state"`
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type,omitempty"`
	StartTime time.Time `json:"startTime,omitempty"`
	Samples   int       `json:"samples"`
}

// Status returns the current state and live sample count.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state.String()}
	if c.state == Recording {
		st.Name = c.meta.Name
		st.Type = c.meta.Type
		st.StartTime = c.started
	}
	if c.buf != nil {
		st.Samples = c.buf.Len()
	}
	return st
}

// gate binds one sampling loop to the recording generation that armed it.
type gate struct {
	c   *Controller
	gen uint64
}

func (g *gate) Recording() bool {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return g.c.state == Recording && g.c.gen == g.gen
}

func (g *gate) Commit(s types.JointAngleSample) bool {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	if g.c.state != Recording || g.c.gen != g.gen {
		return false
	}
	// Wall-clock steps must not break the non-decreasing timestamp order of the series.
	if last, ok := g.c.buf.Last(); ok && s.Timestamp.Before(last.Timestamp) {
		s.Timestamp = last.Timestamp
	}
	if err := g.c.buf.Append(s); err != nil {
		g.c.logger.Warn("sample rejected", "error", err)
		return false
	}
	return true
}
