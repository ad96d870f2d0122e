// Package capture turns a camera or video file into a stream of JPEG frames and feeds them to the pose model.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/utils"
)

const megabyte = 1024 * 1024

// ErrInputEnded is returned by Next once the input is exhausted or the decoder died.
var ErrInputEnded = errors.New("capture input ended")

// Config selects the capture input.
type Config struct {
	Device string // camera device or file path
	Format string // ffmpeg input format; empty for files
	FPS    int
}

// Grabber decodes frames continuously and keeps only the most recent one.
// A slow consumer never stalls decoding; it simply skips the frames it was too busy to see.
type Grabber struct {
	cfg    Config
	logger *slog.Logger

	slot chan types.FrameTask // capacity 1, latest wins
	done chan struct{}

	mu  sync.Mutex
	cmd *utils.SafeCommand
	err error

	decoded atomic.Uint64
	dropped atomic.Uint64
}

// NewGrabber prepares a grabber; nothing runs until Start.
func NewGrabber(cfg Config, logger *slog.Logger) *Grabber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grabber{
		cfg:    cfg,
		logger: logger,
		slot:   make(chan types.FrameTask, 1),
		done:   make(chan struct{}),
	}
}

// Start launches ffmpeg and begins filling the frame slot. Cancelling ctx kills the decoder.
func (g *Grabber) Start(ctx context.Context) error {
	ffmpeg := utils.NewFFmpegCmd(g.cfg.Device, g.cfg.Format, g.cfg.FPS)
	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	g.mu.Lock()
	g.cmd = ffmpeg
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		if ffmpeg.Process != nil {
			ffmpeg.Process.Kill()
		}
	}()

	go func() {
		g.pump(out)
		if err := ffmpeg.Wait(); err != nil && ctx.Err() == nil {
			g.setErr(fmt.Errorf("ffmpeg exited: %w", err))
		}
		close(g.done)
	}()

	g.logger.Info("capture started", "device", g.cfg.Device, "format", g.cfg.Format, "fps", g.cfg.FPS)
	return nil
}

// startReader feeds frames from r instead of a decoder process.
func (g *Grabber) startReader(r io.Reader) {
	go func() {
		g.pump(r)
		close(g.done)
	}()
}

func (g *Grabber) pump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	index := 0
	for scanner.Scan() {
		index++
		g.decoded.Add(1)
		data := make([]byte, len(scanner.Bytes()))
		copy(data, scanner.Bytes())
		g.offer(types.FrameTask{Index: index, Data: data})
	}
	if err := scanner.Err(); err != nil {
		g.setErr(fmt.Errorf("frame scanner failed: %w", err))
	}
}

// offer replaces whatever frame is waiting. pump is the only sender, so the final send never blocks.
func (g *Grabber) offer(f types.FrameTask) {
	select {
	case g.slot <- f:
		return
	default:
	}
	select {
	case <-g.slot:
		g.dropped.Add(1)
	default:
	}
	g.slot <- f
}

func (g *Grabber) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		g.err = err
	}
}

// Next blocks for the newest undelivered frame. Once the input has ended and every frame has been
// handed out it returns ErrInputEnded, wrapping the decoder failure if there was one.
func (g *Grabber) Next(ctx context.Context) (types.FrameTask, error) {
	select {
	case f := <-g.slot:
		return f, nil
	default:
	}

	select {
	case f := <-g.slot:
		return f, nil
	case <-ctx.Done():
		return types.FrameTask{}, ctx.Err()
	case <-g.done:
		select {
		case f := <-g.slot:
			return f, nil
		default:
		}
		if err := g.Err(); err != nil {
			return types.FrameTask{}, fmt.Errorf("%w: %v", ErrInputEnded, err)
		}
		return types.FrameTask{}, ErrInputEnded
	}
}

// Err returns the decoder failure, if any.
func (g *Grabber) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Logs returns what ffmpeg wrote to stderr.
func (g *Grabber) Logs() *utils.SafeCommand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cmd
}

// Stats reports decoded and skipped frame counts.
func (g *Grabber) Stats() (decoded, dropped uint64) {
	return g.decoded.Load(), g.dropped.Load()
}
