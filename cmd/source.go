package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/biomech/internal/capture"
	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/replay"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/andresmejia3/biomech/internal/worker"
)

// sourceOptions picks where keypoints come from. With neither field set the configured camera is used.
type sourceOptions struct {
	Input  string // video file decoded in real time
	Replay string // pre-computed keypoint dump
}

// keypointSource is a pipeline.KeypointSource plus whatever processes back it.
type keypointSource struct {
	pipeline.KeypointSource
	grabber *capture.Grabber
	worker  *worker.PoseWorker
	replay  *replay.Source
}

// openSource starts the capture stack. Cancelling ctx stops the decoder.
func openSource(ctx context.Context, opts sourceOptions) (*keypointSource, error) {
	if opts.Replay != "" {
		dump, err := replay.Load(opts.Replay)
		if err != nil {
			return nil, fmt.Errorf("failed to load keypoint dump: %w", err)
		}
		src := replay.NewSource(dump, Cfg.Model.MinScore)
		logger.Info("replaying keypoint dump", "path", dump.Path, "frames", src.Remaining())
		return &keypointSource{KeypointSource: src, replay: src}, nil
	}

	capCfg := capture.Config{Device: Cfg.Capture.Device, Format: Cfg.Capture.Format, FPS: Cfg.Capture.FPS}
	if opts.Input != "" {
		capCfg = capture.Config{Device: opts.Input}
	}

	w, err := worker.NewPoseWorker(0, worker.Config{
		Python:   Cfg.Model.Python,
		Script:   Cfg.Model.Script,
		MinScore: Cfg.Model.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("pose worker startup failed: %w", err)
	}

	grabber := capture.NewGrabber(capCfg, logger)
	if err := grabber.Start(ctx); err != nil {
		w.Close()
		return nil, err
	}

	return &keypointSource{
		KeypointSource: capture.NewSource(grabber, w),
		grabber:        grabber,
		worker:         w,
	}, nil
}

// report shows decoder or worker logs when the input ended because something crashed.
func (s *keypointSource) report() {
	if s.grabber != nil {
		if err := s.grabber.Err(); err != nil {
			utils.ShowError("Capture input failed", err, s.grabber.Logs())
		}
		decoded, dropped := s.grabber.Stats()
		logger.Debug("capture stats", "decoded", decoded, "skipped", dropped)
	}
}

// Close stops the pose worker. The decoder is stopped by the context passed to openSource.
func (s *keypointSource) Close() {
	if s.worker != nil {
		s.worker.Close()
	}
}
