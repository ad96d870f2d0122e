package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/biomech/internal/emitter"
	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/recorder"
	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// recordOptions holds the flags of the record command
type recordOptions struct {
	sourceOptions
	Name     string
	Type     string
	Duration time.Duration
	Interval time.Duration
	MinScore float64
}

var recordOpts recordOptions

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record joint angles from the camera, a video file or a keypoint dump",
	Long: `Starts a recording immediately and stops it on Ctrl+C, after --duration, or when the input runs out.
The finished session is saved to the database and announced over MQTT when a broker is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord(cmd.Context(), recordOpts)
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordOpts.Name, "name", "n", "", "Session name (default: timestamp)")
	recordCmd.Flags().StringVarP(&recordOpts.Type, "type", "t", "", "Exercise type, e.g. squat")
	recordCmd.Flags().StringVarP(&recordOpts.Input, "input", "i", "", "Video file to analyse instead of the camera")
	recordCmd.Flags().StringVarP(&recordOpts.Replay, "replay", "r", "", "Keypoint dump (JSON) to replay instead of running the model")
	recordCmd.Flags().DurationVarP(&recordOpts.Duration, "duration", "d", 0, "Stop automatically after this long (0 = until Ctrl+C)")
	recordCmd.Flags().DurationVar(&recordOpts.Interval, "interval", -1, "Minimum time between samples (default: from config)")
	recordCmd.Flags().Float64Var(&recordOpts.MinScore, "min-score", -1, "Keypoint confidence threshold (default: from config)")
	rootCmd.AddCommand(recordCmd)
}

// validateRecordFlags ensures all CLI arguments are valid before starting heavy processes.
// Negative interval and min-score mean "use the configured value".
func validateRecordFlags(opts *recordOptions) error {
	if opts.Input != "" && opts.Replay != "" {
		return errors.New("--input and --replay are mutually exclusive")
	}
	for _, path := range []string{opts.Input, opts.Replay} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("input file does not exist: %s", path)
			}
			return fmt.Errorf("unable to access input file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("input path is a directory, expected a file: %s", path)
		}
	}
	if opts.Duration < 0 {
		return fmt.Errorf("invalid duration: must be >= 0, got %v", opts.Duration)
	}
	if opts.MinScore > 1 {
		return fmt.Errorf("invalid min-score: must be between 0.0 and 1.0, got %f", opts.MinScore)
	}
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Type = strings.TrimSpace(opts.Type)
	return nil
}

// runRecord orchestrates a single recording: source startup, sampling, persistence and the summary report.
func runRecord(ctx context.Context, opts recordOptions) error {
	if err := validateRecordFlags(&opts); err != nil {
		utils.ShowError("Invalid record flags", err, nil)
		return err
	}
	if opts.MinScore >= 0 {
		Cfg.Model.MinScore = opts.MinScore
	}
	interval := time.Duration(Cfg.Sampling.FrameInterval)
	if opts.Interval >= 0 {
		interval = opts.Interval
	}
	if opts.Name == "" {
		opts.Name = "Session " + time.Now().Format("2006-01-02 15:04")
	}

	// 1. Database is initialized in Root PersistentPreRun

	// 2. Start the capture stack. Its context outlives Ctrl+C so the in-flight frame can settle.
	srcCtx, stopSource := context.WithCancel(context.Background())
	defer stopSource()
	src, err := openSource(srcCtx, opts.sourceOptions)
	if err != nil {
		utils.ShowError("Failed to open keypoint source", err, nil)
		return err
	}
	defer src.Close()

	if opts.Input != "" {
		if frames := utils.GetTotalFrames(opts.Input); frames > 0 {
			fmt.Fprintf(os.Stderr, "📼 Input has %d frames\n", frames)
		}
	}

	// 3. Optional MQTT announcements
	var mqtt *emitter.MQTTEmitter
	if Cfg.MQTT.Broker != "" {
		mqtt, err = emitter.Connect(ctx, Cfg.MQTT, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  MQTT unavailable, continuing without it: %v\n", err)
		} else {
			defer mqtt.Disconnect()
		}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("🎥 Recording %q", opts.Name)),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)

	observers := pipeline.Observers{&barObserver{bar: bar}}
	if mqtt != nil {
		observers = append(observers, mqtt)
	}

	meta := types.SessionMeta{Name: opts.Name, Type: opts.Type}
	if mqtt != nil {
		mqtt.PublishState("recording", meta)
	}
	s, loopErr := captureSession(ctx, src, meta, opts.Duration, pipeline.Config{
		FrameInterval: interval,
		Observer:      observers,
		Logger:        logger,
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if mqtt != nil {
		mqtt.PublishState("idle", meta)
	}

	if errors.Is(loopErr, pipeline.ErrSourceClosed) {
		src.report()
	}

	if len(s.JointData) == 0 {
		fmt.Fprintf(os.Stderr, "⚠️  No pose was detected; saving an empty session.\n")
	}

	// Background: ctx may already be cancelled by Ctrl+C
	id, err := DB.Save(context.Background(), s)
	if err != nil {
		utils.ShowError("Failed to save session", err, nil)
		return err
	}
	s.ID = id

	if mqtt != nil {
		if err := mqtt.PublishSession(session.Summarize(s)); err != nil {
			logger.Warn("session announcement failed", "error", err)
		}
	}

	printSummary(os.Stderr, s)
	fmt.Fprintf(os.Stderr, "💾 Saved session %s\n", id)
	return nil
}

// captureSession records until ctx is cancelled, the duration elapses or the source runs out.
// It returns the finalized session and the reason the sampling loop ended early, if any.
func captureSession(ctx context.Context, src pipeline.KeypointSource, meta types.SessionMeta, duration time.Duration, cfg pipeline.Config) (types.Session, error) {
	sampler := pipeline.NewSampler(src, pipeline.NewProcessor(), cfg)
	rec := recorder.New(sampler, cfg.Logger)
	rec.Start(meta)

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "\n🛑 Interrupted, finishing recording...\n")
	case <-timeout:
	case <-rec.Done():
	}

	s, _ := rec.Stop()
	rec.Wait()
	return s, rec.Err()
}

// barObserver advances the spinner once per retained sample.
type barObserver struct {
	pipeline.BaseObserver
	bar *progressbar.ProgressBar
}

func (o *barObserver) SampleRetained(types.JointAngleSample) {
	o.bar.Add(1)
}
