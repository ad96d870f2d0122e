package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/andresmejia3/biomech/internal/api"
	"github.com/andresmejia3/biomech/internal/emitter"
	"github.com/andresmejia3/biomech/internal/metrics"
	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/recorder"
	"github.com/andresmejia3/biomech/internal/store"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	sourceOptions
	Addr      string
	Ephemeral bool
	ReadOnly  bool
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API, recording control and live sample stream over HTTP",
	Long: `Starts the HTTP API. Unless --readonly is set the capture stack is started too, and recordings
are controlled with POST /api/recording/start and /stop.`,
	Annotations: map[string]string{dbOptional: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveOpts)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.Addr, "addr", "", "Listen address (default: from config, :8080)")
	serveCmd.Flags().BoolVar(&serveOpts.Ephemeral, "ephemeral", false, "Keep sessions in memory instead of PostgreSQL")
	serveCmd.Flags().BoolVar(&serveOpts.ReadOnly, "readonly", false, "Serve stored sessions only; no camera or model")
	serveCmd.Flags().StringVarP(&serveOpts.Input, "input", "i", "", "Video file to analyse instead of the camera")
	serveCmd.Flags().StringVarP(&serveOpts.Replay, "replay", "r", "", "Keypoint dump (JSON) to replay instead of running the model")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, opts serveOptions) error {
	if opts.Addr == "" {
		opts.Addr = Cfg.Server.Addr
	}

	var sessions store.SessionStore
	if opts.Ephemeral {
		fmt.Fprintf(os.Stderr, "⚠️  Ephemeral mode: sessions are lost when the server stops\n")
		sessions = store.NewMemoryStore()
	} else {
		if err := connectDB(ctx); err != nil {
			return err
		}
		sessions = DB
	}

	m := metrics.New()
	apiOpts := api.Options{Metrics: m, Logger: logger}

	if Cfg.MQTT.Broker != "" {
		mqtt, err := emitter.Connect(ctx, Cfg.MQTT, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  MQTT unavailable, continuing without it: %v\n", err)
		} else {
			defer mqtt.Disconnect()
			apiOpts.Events = mqtt
		}
	}

	var rec *recorder.Controller
	if !opts.ReadOnly {
		srcCtx, stopSource := context.WithCancel(context.Background())
		defer stopSource()
		src, err := openSource(srcCtx, opts.sourceOptions)
		if err != nil {
			return fmt.Errorf("failed to open keypoint source: %w", err)
		}
		defer src.Close()

		hub := api.NewHub()
		observers := pipeline.Observers{m, hub}
		if obs, ok := apiOpts.Events.(pipeline.Observer); ok {
			observers = append(observers, obs)
		}
		sampler := pipeline.NewSampler(src, pipeline.NewProcessor(), pipeline.Config{
			FrameInterval: time.Duration(Cfg.Sampling.FrameInterval),
			Observer:      observers,
			Logger:        logger,
		})
		rec = recorder.New(sampler, logger)
		apiOpts.Recorder = rec
		apiOpts.Hub = hub
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           api.NewRouter(api.New(sessions, apiOpts)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "🌐 Listening on %s\n", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	fmt.Fprintf(os.Stderr, "\n🛑 Shutting down...\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	// Don't lose a recording that was still running
	if rec != nil {
		if s, ok := rec.Stop(); ok {
			rec.Wait()
			if id, err := sessions.Save(shutdownCtx, s); err != nil {
				logger.Error("failed to save in-progress recording", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "💾 Saved in-progress session %s (%d samples)\n", id, len(s.JointData))
			}
		}
	}
	return nil
}
