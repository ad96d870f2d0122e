package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "biomech.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.MinScore != 0.3 {
		t.Errorf("min_score = %v, want 0.3", cfg.Model.MinScore)
	}
	if cfg.Database.URL != "postgres://localhost:5432/biomech" {
		t.Errorf("database.url = %q", cfg.Database.URL)
	}
	if cfg.MQTT.Topic != "biomech" {
		t.Errorf("mqtt.topic = %q", cfg.MQTT.Topic)
	}
	if cfg.Sampling.FrameInterval != 0 {
		t.Errorf("frame interval should default to back-to-back, got %v", time.Duration(cfg.Sampling.FrameInterval))
	}
}

func TestLoadMissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(DefaultPath); err != nil {
		t.Errorf("missing default config should be ignored, got %v", err)
	}
	if _, err := Load("elsewhere.yaml"); err == nil {
		t.Error("missing explicit config should fail")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
capture:
  device: "0"
  format: avfoundation
  fps: 15
model:
  min_score: 0.5
sampling:
  frame_interval: 100ms
mqtt:
  broker: localhost:1883
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capture.Format != "avfoundation" || cfg.Capture.FPS != 15 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Model.MinScore != 0.5 {
		t.Errorf("min_score = %v", cfg.Model.MinScore)
	}
	if time.Duration(cfg.Sampling.FrameInterval) != 100*time.Millisecond {
		t.Errorf("frame_interval = %v", time.Duration(cfg.Sampling.FrameInterval))
	}
	// Untouched keys keep their defaults.
	if cfg.Model.Python != "python3" {
		t.Errorf("model.python = %q", cfg.Model.Python)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Log.SlogLevel())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "model:\n  min_score: 0.5\n")
	t.Setenv("BIOMECH_MIN_SCORE", "0.7")
	t.Setenv("PORT", "9090")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "biomech")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.MinScore != 0.7 {
		t.Errorf("env should override file, got %v", cfg.Model.MinScore)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.URL != "postgres://u:p@db:5432/biomech" {
		t.Errorf("database.url = %q", cfg.Database.URL)
	}

	t.Setenv("BIOMECH_DB_URL", "postgres://explicit/db")
	cfg, _ = Load(path)
	if cfg.Database.URL != "postgres://explicit/db" {
		t.Errorf("BIOMECH_DB_URL should win, got %q", cfg.Database.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"Score above one", func(c *Config) { c.Model.MinScore = 1.2 }, true},
		{"Negative score", func(c *Config) { c.Model.MinScore = -0.1 }, true},
		{"Negative interval", func(c *Config) { c.Sampling.FrameInterval = Duration(-time.Second) }, true},
		{"Zero fps", func(c *Config) { c.Capture.FPS = 0 }, true},
		{"Unknown log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"Empty topic gets default", func(c *Config) { c.MQTT.Topic = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadDurationInFile(t *testing.T) {
	path := writeConfig(t, "sampling:\n  frame_interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for bad duration")
	}
}
