package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is not an error.
const DefaultPath = "biomech.yaml"

// Config is the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Capture  CaptureConfig  `yaml:"capture"`
	Model    ModelConfig    `yaml:"model"`
	Sampling SamplingConfig `yaml:"sampling"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CaptureConfig selects the camera. Format is the ffmpeg input format (v4l2, avfoundation, dshow).
type CaptureConfig struct {
	Device string `yaml:"device"`
	Format string `yaml:"format"`
	FPS    int    `yaml:"fps"`
}

// ModelConfig locates the pose worker.
type ModelConfig struct {
	Python   string  `yaml:"python"`
	Script   string  `yaml:"script"`
	MinScore float64 `yaml:"min_score"`
}

// SamplingConfig tunes the capture loop.
type SamplingConfig struct {
	FrameInterval Duration `yaml:"frame_interval"`
}

// MQTTConfig contains MQTT broker settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration accepts Go duration strings ("500ms", "1s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost:5432/biomech"},
		Server:   ServerConfig{Addr: ":8080"},
		Capture:  CaptureConfig{Device: "/dev/video0", Format: "v4l2", FPS: 30},
		Model:    ModelConfig{Python: "python3", Script: "python/pose_worker.py", MinScore: 0.3},
		MQTT:     MQTTConfig{Topic: "biomech", ClientID: "biomech"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load merges .env into the environment, then layers defaults, the YAML file at path and
// environment variables, in that order, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if url := os.Getenv("BIOMECH_DB_URL"); url != "" {
		cfg.Database.URL = url
	} else if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		cfg.Database.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if strings.Contains(port, " ") {
			return fmt.Errorf("invalid PORT value: %q", port)
		}
		// Allow ":8080" or "127.0.0.1:8080" as well as a bare port.
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		cfg.Server.Addr = port
	}

	setString(&cfg.Capture.Device, "BIOMECH_CAPTURE_DEVICE")
	setString(&cfg.Capture.Format, "BIOMECH_CAPTURE_FORMAT")
	setString(&cfg.Model.Python, "BIOMECH_PYTHON")
	setString(&cfg.Model.Script, "BIOMECH_MODEL_SCRIPT")
	setString(&cfg.MQTT.Broker, "BIOMECH_MQTT_BROKER")
	setString(&cfg.MQTT.Topic, "BIOMECH_MQTT_TOPIC")
	setString(&cfg.MQTT.ClientID, "BIOMECH_MQTT_CLIENT_ID")
	setString(&cfg.Log.Level, "BIOMECH_LOG_LEVEL")

	if v := os.Getenv("BIOMECH_CAPTURE_FPS"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BIOMECH_CAPTURE_FPS: %w", err)
		}
		cfg.Capture.FPS = fps
	}
	if v := os.Getenv("BIOMECH_MIN_SCORE"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BIOMECH_MIN_SCORE: %w", err)
		}
		cfg.Model.MinScore = score
	}
	if v := os.Getenv("BIOMECH_FRAME_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BIOMECH_FRAME_INTERVAL: %w", err)
		}
		cfg.Sampling.FrameInterval = Duration(d)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks ranges and fills defaults that depend on other fields.
func Validate(cfg *Config) error {
	if cfg.Model.MinScore < 0 || cfg.Model.MinScore > 1 {
		return fmt.Errorf("model.min_score must be between 0 and 1, got %v", cfg.Model.MinScore)
	}
	if cfg.Sampling.FrameInterval < 0 {
		return fmt.Errorf("sampling.frame_interval must not be negative")
	}
	if cfg.Capture.FPS < 1 {
		return fmt.Errorf("capture.fps must be >= 1, got %d", cfg.Capture.FPS)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "biomech"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "biomech"
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}
