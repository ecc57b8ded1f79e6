// Package config loads the pinchvolume YAML configuration.
//
// Values are layered as defaults, then the config file, then command-line
// overrides, and validated once at the end so the rest of the program can
// assume a well-formed config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/pinchvolume/internal/capture"
	"github.com/ayusman/pinchvolume/internal/detector"
	"github.com/ayusman/pinchvolume/internal/volume"
)

// Detector and sink backends.
const (
	BackendMediaPipe = "mediapipe"
	BackendMock      = "mock"
	BackendPlugin    = "plugin"
	BackendMemory    = "memory"
)

// Config is the top-level YAML configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Control  ControlConfig  `yaml:"control"`
	Sink     SinkConfig     `yaml:"sink"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Tray     TrayConfig     `yaml:"tray"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type DetectorConfig struct {
	Backend                string  `yaml:"backend"` // "mediapipe" or "mock"
	Script                 string  `yaml:"script,omitempty"`
	Python                 string  `yaml:"python,omitempty"`
	MaxHands               int     `yaml:"max_hands"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
	IdleTimeoutMS          int     `yaml:"idle_timeout_ms"`
}

// ControlConfig is the YAML form of volume.Config. Stored settings edited
// through the HTTP API take precedence at session start.
type ControlConfig struct {
	ProximityThreshold  float64 `yaml:"proximity_threshold"`
	FarMultiplier       float64 `yaml:"far_multiplier"`
	StepSize            float64 `yaml:"step_size"`
	MinUpdateIntervalMS int     `yaml:"min_update_interval_ms"`
}

type SinkConfig struct {
	Backend   string `yaml:"backend"` // "plugin" or "memory"
	PluginDir string `yaml:"plugin_dir"`
	Plugin    string `yaml:"plugin"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	WebDir  string `yaml:"web_dir,omitempty"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type TrayConfig struct {
	Enabled   bool `yaml:"enabled"`
	Autostart bool `yaml:"autostart"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DataDir is the per-user directory for the database and plugins.
const DataDir = "~/.pinchvolume"

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	return Config{
		Camera: CameraConfig{
			Device: 0,
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
			FPS:    capture.DefaultFPS,
		},
		Detector: DetectorConfig{
			Backend:                BackendMediaPipe,
			MaxHands:               det.MaxHands,
			MinDetectionConfidence: det.MinConfidence,
			MinTrackingConfidence:  det.MinTrackingConf,
			IdleTimeoutMS:          int(det.IdleTimeout / time.Millisecond),
		},
		Control: ControlConfig{
			ProximityThreshold:  volume.DefaultProximityThreshold,
			FarMultiplier:       volume.DefaultFarMultiplier,
			StepSize:            volume.DefaultStepSize,
			MinUpdateIntervalMS: int(volume.DefaultMinUpdateInterval / time.Millisecond),
		},
		Sink: SinkConfig{
			Backend:   BackendPlugin,
			PluginDir: DataDir + "/plugins",
			Plugin:    "system-control",
			TimeoutMS: 2000,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: DataDir + "/pinchvolume.db",
		},
		Tray: TrayConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults. Empty input yields the defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values set on the command line. A nil pointer leaves
// the config value alone; a non-nil one is applied even if it is a zero value.
type FlagOverrides struct {
	Addr      *string
	DBPath    *string
	LogLevel  *string
	NoTray    *bool
	Autostart *bool
	PluginDir *string
	Camera    *int
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Addr != nil {
		cfg.Server.Addr = *o.Addr
	}
	if o.DBPath != nil {
		cfg.Store.Path = *o.DBPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.NoTray != nil {
		cfg.Tray.Enabled = !*o.NoTray
	}
	if o.Autostart != nil {
		cfg.Tray.Autostart = *o.Autostart
	}
	if o.PluginDir != nil {
		cfg.Sink.PluginDir = *o.PluginDir
	}
	if o.Camera != nil {
		cfg.Camera.Device = *o.Camera
	}
}

// Validate checks config invariants and returns a user-friendly error.
// It is called after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	if c.Camera.Device < 0 {
		return errors.New("camera.device must be >= 0")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be > 0")
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 240 {
		return errors.New("camera.fps must be between 1 and 240")
	}

	switch c.Detector.Backend {
	case BackendMediaPipe, BackendMock:
	default:
		return fmt.Errorf("detector.backend must be %q or %q", BackendMediaPipe, BackendMock)
	}
	if c.Detector.MaxHands < 1 {
		return errors.New("detector.max_hands must be >= 1")
	}
	if !inUnit(c.Detector.MinDetectionConfidence) || !inUnit(c.Detector.MinTrackingConfidence) {
		return errors.New("detector confidences must be between 0 and 1")
	}
	if c.Detector.IdleTimeoutMS < 0 {
		return errors.New("detector.idle_timeout_ms must be >= 0")
	}

	if err := c.ControlConfig().Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}

	switch c.Sink.Backend {
	case BackendPlugin:
		if c.Sink.PluginDir == "" || c.Sink.Plugin == "" {
			return errors.New("sink.plugin_dir and sink.plugin must be set for the plugin backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("sink.backend must be %q or %q", BackendPlugin, BackendMemory)
	}
	if c.Sink.TimeoutMS <= 0 {
		return errors.New("sink.timeout_ms must be > 0")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return errors.New("server.addr must not be empty when the server is enabled")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// ControlConfig converts the control section to a volume.Config.
func (c *Config) ControlConfig() volume.Config {
	return volume.Config{
		ProximityThreshold: c.Control.ProximityThreshold,
		FarMultiplier:      c.Control.FarMultiplier,
		StepSize:           c.Control.StepSize,
		MinUpdateInterval:  volume.IntervalFromMillis(int64(c.Control.MinUpdateIntervalMS)),
	}
}

// CaptureConfig converts the camera section to a capture.Config.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{
		DeviceID: c.Camera.Device,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		FPS:      c.Camera.FPS,
	}
}

// DetectorConfig converts the detector section to a detector.Config.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinDetectionConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      ExpandPath(c.Detector.Script),
		PythonPath:      ExpandPath(c.Detector.Python),
		IdleTimeout:     time.Duration(c.Detector.IdleTimeoutMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
