// Package audio provides volume.Sink implementations for the system mixer.
package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/pinchvolume/internal/plugin"
)

// Plugin actions used by PluginSink.
const (
	ActionGetLevel = "get-level"
	ActionSetLevel = "set-level"
)

// DefaultPluginName is the plugin that controls the system mixer.
const DefaultPluginName = "system-control"

// ErrSinkClosed is returned when the sink is used outside Open/Close.
var ErrSinkClosed = errors.New("audio sink is not open")

// PluginSinkConfig configures a PluginSink.
type PluginSinkConfig struct {
	Manager    *plugin.Manager
	PluginName string
	// Timeout bounds a single plugin call.
	Timeout time.Duration
	Logger  *slog.Logger
}

// PluginSink drives the system mixer through an out-of-process plugin.
// Each call spawns the plugin once; no process outlives a call.
type PluginSink struct {
	manager  *plugin.Manager
	name     string
	executor *plugin.Executor
	logger   *slog.Logger

	plugin *plugin.Plugin
}

type levelData struct {
	Level float64 `json:"level"`
}

// NewPluginSink creates a sink backed by the named plugin.
func NewPluginSink(config PluginSinkConfig) *PluginSink {
	name := config.PluginName
	if name == "" {
		name = DefaultPluginName
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginSink{
		manager:  config.Manager,
		name:     name,
		executor: plugin.NewExecutor(timeout),
		logger:   logger,
	}
}

// Open resolves the plugin and checks it supports both level actions.
func (s *PluginSink) Open() error {
	p, err := s.manager.Require(s.name, ActionGetLevel, ActionSetLevel)
	if err != nil {
		return err
	}
	s.plugin = p
	s.logger.Debug("audio sink opened", "plugin", p.Manifest.Name, "version", p.Manifest.Version)
	return nil
}

// Level reads the current mixer level.
func (s *PluginSink) Level() (float64, error) {
	resp, err := s.call(ActionGetLevel, nil)
	if err != nil {
		return 0, err
	}

	var data levelData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, fmt.Errorf("parse level: %w", err)
	}
	if data.Level < 0 || data.Level > 1 {
		return 0, fmt.Errorf("level %v out of range", data.Level)
	}
	return data.Level, nil
}

// SetLevel sets the mixer level.
func (s *PluginSink) SetLevel(level float64) error {
	params, err := json.Marshal(levelData{Level: level})
	if err != nil {
		return err
	}
	_, err = s.call(ActionSetLevel, params)
	return err
}

// Close releases the plugin.
func (s *PluginSink) Close() error {
	s.plugin = nil
	return nil
}

func (s *PluginSink) call(action string, params json.RawMessage) (*plugin.Response, error) {
	if s.plugin == nil {
		return nil, ErrSinkClosed
	}

	resp, err := s.executor.Execute(context.Background(), s.plugin, &plugin.Request{
		Action: action,
		Params: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s: %s", action, resp.Error)
	}
	return resp, nil
}
