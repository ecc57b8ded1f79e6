// Package app runs the gesture-to-volume control loop and manages its sessions.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/pinchvolume/internal/gesture"
	"github.com/ayusman/pinchvolume/internal/store"
	"github.com/ayusman/pinchvolume/internal/volume"
)

var (
	// ErrSourceUnavailable is returned by Start when the landmark source cannot be opened.
	ErrSourceUnavailable = errors.New("landmark source unavailable")
	// ErrSinkUnavailable is returned by Start when the audio sink cannot be opened or read.
	ErrSinkUnavailable = errors.New("audio sink unavailable")
)

// DefaultReadBackoff is the pause after a failed landmark read, one frame
// at 30 FPS.
const DefaultReadBackoff = time.Second / 30

// LandmarkSource produces one fingertip sample per frame. Next blocks until
// a frame is available; ok is false when no hand is visible.
type LandmarkSource interface {
	Open() error
	Next() (sample gesture.Sample, ok bool, err error)
	Close() error
}

// Config holds configuration options for the application.
type Config struct {
	Source LandmarkSource
	Sink   volume.Sink

	// Control is the session config used when the store holds no overrides.
	Control volume.Config

	// Store is optional. When set, stored control settings override Control
	// at every Start and each session is journaled.
	Store *store.Store

	// ReadBackoff is how long the loop waits after a failed read before
	// trying the source again. Zero means DefaultReadBackoff.
	ReadBackoff time.Duration

	Logger *slog.Logger
}

// Status is a snapshot of the current session.
type Status struct {
	Running    bool          `json:"running"`
	SessionID  string        `json:"session_id,omitempty"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	Level      float64       `json:"level"`
	Updates    int           `json:"updates"`
	SinkErrors int           `json:"sink_errors"`
	Control    volume.Config `json:"-"`
	LastError  string        `json:"last_error,omitempty"`
}

// App is the main application that owns the control loop.
type App struct {
	config Config
	logger *slog.Logger
	events *broadcaster

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	sess   *session

	statusMu sync.Mutex
	status   Status
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReadBackoff <= 0 {
		config.ReadBackoff = DefaultReadBackoff
	}
	return &App{
		config: config,
		logger: logger,
		events: newBroadcaster(),
	}
}

// ResolveControl returns the control config the next session would use.
func (a *App) ResolveControl() (volume.Config, error) {
	cfg := a.config.Control
	if a.config.Store != nil {
		stored, err := a.config.Store.Settings().Control(cfg)
		if err != nil {
			return cfg, fmt.Errorf("load control settings: %w", err)
		}
		cfg = stored
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Start opens the source and sink and begins the control loop.
// Starting a running App is a no-op. A failed Start leaves nothing open and
// publishes EventStartFailed before returning.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	sess, err := a.openSession()
	if err != nil {
		a.logger.Error("session start failed", "error", err)
		a.setLastError(err)
		a.events.publish(Event{Type: EventStartFailed, Err: err, Time: time.Now()})
		return err
	}

	a.sess = sess
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.resetStatus(sess)

	go a.run(sess, a.stopCh, a.done)

	a.logger.Info("session started",
		"session", sess.record.ID,
		"level", sess.record.StartLevel,
		"proximity", sess.control.ProximityThreshold,
		"far", sess.thresholds.Far,
		"step", sess.control.StepSize,
		"min_interval", sess.control.MinUpdateInterval,
	)
	a.events.publish(Event{
		Type:      EventSessionStarted,
		SessionID: sess.record.ID,
		Value:     sess.controller.Current(),
		Time:      sess.record.StartedAt,
	})
	return nil
}

// openSession acquires the source and sink and builds the controller.
// Everything acquired is released again on failure.
func (a *App) openSession() (*session, error) {
	if a.config.Source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrSourceUnavailable)
	}
	if a.config.Sink == nil {
		return nil, fmt.Errorf("%w: no sink configured", ErrSinkUnavailable)
	}

	control, err := a.ResolveControl()
	if err != nil {
		return nil, err
	}

	if err := a.config.Source.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if err := a.config.Sink.Open(); err != nil {
		a.closeSource()
		return nil, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	level, err := a.config.Sink.Level()
	if err != nil {
		a.closeSink()
		a.closeSource()
		return nil, fmt.Errorf("%w: read level: %v", ErrSinkUnavailable, err)
	}

	controller := volume.NewController(a.config.Sink, control, level, a.logger)
	sess := &session{
		record: &store.Session{
			ID:         uuid.NewString(),
			StartedAt:  time.Now(),
			StartLevel: controller.Current(),
			Control:    control,
		},
		control:    control,
		thresholds: control.Thresholds(),
		controller: controller,
	}

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(sess.record); err != nil {
			a.logger.Warn("failed to journal session start", "session", sess.record.ID, "error", err)
		} else {
			sess.journaled = true
		}
	}

	return sess, nil
}

// Stop ends the running session and waits for the loop to release its
// resources. Stopping a stopped App is a no-op.
func (a *App) Stop() {
	a.stop(store.StopReasonUser)
}

// Shutdown stops the session for process exit.
func (a *App) Shutdown() {
	a.stop(store.StopReasonShutdown)
}

func (a *App) stop(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}

	a.sess.stopReason = reason
	close(a.stopCh)
	<-a.done

	sess := a.sess
	a.stopCh = nil
	a.done = nil
	a.sess = nil

	a.statusMu.Lock()
	a.status.Running = false
	a.statusMu.Unlock()

	a.logger.Info("session stopped",
		"session", sess.record.ID,
		"reason", reason,
		"level", sess.record.EndLevel,
		"updates", sess.record.Updates,
		"sink_errors", sess.record.SinkErrors,
	)
	a.events.publish(Event{
		Type:      EventSessionStopped,
		SessionID: sess.record.ID,
		Value:     sess.record.EndLevel,
		Time:      time.Now(),
	})
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Status returns a snapshot of the current or last session.
func (a *App) Status() Status {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	return a.status
}

// Subscribe returns a channel of all events and a function that ends the
// subscription and closes the channel. Slow readers lose old events, never
// the newest one.
func (a *App) Subscribe() (<-chan Event, func()) {
	return a.events.subscribe()
}

// Observe calls o for every accepted volume change until the returned
// function is called. Callbacks run on their own goroutine, one at a time.
func (a *App) Observe(o Observer) func() {
	ch, cancel := a.events.subscribe()
	go func() {
		for e := range ch {
			if e.Type == EventVolumeChanged {
				o.OnVolumeChanged(e.Value)
			}
		}
	}()
	return cancel
}

func (a *App) closeSource() {
	if err := a.config.Source.Close(); err != nil {
		a.logger.Warn("error closing landmark source", "error", err)
	}
}

func (a *App) closeSink() {
	if err := a.config.Sink.Close(); err != nil {
		a.logger.Warn("error closing audio sink", "error", err)
	}
}

func (a *App) resetStatus(sess *session) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status = Status{
		Running:   true,
		SessionID: sess.record.ID,
		StartedAt: sess.record.StartedAt,
		Level:     sess.controller.Current(),
		Control:   sess.control,
	}
}

func (a *App) setLastError(err error) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.LastError = err.Error()
}
