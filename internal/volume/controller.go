package volume

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/pinchvolume/internal/gesture"
)

// Sink is the external control surface that receives committed levels.
// Open and Close bracket one session; the controller never outlives them.
type Sink interface {
	Open() error
	Level() (float64, error)
	SetLevel(level float64) error
	Close() error
}

// SinkError reports that the sink rejected a level. The controller keeps the
// level as its own value regardless.
type SinkError struct {
	Level float64
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("set level %.2f: %v", e.Level, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// State is the controlled value together with the time of the last accepted update.
type State struct {
	Value      float64
	LastUpdate time.Time
}

// Apply computes the state that follows an intent at time now.
// It returns the input state unchanged and false for Hold or when the rate
// limit has not elapsed. Otherwise the value moves one step, saturating at
// the bounds, and LastUpdate becomes now even if the value did not move.
func Apply(intent gesture.Intent, state State, cfg Config, now time.Time) (State, bool) {
	if intent == gesture.Hold {
		return state, false
	}
	if !TryAcquire(now, state.LastUpdate, cfg.MinUpdateInterval) {
		return state, false
	}

	return State{
		Value:      Clamp(state.Value + intent.Sign()*cfg.StepSize),
		LastUpdate: now,
	}, true
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Controller owns the level for a single session and pushes accepted
// changes to the sink. It is not safe for concurrent use; one goroutine
// drives it for the whole session.
type Controller struct {
	cfg    Config
	sink   Sink
	state  State
	logger *slog.Logger
}

// NewController creates a Controller starting at initial, clamped to [0,1].
func NewController(sink Sink, cfg Config, initial float64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		sink:   sink,
		state:  State{Value: Clamp(initial)},
		logger: logger,
	}
}

// Current returns the current level.
func (c *Controller) Current() float64 {
	return c.state.Value
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	return c.state
}

// Config returns the session config.
func (c *Controller) Config() Config {
	return c.cfg
}

// ApplyIntent steps the level for intent at time now and pushes it to the
// sink when the step is accepted. A sink failure is returned as a
// *SinkError; the in-memory state is kept either way.
func (c *Controller) ApplyIntent(intent gesture.Intent, now time.Time) (bool, error) {
	next, applied := Apply(intent, c.state, c.cfg, now)
	if !applied {
		return false, nil
	}
	c.state = next

	c.logger.Debug("volume step", "intent", intent.String(), "level", next.Value)

	if c.sink == nil {
		return true, nil
	}
	if err := c.sink.SetLevel(next.Value); err != nil {
		return true, &SinkError{Level: next.Value, Err: err}
	}
	return true, nil
}
