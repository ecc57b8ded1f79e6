package volume

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/ayusman/pinchvolume/internal/gesture"
)

const epsilon = 1e-9

type fakeSink struct {
	levels []float64
	err    error
}

func (s *fakeSink) Open() error             { return nil }
func (s *fakeSink) Level() (float64, error) { return 0, nil }
func (s *fakeSink) Close() error            { return nil }
func (s *fakeSink) SetLevel(level float64) error {
	if s.err != nil {
		return s.err
	}
	s.levels = append(s.levels, level)
	return nil
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "zero interval", modify: func(c *Config) { c.MinUpdateInterval = 0 }},
		{name: "zero proximity", modify: func(c *Config) { c.ProximityThreshold = 0 }, wantErr: true},
		{name: "negative proximity", modify: func(c *Config) { c.ProximityThreshold = -0.1 }, wantErr: true},
		{name: "multiplier of one", modify: func(c *Config) { c.FarMultiplier = 1 }, wantErr: true},
		{name: "step of zero", modify: func(c *Config) { c.StepSize = 0 }, wantErr: true},
		{name: "step of one", modify: func(c *Config) { c.StepSize = 1 }, wantErr: true},
		{name: "negative interval", modify: func(c *Config) { c.MinUpdateInterval = -time.Millisecond }, wantErr: true},
		{name: "max interval", modify: func(c *Config) { c.MinUpdateInterval = MaxMinUpdateInterval }},
		{name: "interval above max", modify: func(c *Config) { c.MinUpdateInterval = MaxMinUpdateInterval + time.Millisecond }, wantErr: true},
		{name: "NaN proximity", modify: func(c *Config) { c.ProximityThreshold = math.NaN() }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestIntervalFromMillis(t *testing.T) {
	tests := []struct {
		ms   int64
		want time.Duration
	}{
		{0, 0},
		{200, 200 * time.Millisecond},
		{-5, -5 * time.Millisecond},
		{math.MaxInt64, math.MaxInt64},
		{math.MinInt64, math.MinInt64},
		{1 << 62, math.MaxInt64},
	}

	for _, tt := range tests {
		got := IntervalFromMillis(tt.ms)
		if got != tt.want {
			t.Errorf("IntervalFromMillis(%d) = %v, want %v", tt.ms, got, tt.want)
		}

		cfg := DefaultConfig()
		cfg.MinUpdateInterval = got
		if tt.ms > int64(MaxMinUpdateInterval/time.Millisecond) && !errors.Is(cfg.Validate(), ErrInvalidConfig) {
			t.Errorf("interval from %d ms passed Validate", tt.ms)
		}
	}
}

func TestTryAcquire(t *testing.T) {
	base := time.Now()
	interval := 200 * time.Millisecond

	tests := []struct {
		name string
		now  time.Time
		last time.Time
		want bool
	}{
		{name: "no prior update", now: base, last: time.Time{}, want: true},
		{name: "too soon", now: base.Add(50 * time.Millisecond), last: base, want: false},
		{name: "exactly the interval", now: base.Add(interval), last: base, want: true},
		{name: "well after", now: base.Add(time.Second), last: base, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TryAcquire(tt.now, tt.last, interval); got != tt.want {
				t.Errorf("TryAcquire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_Scenarios(t *testing.T) {
	cfg := Config{
		ProximityThreshold: 0.05,
		FarMultiplier:      2,
		StepSize:           0.01,
		MinUpdateInterval:  200 * time.Millisecond,
	}
	th := cfg.Thresholds()
	now := time.Now()

	tests := []struct {
		name        string
		distance    float64
		wantValue   float64
		wantApplied bool
	}{
		{name: "pinch raises", distance: 0.03, wantValue: 0.51, wantApplied: true},
		{name: "spread lowers", distance: 0.15, wantValue: 0.49, wantApplied: true},
		{name: "dead zone holds", distance: 0.07, wantValue: 0.50, wantApplied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := State{Value: 0.50}

			next, applied := Apply(th.Classify(tt.distance), state, cfg, now)
			if applied != tt.wantApplied {
				t.Errorf("applied = %v, want %v", applied, tt.wantApplied)
			}
			if math.Abs(next.Value-tt.wantValue) > epsilon {
				t.Errorf("value = %f, want %f", next.Value, tt.wantValue)
			}
		})
	}
}

func TestApply_RateLimited(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Now()

	state, applied := Apply(gesture.Increase, State{Value: 0.5}, cfg, start)
	if !applied {
		t.Fatal("first update should be applied")
	}

	state, applied = Apply(gesture.Increase, state, cfg, start.Add(50*time.Millisecond))
	if applied {
		t.Error("second update 50ms later should be rejected")
	}
	if math.Abs(state.Value-0.51) > epsilon {
		t.Errorf("value = %f, want 0.51", state.Value)
	}
	if !state.LastUpdate.Equal(start) {
		t.Error("rejected update must not move LastUpdate")
	}
}

func TestApply_SaturatesAtBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinUpdateInterval = 200 * time.Millisecond
	start := time.Now()

	t.Run("increase at max", func(t *testing.T) {
		state := State{Value: 1.0}

		next, applied := Apply(gesture.Increase, state, cfg, start)
		if !applied {
			t.Fatal("increase at 1.0 should still be applied")
		}
		if next.Value != 1.0 {
			t.Errorf("value = %f, want 1.0", next.Value)
		}
		if !next.LastUpdate.Equal(start) {
			t.Error("LastUpdate should be reset even when the value is saturated")
		}

		// The reset timer must gate the next attempt
		if _, applied := Apply(gesture.Increase, next, cfg, start.Add(100*time.Millisecond)); applied {
			t.Error("update inside the interval after a saturated step should be rejected")
		}
		if _, applied := Apply(gesture.Increase, next, cfg, start.Add(200*time.Millisecond)); !applied {
			t.Error("update after the interval should be applied")
		}
	})

	t.Run("decrease at min", func(t *testing.T) {
		next, applied := Apply(gesture.Decrease, State{Value: 0}, cfg, start)
		if !applied || next.Value != 0 {
			t.Errorf("Apply() = (%f, %v), want (0, true)", next.Value, applied)
		}
	})
}

func TestApply_InvariantsOverRandomSequences(t *testing.T) {
	cfg := Config{
		ProximityThreshold: 0.05,
		FarMultiplier:      2,
		StepSize:           0.07,
		MinUpdateInterval:  100 * time.Millisecond,
	}
	rng := rand.New(rand.NewSource(42))
	intents := []gesture.Intent{gesture.Increase, gesture.Decrease, gesture.Hold}

	for run := 0; run < 50; run++ {
		state := State{Value: rng.Float64()}
		now := time.Now()
		var accepted []time.Time

		for i := 0; i < 500; i++ {
			now = now.Add(time.Duration(rng.Intn(80)) * time.Millisecond)
			prev := state.Value

			next, applied := Apply(intents[rng.Intn(len(intents))], state, cfg, now)
			if next.Value < 0 || next.Value > 1 {
				t.Fatalf("value %f escaped [0,1]", next.Value)
			}
			if applied {
				accepted = append(accepted, now)
				delta := math.Abs(next.Value - prev)
				if delta > cfg.StepSize+epsilon {
					t.Fatalf("step of %f exceeds step size %f", delta, cfg.StepSize)
				}
				if delta < cfg.StepSize-epsilon && next.Value != 0 && next.Value != 1 {
					t.Fatalf("short step of %f away from the bounds", delta)
				}
			} else if next != state {
				t.Fatal("rejected update changed the state")
			}
			state = next
		}

		for i := 1; i < len(accepted); i++ {
			if gap := accepted[i].Sub(accepted[i-1]); gap < cfg.MinUpdateInterval {
				t.Fatalf("accepted updates %v apart, want >= %v", gap, cfg.MinUpdateInterval)
			}
		}
	}
}

func TestController_ApplyIntent(t *testing.T) {
	sink := &fakeSink{}
	c := NewController(sink, DefaultConfig(), 0.5, nil)
	now := time.Now()

	applied, err := c.ApplyIntent(gesture.Increase, now)
	if err != nil || !applied {
		t.Fatalf("ApplyIntent() = (%v, %v), want (true, nil)", applied, err)
	}
	if math.Abs(c.Current()-0.51) > epsilon {
		t.Errorf("Current() = %f, want 0.51", c.Current())
	}
	if len(sink.levels) != 1 || math.Abs(sink.levels[0]-0.51) > epsilon {
		t.Errorf("sink levels = %v, want [0.51]", sink.levels)
	}

	// Hold never reaches the sink
	applied, _ = c.ApplyIntent(gesture.Hold, now.Add(time.Second))
	if applied || len(sink.levels) != 1 {
		t.Error("Hold should not push to the sink")
	}
}

func TestController_SinkErrorKeepsState(t *testing.T) {
	sinkErr := errors.New("endpoint gone")
	sink := &fakeSink{err: sinkErr}
	c := NewController(sink, DefaultConfig(), 0.5, nil)
	now := time.Now()

	applied, err := c.ApplyIntent(gesture.Decrease, now)
	if !applied {
		t.Error("step should still count as applied when the sink fails")
	}

	var se *SinkError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SinkError", err)
	}
	if !errors.Is(err, sinkErr) {
		t.Error("SinkError should unwrap to the sink's error")
	}
	if math.Abs(se.Level-0.49) > epsilon {
		t.Errorf("SinkError.Level = %f, want 0.49", se.Level)
	}

	// The next step builds on the in-memory value
	sink.err = nil
	if _, err := c.ApplyIntent(gesture.Decrease, now.Add(time.Second)); err != nil {
		t.Fatalf("ApplyIntent() error = %v", err)
	}
	if math.Abs(c.Current()-0.48) > epsilon {
		t.Errorf("Current() = %f, want 0.48", c.Current())
	}
}

func TestNewController_ClampsInitial(t *testing.T) {
	if got := NewController(nil, DefaultConfig(), 1.7, nil).Current(); got != 1 {
		t.Errorf("Current() = %f, want 1", got)
	}
	if got := NewController(nil, DefaultConfig(), -0.2, nil).Current(); got != 0 {
		t.Errorf("Current() = %f, want 0", got)
	}
}
