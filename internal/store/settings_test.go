package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/pinchvolume/internal/volume"
)

func TestSettings_GetSet(t *testing.T) {
	r := newTestStore(t).Settings()

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := r.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := r.Set("theme", "light"); err != nil {
		t.Fatal(err)
	}

	v, err := r.Get("theme")
	if err != nil || v != "light" {
		t.Errorf("Get() = (%q, %v), want light", v, err)
	}

	all, err := r.All()
	if err != nil || len(all) != 1 {
		t.Errorf("All() = (%v, %v)", all, err)
	}

	if err := r.Delete("theme"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("theme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v", err)
	}
}

func TestSettings_ControlDefaults(t *testing.T) {
	r := newTestStore(t).Settings()

	cfg, err := r.Control(volume.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg != volume.DefaultConfig() {
		t.Errorf("Control() = %+v, want defaults", cfg)
	}
}

func TestSettings_SaveControl(t *testing.T) {
	r := newTestStore(t).Settings()

	want := volume.Config{
		ProximityThreshold: 0.04,
		FarMultiplier:      2.5,
		StepSize:           0.02,
		MinUpdateInterval:  150 * time.Millisecond,
	}
	if err := r.SaveControl(want); err != nil {
		t.Fatalf("SaveControl() error = %v", err)
	}

	got, err := r.Control(volume.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Control() = %+v, want %+v", got, want)
	}

	if err := r.ResetControl(); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Control(volume.DefaultConfig())
	if got != volume.DefaultConfig() {
		t.Errorf("Control() after reset = %+v, want defaults", got)
	}
}

func TestSettings_SaveControl_Invalid(t *testing.T) {
	r := newTestStore(t).Settings()

	cfg := volume.DefaultConfig()
	cfg.FarMultiplier = 1

	if err := r.SaveControl(cfg); !errors.Is(err, volume.ErrInvalidConfig) {
		t.Errorf("SaveControl() error = %v, want ErrInvalidConfig", err)
	}

	all, _ := r.All()
	if len(all) != 0 {
		t.Errorf("invalid config should not be stored, got %v", all)
	}
}

func TestSettings_ControlPartialOverlay(t *testing.T) {
	r := newTestStore(t).Settings()
	r.Set(KeyStepSize, "0.05")

	cfg, err := r.Control(volume.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StepSize != 0.05 {
		t.Errorf("StepSize = %v, want 0.05", cfg.StepSize)
	}
	if cfg.ProximityThreshold != volume.DefaultProximityThreshold {
		t.Errorf("ProximityThreshold = %v, want default", cfg.ProximityThreshold)
	}
}

func TestSettings_ControlCorrupt(t *testing.T) {
	r := newTestStore(t).Settings()
	r.Set(KeyMinUpdateInterval, "soon")

	if _, err := r.Control(volume.DefaultConfig()); err == nil {
		t.Error("Control() should fail on a corrupt value")
	}
}

func TestSettings_ControlHugeInterval(t *testing.T) {
	r := newTestStore(t).Settings()
	// Wraps to a small positive Duration if multiplied naively.
	r.Set(KeyMinUpdateInterval, "18446744073710")

	cfg, err := r.Control(volume.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(cfg.Validate(), volume.ErrInvalidConfig) {
		t.Errorf("MinUpdateInterval = %v passed Validate", cfg.MinUpdateInterval)
	}
}
