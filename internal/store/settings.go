package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/pinchvolume/internal/volume"
)

// Setting keys for the control config.
const (
	KeyProximityThreshold = "control.proximity_threshold"
	KeyFarMultiplier      = "control.far_multiplier"
	KeyStepSize           = "control.step_size"
	KeyMinUpdateInterval  = "control.min_update_interval_ms"
)

// SettingsRepository provides access to stored key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
// Returns ErrNotFound if the key is not set.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	_, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// Control overlays the stored control settings on defaults.
// The result is not validated.
func (r *SettingsRepository) Control(defaults volume.Config) (volume.Config, error) {
	settings, err := r.All()
	if err != nil {
		return defaults, err
	}

	cfg := defaults
	floats := map[string]*float64{
		KeyProximityThreshold: &cfg.ProximityThreshold,
		KeyFarMultiplier:      &cfg.FarMultiplier,
		KeyStepSize:           &cfg.StepSize,
	}
	for key, dst := range floats {
		value, ok := settings[key]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaults, fmt.Errorf("setting %s: %w", key, err)
		}
		*dst = f
	}

	if value, ok := settings[KeyMinUpdateInterval]; ok {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return defaults, fmt.Errorf("setting %s: %w", KeyMinUpdateInterval, err)
		}
		cfg.MinUpdateInterval = volume.IntervalFromMillis(ms)
	}

	return cfg, nil
}

// SaveControl validates cfg and stores all of its fields in one transaction.
func (r *SettingsRepository) SaveControl(cfg volume.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	values := map[string]string{
		KeyProximityThreshold: strconv.FormatFloat(cfg.ProximityThreshold, 'g', -1, 64),
		KeyFarMultiplier:      strconv.FormatFloat(cfg.FarMultiplier, 'g', -1, 64),
		KeyStepSize:           strconv.FormatFloat(cfg.StepSize, 'g', -1, 64),
		KeyMinUpdateInterval:  strconv.FormatInt(cfg.MinUpdateInterval.Milliseconds(), 10),
	}
	for key, value := range values {
		if _, err := tx.Exec(
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ResetControl removes every stored control setting so defaults apply again.
func (r *SettingsRepository) ResetControl() error {
	_, err := r.db.Exec(
		`DELETE FROM settings WHERE key IN (?, ?, ?, ?)`,
		KeyProximityThreshold, KeyFarMultiplier, KeyStepSize, KeyMinUpdateInterval,
	)
	return err
}
