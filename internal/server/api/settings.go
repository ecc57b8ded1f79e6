package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/pinchvolume/internal/store"
	"github.com/ayusman/pinchvolume/internal/volume"
)

// SettingsHandler handles GET/PUT/DELETE /api/settings for the control config.
// Changes apply from the next session.
type SettingsHandler struct {
	store    *store.Store
	defaults volume.Config
}

// NewSettingsHandler creates a new SettingsHandler. defaults are reported
// for every field the store does not override.
func NewSettingsHandler(s *store.Store, defaults volume.Config) *SettingsHandler {
	return &SettingsHandler{store: s, defaults: defaults}
}

type controlSettings struct {
	ProximityThreshold  float64 `json:"proximity_threshold"`
	FarMultiplier       float64 `json:"far_multiplier"`
	StepSize            float64 `json:"step_size"`
	MinUpdateIntervalMs int64   `json:"min_update_interval_ms"`
}

func fromConfig(c volume.Config) controlSettings {
	return controlSettings{
		ProximityThreshold:  c.ProximityThreshold,
		FarMultiplier:       c.FarMultiplier,
		StepSize:            c.StepSize,
		MinUpdateIntervalMs: c.MinUpdateInterval.Milliseconds(),
	}
}

func (s controlSettings) toConfig() volume.Config {
	return volume.Config{
		ProximityThreshold: s.ProximityThreshold,
		FarMultiplier:      s.FarMultiplier,
		StepSize:           s.StepSize,
		MinUpdateInterval:  volume.IntervalFromMillis(s.MinUpdateIntervalMs),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.reset(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter) {
	cfg, err := h.store.Settings().Control(h.defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, fromConfig(cfg))
}

// update handles PUT /api/settings. Fields missing from the body keep their
// current value.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.Settings().Control(h.defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	req := fromConfig(current)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := req.toConfig()
	if err := h.store.Settings().SaveControl(cfg); err != nil {
		if errors.Is(err, volume.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, fromConfig(cfg))
}

// reset handles DELETE /api/settings, restoring the defaults.
func (h *SettingsHandler) reset(w http.ResponseWriter) {
	if err := h.store.Settings().ResetControl(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}
	writeJSON(w, http.StatusOK, fromConfig(h.defaults))
}
