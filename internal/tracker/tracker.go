// Package tracker turns camera frames into fingertip samples.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/pinchvolume/internal/capture"
	"github.com/ayusman/pinchvolume/internal/detector"
	"github.com/ayusman/pinchvolume/internal/gesture"
)

// HandTracker reads frames from a camera and reports the index and thumb
// tips of the most confident hand in each one.
type HandTracker struct {
	camera   capture.Camera
	detector detector.Detector
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a HandTracker. The tracker owns neither collaborator until
// Open is called; Close releases both.
func New(camera capture.Camera, det detector.Detector, logger *slog.Logger) *HandTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandTracker{
		camera:   camera,
		detector: det,
		logger:   logger,
		now:      time.Now,
	}
}

// Open opens the camera and starts the detector if it needs starting, so a
// missing detector fails here instead of on every frame.
func (t *HandTracker) Open() error {
	if err := t.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	if s, ok := t.detector.(detector.Starter); ok {
		if err := s.Start(); err != nil {
			t.camera.Close()
			return fmt.Errorf("start detector: %w", err)
		}
	}
	t.logger.Info("camera opened", "fps", t.camera.FPS())
	return nil
}

// Next blocks for one frame and returns the fingertips found in it.
// ok is false when no hand is visible.
func (t *HandTracker) Next() (gesture.Sample, bool, error) {
	frame, err := t.camera.ReadFrame()
	if err != nil {
		return gesture.Sample{}, false, fmt.Errorf("read frame: %w", err)
	}
	// Timestamp the frame at capture, before detection latency.
	captured := t.now()
	defer frame.Close()

	hands, err := t.detector.Detect(frame)
	if err != nil {
		return gesture.Sample{}, false, fmt.Errorf("detect hands: %w", err)
	}

	hand := detector.MostConfident(hands)
	if hand == nil {
		return gesture.Sample{}, false, nil
	}

	index, thumb := hand.Fingertips()
	return gesture.Sample{
		Index:     index,
		Thumb:     thumb,
		Timestamp: captured,
	}, true, nil
}

// Close releases the camera and stops the detector.
func (t *HandTracker) Close() error {
	return errors.Join(t.camera.Close(), t.detector.Close())
}
