package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/pinchvolume/internal/gesture"
	"github.com/ayusman/pinchvolume/internal/store"
	"github.com/ayusman/pinchvolume/internal/volume"
)

// session is the state of one Start/Stop cycle. Only the worker goroutine
// touches controller and the counters in record while the session runs.
type session struct {
	record     *store.Session
	control    volume.Config
	thresholds gesture.Thresholds
	controller *volume.Controller
	journaled  bool
	stopReason string
}

// run is the control loop. It owns the source, the sink and the controller
// until it returns, and releases all of them on the way out.
//
// Per frame:
// 1. Read the next sample; no hand or a failed read is a frame with no effect
// 2. Classify the fingertip distance into an intent
// 3. Step the controller, which rate-limits and pushes to the sink
// 4. Publish the new level
func (a *App) run(sess *session, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer a.release(sess)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		sample, ok, err := a.config.Source.Next()

		// A frame read across the stop signal is dropped before it can move the level.
		select {
		case <-stopCh:
			return
		default:
		}

		a.step(sess, sample, ok, err)

		// A source that fails fast, like an unplugged camera, would
		// otherwise spin the loop.
		if err != nil && !a.backoff(stopCh) {
			return
		}
	}
}

// backoff waits ReadBackoff and reports false if stop was signalled first.
func (a *App) backoff(stopCh <-chan struct{}) bool {
	timer := time.NewTimer(a.config.ReadBackoff)
	defer timer.Stop()

	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// step processes one frame. Nothing that happens here ends the loop.
func (a *App) step(sess *session, sample gesture.Sample, ok bool, readErr error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("control step panicked", "session", sess.record.ID, "panic", fmt.Sprint(r))
		}
	}()

	if readErr != nil {
		a.logger.Debug("landmark read failed", "error", readErr)
		return
	}
	if !ok {
		return
	}

	intent := sess.thresholds.Classify(sample.Distance())
	applied, err := sess.controller.ApplyIntent(intent, sample.Timestamp)
	if !applied {
		return
	}

	level := sess.controller.Current()
	sess.record.Updates++
	sess.record.EndLevel = level
	a.recordStep(level, err)

	a.events.publish(Event{
		Type:      EventVolumeChanged,
		SessionID: sess.record.ID,
		Value:     level,
		Time:      sample.Timestamp,
	})

	if err != nil {
		sess.record.SinkErrors++
		var sinkErr *volume.SinkError
		if errors.As(err, &sinkErr) {
			a.logger.Warn("audio sink rejected level", "level", sinkErr.Level, "error", sinkErr.Err)
		} else {
			a.logger.Warn("audio sink error", "error", err)
		}
		a.events.publish(Event{
			Type:      EventSinkError,
			SessionID: sess.record.ID,
			Value:     level,
			Err:       err,
			Time:      sample.Timestamp,
		})
	}
}

// release closes the sink and source and journals the session end.
func (a *App) release(sess *session) {
	a.closeSink()
	a.closeSource()

	now := time.Now()
	sess.record.EndedAt = &now
	sess.record.EndLevel = sess.controller.Current()
	sess.record.StopReason = sess.stopReason

	if sess.journaled {
		if err := a.config.Store.Sessions().Finish(sess.record); err != nil {
			a.logger.Warn("failed to journal session end", "session", sess.record.ID, "error", err)
		}
	}
}

func (a *App) recordStep(level float64, err error) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.Level = level
	a.status.Updates++
	if err != nil {
		a.status.SinkErrors++
		a.status.LastError = err.Error()
	}
}
