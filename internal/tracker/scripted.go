package tracker

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/pinchvolume/internal/gesture"
)

// ScriptedFrame is one frame of a ScriptedSource. NoHand reports an empty
// frame and Err a failed read; otherwise the fingertips are Distance apart.
type ScriptedFrame struct {
	// At is the frame time relative to the moment the source was opened.
	At       time.Duration
	Distance float64
	NoHand   bool
	Err      error
}

// ScriptedSource replays a fixed list of frames once. After the last one it
// reports an empty frame every few milliseconds, like an idle camera.
type ScriptedSource struct {
	frames  []ScriptedFrame
	openErr error
	idle    time.Duration

	mu     sync.Mutex
	base   time.Time
	next   int
	open   bool
	opens  int
	closes int
	reads  int
	done   chan struct{}
}

// NewScriptedSource creates a source that replays frames.
func NewScriptedSource(frames ...ScriptedFrame) *ScriptedSource {
	s := &ScriptedSource{
		frames: frames,
		idle:   5 * time.Millisecond,
		done:   make(chan struct{}),
	}
	if len(frames) == 0 {
		close(s.done)
	}
	return s
}

// SetOpenError makes Open fail with err.
func (s *ScriptedSource) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

func (s *ScriptedSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.base = time.Now()
	s.open = true
	s.opens++
	return nil
}

func (s *ScriptedSource) Next() (gesture.Sample, bool, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return gesture.Sample{}, false, errors.New("source is closed")
	}
	s.reads++
	if s.next >= len(s.frames) {
		s.mu.Unlock()
		time.Sleep(s.idle)
		return gesture.Sample{}, false, nil
	}

	f := s.frames[s.next]
	s.next++
	if s.next == len(s.frames) {
		close(s.done)
	}
	base := s.base
	s.mu.Unlock()

	if f.Err != nil {
		return gesture.Sample{}, false, f.Err
	}
	if f.NoHand {
		return gesture.Sample{}, false, nil
	}
	return gesture.Sample{
		Index:     gesture.Point2D{X: 0.5, Y: 0.5},
		Thumb:     gesture.Point2D{X: 0.5 + f.Distance, Y: 0.5},
		Timestamp: base.Add(f.At),
	}, true, nil
}

func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.closes++
	return nil
}

// Done is closed once every scripted frame has been returned.
func (s *ScriptedSource) Done() <-chan struct{} {
	return s.done
}

// Opens returns how many times Open succeeded.
func (s *ScriptedSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Reads returns how many times Next was called on the open source.
func (s *ScriptedSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closes returns how many times Close was called.
func (s *ScriptedSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
