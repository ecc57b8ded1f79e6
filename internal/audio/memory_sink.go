package audio

import "sync"

// MemorySink is an in-memory volume.Sink for testing and headless runs.
// It records every level it is given.
type MemorySink struct {
	mu       sync.Mutex
	level    float64
	levels   []float64
	open     bool
	opens    int
	closes   int
	openErr  error
	levelErr error
	setErr   error
}

// NewMemorySink creates a MemorySink that starts at level.
func NewMemorySink(level float64) *MemorySink {
	return &MemorySink{level: level}
}

// SetOpenError makes Open fail with err.
func (s *MemorySink) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// SetLevelError makes Level fail with err.
func (s *MemorySink) SetLevelError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelErr = err
}

// SetFailure makes SetLevel fail with err until cleared with nil.
func (s *MemorySink) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

func (s *MemorySink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.open = true
	s.opens++
	return nil
}

func (s *MemorySink) Level() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrSinkClosed
	}
	if s.levelErr != nil {
		return 0, s.levelErr
	}
	return s.level, nil
}

func (s *MemorySink) SetLevel(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrSinkClosed
	}
	if s.setErr != nil {
		return s.setErr
	}
	s.level = level
	s.levels = append(s.levels, level)
	return nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.closes++
	return nil
}

// Levels returns every level accepted by SetLevel, in order.
func (s *MemorySink) Levels() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.levels))
	copy(out, s.levels)
	return out
}

// Current returns the last accepted level.
func (s *MemorySink) Current() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// IsOpen reports whether the sink is between Open and Close.
func (s *MemorySink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opens returns how many times Open succeeded.
func (s *MemorySink) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many times Close was called.
func (s *MemorySink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
