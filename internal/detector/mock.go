package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	startErr error
	starts   int
	calls    int
	closed   bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence queues per-frame results. Each Detect call consumes one entry;
// once the queue is drained Detect falls back to the hands set by SetHands.
func (m *MockDetector) SetSequence(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetStartError makes Start fail with err.
func (m *MockDetector) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Start counts the call and returns the error set by SetStartError.
func (m *MockDetector) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

// Starts returns how many times Start was called.
func (m *MockDetector) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PinchLandmarks returns a right hand whose thumb tip sits the given
// horizontal distance from the index tip. The other fingers are curled.
func PinchLandmarks(distance float64) HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Index finger reaching up and to the left
	landmarks.Points[IndexMCP] = Point3D{X: 0.52, Y: 0.66, Z: -0.01}
	landmarks.Points[IndexPIP] = Point3D{X: 0.50, Y: 0.58, Z: -0.02}
	landmarks.Points[IndexDIP] = Point3D{X: 0.48, Y: 0.53, Z: -0.02}
	landmarks.Points[IndexTip] = Point3D{X: 0.46, Y: 0.50, Z: -0.02}

	// Thumb reaching toward the index tip
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.56, Y: 0.68, Z: -0.01}
	landmarks.Points[ThumbIP] = Point3D{X: 0.52, Y: 0.58, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.46 + distance, Y: 0.50, Z: -0.02}

	// Middle, ring and pinky curled into the palm
	for i, base := range []int{MiddleMCP, RingMCP, PinkyMCP} {
		x := 0.48 - float64(i)*0.04
		landmarks.Points[base] = Point3D{X: x, Y: 0.68, Z: -0.02}
		landmarks.Points[base+1] = Point3D{X: x, Y: 0.66, Z: -0.05}
		landmarks.Points[base+2] = Point3D{X: x - 0.02, Y: 0.68, Z: -0.04}
		landmarks.Points[base+3] = Point3D{X: x - 0.04, Y: 0.70, Z: -0.02}
	}

	return landmarks
}
