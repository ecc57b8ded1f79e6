package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/pinchvolume/internal/gesture"
)

const epsilon = 1e-9

func TestHandLandmarks_Fingertips(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
	}{
		{name: "pinched", distance: 0.02},
		{name: "dead zone", distance: 0.07},
		{name: "spread", distance: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := PinchLandmarks(tt.distance)

			index, thumb := hand.Fingertips()
			if index != hand.Points[IndexTip].XY() {
				t.Errorf("index = %+v, want landmark %d", index, IndexTip)
			}
			if thumb != hand.Points[ThumbTip].XY() {
				t.Errorf("thumb = %+v, want landmark %d", thumb, ThumbTip)
			}

			if got := gesture.Distance(index, thumb); math.Abs(got-tt.distance) > epsilon {
				t.Errorf("distance = %f, want %f", got, tt.distance)
			}
		})
	}
}

func TestPoint3D_XY_DropsDepth(t *testing.T) {
	p := Point3D{X: 0.25, Y: 0.75, Z: -0.5}
	if got := p.XY(); got != (gesture.Point2D{X: 0.25, Y: 0.75}) {
		t.Errorf("XY() = %+v", got)
	}
}

func TestMostConfident(t *testing.T) {
	if MostConfident(nil) != nil {
		t.Error("MostConfident(nil) should be nil")
	}

	left := PinchLandmarks(0.1)
	left.Handedness = "Left"
	left.Score = 0.6
	right := PinchLandmarks(0.02)
	right.Score = 0.9

	best := MostConfident([]HandLandmarks{left, right})
	if best == nil || best.Handedness != "Right" {
		t.Errorf("MostConfident() = %+v, want the right hand", best)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns configured hands", func(t *testing.T) {
		m := NewMockDetector()
		m.SetHands([]HandLandmarks{PinchLandmarks(0.03)})

		hands, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(hands) != 1 {
			t.Errorf("len(hands) = %d, want 1", len(hands))
		}
	})

	t.Run("sequence then fallback", func(t *testing.T) {
		m := NewMockDetector()
		m.SetHands([]HandLandmarks{PinchLandmarks(0.2)})
		m.SetSequence([][]HandLandmarks{nil, {PinchLandmarks(0.03)}})

		want := []int{0, 1, 1}
		for i, n := range want {
			hands, _ := m.Detect(nil)
			if len(hands) != n {
				t.Errorf("frame %d: len(hands) = %d, want %d", i, len(hands), n)
			}
		}
		if m.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", m.Calls())
		}
	})

	t.Run("returns error", func(t *testing.T) {
		m := NewMockDetector()
		wantErr := errors.New("detection failed")
		m.SetError(wantErr)

		if _, err := m.Detect(nil); !errors.Is(err, wantErr) {
			t.Errorf("Detect() error = %v, want %v", err, wantErr)
		}
	})

	t.Run("close", func(t *testing.T) {
		m := NewMockDetector()
		if err := m.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !m.Closed() {
			t.Error("Closed() should be true after Close()")
		}
	})
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xff, 0xd8, 0xff, 0xe0}

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}

	out := buf.Bytes()
	if len(out) != 4+len(payload) {
		t.Fatalf("wrote %d bytes, want %d", len(out), 4+len(payload))
	}
	if n := binary.BigEndian.Uint32(out[:4]); n != uint32(len(payload)) {
		t.Errorf("length prefix = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(out[4:], payload) {
		t.Errorf("payload = %x, want %x", out[4:], payload)
	}
}

func TestReadHands(t *testing.T) {
	t.Run("parses landmarks", func(t *testing.T) {
		line := `{"hands":[{"handedness":"Left","score":0.8,"points":[` +
			strings.Repeat(`{"x":0.1,"y":0.2,"z":0},`, NumLandmarks-1) +
			`{"x":0.9,"y":0.8,"z":0}]}]}` + "\n"

		hands, err := readHands(bufio.NewReader(strings.NewReader(line)))
		if err != nil {
			t.Fatalf("readHands() error = %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("len(hands) = %d, want 1", len(hands))
		}
		if hands[0].Handedness != "Left" || hands[0].Score != 0.8 {
			t.Errorf("hand = %+v", hands[0])
		}
		if hands[0].Points[PinkyTip].X != 0.9 {
			t.Errorf("last landmark X = %f, want 0.9", hands[0].Points[PinkyTip].X)
		}
	})

	t.Run("no hands", func(t *testing.T) {
		hands, err := readHands(bufio.NewReader(strings.NewReader("{\"hands\":[]}\n")))
		if err != nil {
			t.Fatalf("readHands() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("len(hands) = %d, want 0", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := readHands(bufio.NewReader(strings.NewReader("{\"error\":\"bad frame\"}\n")))
		if err == nil || !strings.Contains(err.Error(), "bad frame") {
			t.Errorf("readHands() error = %v, want service error", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := readHands(bufio.NewReader(strings.NewReader("not json\n"))); err == nil {
			t.Error("readHands() should fail on malformed JSON")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = "/nonexistent/" + scriptName

	if _, err := NewMediaPipeDetector(cfg, nil); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("NewMediaPipeDetector() error = %v, want ErrScriptNotFound", err)
	}
}

func TestMediaPipeDetector_Start(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	script := filepath.Join(t.TempDir(), scriptName)
	if err := os.WriteFile(script, []byte("exec cat >/dev/null\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("missing interpreter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ScriptPath = script
		cfg.PythonPath = filepath.Join(t.TempDir(), "no-python")

		d, err := NewMediaPipeDetector(cfg, nil)
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		if err := d.Start(); err == nil {
			t.Error("Start() should fail without an interpreter")
		}
		if err := d.Close(); err != nil {
			t.Errorf("Close() after failed Start() error = %v", err)
		}
	})

	t.Run("running helper", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ScriptPath = script
		cfg.PythonPath = "/bin/sh"

		d, err := NewMediaPipeDetector(cfg, nil)
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		if err := d.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := d.Start(); err != nil {
			t.Errorf("second Start() error = %v", err)
		}
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

func TestMockDetector_Start(t *testing.T) {
	m := NewMockDetector()
	var _ Starter = m

	if err := m.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	startErr := errors.New("helper missing")
	m.SetStartError(startErr)
	if err := m.Start(); !errors.Is(err, startErr) {
		t.Errorf("Start() error = %v, want %v", err, startErr)
	}
	if m.Starts() != 2 {
		t.Errorf("Starts() = %d, want 2", m.Starts())
	}
}
