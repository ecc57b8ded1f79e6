// Package detector provides hand landmark detection for the fingertip tracker.
package detector

import "github.com/ayusman/pinchvolume/internal/gesture"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark position. X and Y are normalized image coordinates;
// Z is relative depth and is ignored by the volume gesture.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY drops the depth component.
func (p Point3D) XY() gesture.Point2D {
	return gesture.Point2D{X: p.X, Y: p.Y}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Fingertips returns the index and thumb tips projected onto the image plane.
func (h *HandLandmarks) Fingertips() (index, thumb gesture.Point2D) {
	return h.Points[IndexTip].XY(), h.Points[ThumbTip].XY()
}

// MostConfident returns the hand with the highest score, or nil when hands is empty.
func MostConfident(hands []HandLandmarks) *HandLandmarks {
	var best *HandLandmarks
	for i := range hands {
		if best == nil || hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}
