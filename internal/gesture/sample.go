// Package gesture turns fingertip positions into directional volume intents.
package gesture

import (
	"math"
	"time"
)

// Point2D is a position in normalized image coordinates, both axes in [0,1].
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sample is the pair of fingertips observed in one processed video frame.
type Sample struct {
	Index     Point2D
	Thumb     Point2D
	Timestamp time.Time
}

// Distance returns the Euclidean distance between the index and thumb tips.
func (s Sample) Distance() float64 {
	return Distance(s.Index, s.Thumb)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
