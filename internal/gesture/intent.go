package gesture

// Intent is the direction a single distance reading asks the volume to move.
type Intent int

const (
	// Hold leaves the volume untouched.
	Hold Intent = iota
	// Increase raises the volume by one step.
	Increase
	// Decrease lowers the volume by one step.
	Decrease
)

// String returns the lowercase name of the intent.
func (i Intent) String() string {
	switch i {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "hold"
	}
}

// Sign returns +1 for Increase, -1 for Decrease and 0 for Hold.
func (i Intent) Sign() float64 {
	switch i {
	case Increase:
		return 1
	case Decrease:
		return -1
	default:
		return 0
	}
}

// Thresholds is the pair of distances bounding the dead zone.
// Far must be strictly greater than Proximity.
type Thresholds struct {
	Proximity float64
	Far       float64
}

// NewThresholds builds Thresholds with Far = proximity * farMultiplier.
func NewThresholds(proximity, farMultiplier float64) Thresholds {
	return Thresholds{
		Proximity: proximity,
		Far:       proximity * farMultiplier,
	}
}

// Classify maps a distance onto an intent using these thresholds.
func (t Thresholds) Classify(distance float64) Intent {
	return Classify(distance, t.Proximity, t.Far)
}

// Classify maps a fingertip distance onto an intent.
//
// Fingers pinched closer than proximity ask for more volume, fingers spread
// beyond far ask for less, and anything in between is the dead zone.
func Classify(distance, proximity, far float64) Intent {
	switch {
	case distance < proximity:
		return Increase
	case distance > far:
		return Decrease
	default:
		return Hold
	}
}
