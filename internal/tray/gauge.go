package tray

import (
	"fmt"
	"math"
	"strings"
)

// GaugeWidth is the number of cells in the menu gauge.
const GaugeWidth = 20

// Percent converts a level in [0,1] to a whole percentage.
func Percent(level float64) int {
	return int(math.Round(clamp(level) * 100))
}

// Label renders a level the way the readout shows it, e.g. "Volume: 51%".
func Label(level float64) string {
	return fmt.Sprintf("Volume: %d%%", Percent(level))
}

// Bar renders level as a horizontal gauge width cells wide.
func Bar(level float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(clamp(level) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
