package occupancy

import (
	"fmt"
	"strings"
)

// Thresholds are raw device counts and are not scaled by room capacity.
const (
	MediumThreshold = 33
	HighThreshold   = 66
)

const overlayAlpha = 0.4

type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// Classify maps an occupancy value to its load tier. Negative values are a data
// error upstream and classify as LOW.
func Classify(occupancy int) Tier {
	switch {
	case occupancy >= HighThreshold:
		return TierHigh
	case occupancy >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func (t Tier) String() string {
	switch t {
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	default:
		return "LOW"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "LOW":
		*t = TierLow
	case "MEDIUM":
		*t = TierMedium
	case "HIGH":
		*t = TierHigh
	default:
		return fmt.Errorf("unknown tier %q", string(b))
	}
	return nil
}

// Color is the semi-transparent fill used for a tier's rectangle.
type Color struct {
	R, G, B uint8
	Alpha   float64
}

func (t Tier) Color() Color {
	switch t {
	case TierMedium:
		return Color{R: 255, G: 255, B: 0, Alpha: overlayAlpha}
	case TierHigh:
		return Color{R: 255, G: 0, B: 0, Alpha: overlayAlpha}
	default:
		return Color{R: 0, G: 128, B: 0, Alpha: overlayAlpha}
	}
}

// CSS renders the color as an rgba() value.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, c.Alpha)
}
