// Package curves defines the cumulative timing profiles used to phase a cost
// across the periods it spans.
package curves

import (
	"math"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/constants"
)

// Shape is one of the supported curve profiles.
type Shape int

const (
	// Standard is the classic S-curve: slow start, fast middle, slow finish.
	Standard Shape = iota
	// FrontLoaded spends most of the amount early.
	FrontLoaded
	// BackLoaded defers most of the amount to the end.
	BackLoaded
	// Bell concentrates spending in the middle deciles more tightly than Standard.
	Bell
)

// profiles hold cumulative percentages at progress 10%, 20%, ... 100%.
var profiles = map[Shape][10]float64{
	Standard:    {5, 12, 22, 35, 50, 65, 78, 88, 95, 100},
	FrontLoaded: {15, 30, 44, 57, 68, 78, 86, 92, 97, 100},
	BackLoaded:  {3, 8, 14, 22, 32, 43, 56, 70, 85, 100},
	Bell:        {2, 6, 14, 28, 50, 72, 86, 94, 98, 100},
}

var names = map[Shape]string{
	Standard:    "S",
	FrontLoaded: "F",
	BackLoaded:  "B",
	Bell:        "BELL",
}

// Parse resolves a curve identifier. Identifiers are case-insensitive and a
// few long-form aliases are accepted.
func Parse(id string) (Shape, bool) {
	switch strings.ToUpper(strings.TrimSpace(id)) {
	case "S", "S-CURVE", "SCURVE", "STANDARD":
		return Standard, true
	case "F", "FRONT", "FRONT-LOADED", "FRONTLOADED":
		return FrontLoaded, true
	case "B", "BACK", "BACK-LOADED", "BACKLOADED":
		return BackLoaded, true
	case "BELL":
		return Bell, true
	default:
		return Standard, false
	}
}

// String returns the canonical identifier.
func (s Shape) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "S"
}

// Profile returns a copy of the curve's 10-point cumulative percentages.
func (s Shape) Profile() [10]float64 {
	p, ok := profiles[s]
	if !ok {
		return profiles[Standard]
	}
	return p
}

// Cumulative returns the fraction (0-1) of the total that has been spent at
// the given progress fraction. Progress between deciles is linearly
// interpolated; steepness 50 leaves the profile unchanged, values above
// pull spending earlier and values below push it later.
func (s Shape) Cumulative(progress, steepness float64) float64 {
	if math.IsNaN(progress) || progress <= 0 {
		return 0
	}
	if progress >= 1 {
		return 1
	}

	profile := s.Profile()
	scaled := progress * 10
	idx := int(math.Floor(scaled))
	var lower float64
	if idx > 0 {
		lower = profile[idx-1]
	}
	upper := profile[idx]
	pct := lower + (upper-lower)*(scaled-float64(idx))

	return AdjustSteepness(pct, steepness) / constants.PercentageMultiplier
}

// AdjustSteepness reshapes a cumulative percentage with the power transform
// (pct/100)^(1/(steepness/50)) * 100. Steepness is clamped to [1, 100].
func AdjustSteepness(pct, steepness float64) float64 {
	if steepness == constants.DefaultSteepness || math.IsNaN(steepness) {
		return pct
	}
	steepness = math.Max(1, math.Min(100, steepness))
	factor := steepness / constants.DefaultSteepness
	ratio := math.Max(0, math.Min(1, pct/constants.PercentageMultiplier))
	return math.Pow(ratio, 1/factor) * constants.PercentageMultiplier
}
