package projection

import "github.com/jstittsworth/fantasy-advisor/internal/models"

const (
	DefaultLookback    = 6
	RegularSeasonWeeks = 18

	fallbackConfidence = 0.2
	minConfidence      = 0.3
	maxConfidence      = 1.0
	minTrend           = 0.85
	maxTrend           = 1.15
	maxEliteTrend      = 1.20
	eliteBiasBoost     = 1.08
)

// recencyWeights apply to the most recent weeks, newest first.
var recencyWeights = []float64{0.35, 0.30, 0.20, 0.10, 0.05}

const defaultRecencyWeight = 0.05

var fallbackPoints = map[models.Position]float64{
	models.PositionQB:  18.5,
	models.PositionRB:  12.0,
	models.PositionWR:  11.0,
	models.PositionTE:  8.5,
	models.PositionK:   8.0,
	models.PositionDEF: 7.0,
}

var eliteThresholds = map[models.Position]float64{
	models.PositionQB:  22,
	models.PositionRB:  16,
	models.PositionWR:  15,
	models.PositionTE:  12,
	models.PositionK:   10,
	models.PositionDEF: 10,
}

var biasCorrection = map[models.Position]float64{
	models.PositionQB:  1.40,
	models.PositionRB:  1.28,
	models.PositionWR:  1.30,
	models.PositionTE:  1.26,
	models.PositionK:   1.32,
	models.PositionDEF: 1.32,
}

var volatilityCoefficient = map[models.Position]float64{
	models.PositionQB: 0.9,
	models.PositionWR: 0.9,
	models.PositionRB: 1.1,
	models.PositionTE: 1.1,
}

// EliteThreshold is the mean weekly score at which a player counts as elite.
func EliteThreshold(pos models.Position) float64 {
	if v, ok := eliteThresholds[pos]; ok {
		return v
	}
	return 10
}

// AvailabilityFactor discounts a projection by the player's game status.
func AvailabilityFactor(status models.PlayerStatus) float64 {
	switch status {
	case models.StatusQuestionable:
		return 0.95
	case models.StatusDoubtful:
		return 0.6
	case models.StatusOut, models.StatusInactive:
		return 0
	default:
		return 1
	}
}

func bias(pos models.Position, elite bool) float64 {
	b, ok := biasCorrection[pos]
	if !ok {
		b = 1.0
	}
	if elite {
		b *= eliteBiasBoost
	}
	return b
}

func recencyWeight(i int) float64 {
	if i < len(recencyWeights) {
		return recencyWeights[i]
	}
	return defaultRecencyWeight
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
