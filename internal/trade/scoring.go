package trade

import (
	"math"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

const (
	fairRatio          = 0.8
	minFairness        = 0.6
	minAcceptance      = 0.25
	fairnessWeight     = 1.5
	preferenceWeight   = 0.2
	injuryPenalty      = 0.1
	injuryRiskCeiling  = 0.3
	styleBonus         = 0.1
	defaultTopN        = 10
	maxRosterCandidate = 30
)

// Fairness compares the two sides' total projected value. It is symmetric and
// reaches 1.0 once the smaller side is worth at least 80% of the larger.
func Fairness(sideA, sideB float64) float64 {
	if sideA <= 0 || sideB <= 0 {
		return 0
	}
	ratio := math.Min(sideA, sideB) / math.Max(sideA, sideB)
	return math.Min(1.0, ratio/fairRatio)
}

// Acceptance predicts whether the opponent says yes. received are the players
// the opponent would get; given is how many players the opponent sends back.
func Acceptance(profile *models.OpponentProfile, fairness float64, received []*models.PlayerValuation, given int) float64 {
	p := profile.AcceptanceRate * (fairness * fairnessWeight)

	var risk float64
	for _, v := range received {
		p += preferenceWeight * (profile.Preference(v.Position) - 0.5)
		risk += v.InjuryRisk
	}
	if len(received) > 0 && risk/float64(len(received)) > injuryRiskCeiling && !profile.IsRiskTolerant() {
		p -= injuryPenalty
	}

	switch {
	case len(received) > given && profile.PrefersDepth:
		p += styleBonus
	case len(received) < given && profile.PrefersStars:
		p += styleBonus
	}

	return math.Max(0, math.Min(1, p))
}

// Retained reports whether a scored candidate is worth recommending.
func Retained(fairness, acceptance float64) bool {
	return fairness > minFairness && acceptance > minAcceptance
}

func shapeOf(give, receive int) models.TradeShape {
	switch {
	case give == 1 && receive == 1:
		return models.ShapeOneForOne
	case give == 2 && receive == 1:
		return models.ShapeTwoForOne
	case give == 2 && receive == 2:
		return models.ShapeTwoForTwo
	default:
		return models.ShapeCustom
	}
}

func totalValue(side []*models.PlayerValuation) float64 {
	var sum float64
	for _, v := range side {
		sum += v.ProjectedValue
	}
	return sum
}
