package valuation

import "github.com/jstittsworth/fantasy-advisor/internal/models"

const (
	DefaultLookback = 4
	MinMatchedWeeks = 2
	MinPeers        = 10

	canonicalMean   = 1.0
	canonicalStdDev = 0.15

	trendUpRatio     = 1.1
	trendDownRatio   = 0.9
	sellHighRatio    = 1.15
	sellHighZ        = 0.5
	buyLowShortfall  = 0.2
	buyLowRiskCeil   = 0.3
	injuredRiskFloor = 0.3
)

// InjuryRisk maps availability to a risk score in [0,1].
func InjuryRisk(status models.PlayerStatus) float64 {
	switch status {
	case models.StatusOut, models.StatusInactive:
		return 1.0
	case models.StatusDoubtful:
		return 0.8
	case models.StatusQuestionable:
		return 0.3
	default:
		return 0
	}
}

// IsInjured reports whether a risk score counts against a trade.
func IsInjured(risk float64) bool {
	return risk > injuredRiskFloor
}

func TrendFor(ratio float64) models.TrendLabel {
	switch {
	case ratio > trendUpRatio:
		return models.TrendUp
	case ratio < trendDownRatio:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func SellHigh(ratio, z float64) bool {
	return ratio > sellHighRatio && z > sellHighZ
}

func BuyLow(ratio, risk float64) bool {
	return (1-ratio) > buyLowShortfall && risk < buyLowRiskCeil
}
