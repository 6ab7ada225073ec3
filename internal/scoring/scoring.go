// Package scoring turns raw stat bags into fantasy points.
package scoring

import (
	"math"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// Reception weight is the only difference between the three supported formats.
var receptionWeights = map[models.ScoringType]float64{
	models.ScoringStandard: 0,
	models.ScoringHalfPPR:  0.5,
	models.ScoringPPR:      1,
}

var statWeights = map[string]float64{
	// passing
	"pass_yd":  0.04,
	"pass_td":  4,
	"pass_int": -2,
	"pass_2pt": 2,
	// rushing
	"rush_yd":  0.1,
	"rush_td":  6,
	"rush_2pt": 2,
	// receiving
	"rec_yd":  0.1,
	"rec_td":  6,
	"rec_2pt": 2,
	// misc
	"fum_lost":   -2,
	"st_td":      6,
	"def_st_td":  6,
	"fum_rec_td": 6,
	// kicking
	"fgm_0_19":  3,
	"fgm_20_29": 3,
	"fgm_30_39": 3,
	"fgm_40_49": 4,
	"fgm_50p":   5,
	"fgmiss":    -1,
	"xpm":       1,
	"xpmiss":    -1,
	// team defense
	"def_td":          6,
	"sack":            1,
	"int":             2,
	"fum_rec":         2,
	"safe":            2,
	"blk_kick":        2,
	"pts_allow_0":     10,
	"pts_allow_1_6":   7,
	"pts_allow_7_13":  4,
	"pts_allow_14_20": 1,
	"pts_allow_28_34": -1,
	"pts_allow_35p":   -4,
}

// feedTotals are the keys a feed may use to ship precomputed totals.
var feedTotals = map[models.ScoringType]string{
	models.ScoringStandard: "pts_std",
	models.ScoringHalfPPR:  "pts_half_ppr",
	models.ScoringPPR:      "pts_ppr",
}

// Calculate scores a stat bag. Totals shipped by the feed win over the local formula.
func Calculate(stats models.StatBag, scoring models.ScoringType) float64 {
	if key, ok := feedTotals[scoring]; ok {
		if v, ok := stats[key]; ok {
			return round2(v)
		}
	}

	points := 0.0
	for key, weight := range statWeights {
		points += stats[key] * weight
	}
	points += stats["rec"] * receptionWeights[scoring]

	return round2(points)
}

// Totals returns standard, half-PPR and PPR points for a stat bag.
func Totals(stats models.StatBag) (std, half, ppr float64) {
	return Calculate(stats, models.ScoringStandard),
		Calculate(stats, models.ScoringHalfPPR),
		Calculate(stats, models.ScoringPPR)
}

// ApplyTotals fills the derived point columns of a weekly stat from its bag.
func ApplyTotals(ws *models.WeeklyStat) {
	ws.PtsStd, ws.PtsHalfPPR, ws.PtsPPR = Totals(ws.Stats.Data())
}

// FromLeagueSettings maps a feed's reception weight to a scoring type.
func FromLeagueSettings(recWeight float64) models.ScoringType {
	switch {
	case recWeight >= 0.75:
		return models.ScoringPPR
	case recWeight >= 0.25:
		return models.ScoringHalfPPR
	default:
		return models.ScoringStandard
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
