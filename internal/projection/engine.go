// Package projection turns recent weekly actuals into forward point estimates.
package projection

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gorm.io/datatypes"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// StatsReader is the slice of the store the engine reads from.
type StatsReader interface {
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	RecentWeeklyStats(ctx context.Context, playerID string, season, beforeWeek, limit int) ([]models.WeeklyStat, error)
}

type Engine struct {
	stats    StatsReader
	lookback int
	logger   *logrus.Logger
}

func NewEngine(stats StatsReader, lookback int, logger *logrus.Logger) *Engine {
	if lookback < 2 {
		lookback = DefaultLookback
	}
	return &Engine{
		stats:    stats,
		lookback: lookback,
		logger:   logger,
	}
}

// Result is a computed projection before it is bound to a player and week.
type Result struct {
	Points     float64
	Confidence float64
	Source     models.ProjectionSource
	Elite      bool
	Trend      float64
	Stats      models.StatBag
}

// Project computes the weekly projection for a player. It fails only when the
// player cannot be resolved or the history cannot be read.
func (e *Engine) Project(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	player, err := e.stats.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve player %s: %w", playerID, err)
	}

	history, err := e.stats.RecentWeeklyStats(ctx, playerID, season, week, e.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", playerID, err)
	}

	res := Compute(player.Position, player.Status, history)

	e.logger.WithFields(logrus.Fields{
		"player_id":  playerID,
		"week":       week,
		"points":     res.Points,
		"confidence": res.Confidence,
		"source":     res.Source,
	}).Debug("Projection computed")

	return &models.Projection{
		PlayerID:        playerID,
		Season:          season,
		Week:            week,
		Source:          res.Source,
		ProjectedPoints: res.Points,
		Confidence:      res.Confidence,
		Stats:           datatypes.NewJSONType(res.Stats),
	}, nil
}

// ProjectRestOfSeason scales the weekly projection by the regular-season weeks
// left, including the target week, and stores it under week 0.
func (e *Engine) ProjectRestOfSeason(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	weekly, err := e.Project(ctx, playerID, season, week)
	if err != nil {
		return nil, err
	}

	remaining := RemainingWeeks(week)
	ros := *weekly
	ros.Week = models.RestOfSeasonWeek
	ros.ProjectedPoints = round2(weekly.ProjectedPoints * float64(remaining))
	return &ros, nil
}

// RemainingWeeks counts the regular-season weeks from week through the last one.
func RemainingWeeks(week int) int {
	remaining := RegularSeasonWeeks - week + 1
	if remaining < 1 {
		return 1
	}
	return remaining
}

// Compute applies the projection model to history ordered most recent first.
func Compute(pos models.Position, status models.PlayerStatus, history []models.WeeklyStat) Result {
	points := make([]float64, len(history))
	for i, w := range history {
		points[i] = w.Points(models.ScoringPPR)
	}

	if len(points) < 2 {
		return Result{
			Points:     round2(fallbackPoints[pos]*bias(pos, false)) * AvailabilityFactor(status),
			Confidence: fallbackConfidence,
			Source:     models.SourcePositionAverage,
			Trend:      1,
			Stats:      models.StatBag{},
		}
	}

	mean := stat.Mean(points, nil)
	elite := len(points) >= 3 && mean >= EliteThreshold(pos)
	trend := trendMultiplier(points, mean, elite)

	// The discount applies to the rounded full-availability value so a
	// discounted projection is an exact multiple of the active one.
	projected := round2(weightedAverage(points)*trend*bias(pos, elite)) * AvailabilityFactor(status)

	return Result{
		Points:     projected,
		Confidence: confidence(pos, points),
		Source:     models.SourceHistoricalAnalysis,
		Elite:      elite,
		Trend:      trend,
		Stats:      weightedStats(history),
	}
}

func weightedAverage(points []float64) float64 {
	var sum, total float64
	for i := 0; i < len(points) && i < len(recencyWeights); i++ {
		w := recencyWeight(i)
		sum += points[i] * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func weightedStats(history []models.WeeklyStat) models.StatBag {
	out := models.StatBag{}
	var total float64
	for i := 0; i < len(history) && i < len(recencyWeights); i++ {
		w := recencyWeight(i)
		total += w
		for k, v := range history[i].Stats.Data() {
			out[k] += v * w
		}
	}
	if total == 0 {
		return out
	}
	for k, v := range out {
		out[k] = round2(v / total)
	}
	return out
}

// trendMultiplier regresses points on recency index (0 = most recent). A
// negative slope means scoring is rising, which pushes the multiplier above 1.
func trendMultiplier(points []float64, mean float64, elite bool) float64 {
	if len(points) < 2 || mean == 0 {
		return 1
	}
	x := make([]float64, len(points))
	for i := range x {
		x[i] = float64(i)
	}
	_, slope := stat.LinearRegression(x, points, nil, false)

	hi := maxTrend
	if elite {
		hi = maxEliteTrend
	}
	return clamp(1-slope/mean, minTrend, hi)
}

func confidence(pos models.Position, points []float64) float64 {
	mean, std := stat.PopMeanStdDev(points, nil)
	if mean <= 0 {
		return minConfidence
	}
	cv := std / mean
	if coef, ok := volatilityCoefficient[pos]; ok {
		cv *= coef
	}
	return round2(clamp(1-cv, minConfidence, maxConfidence))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
