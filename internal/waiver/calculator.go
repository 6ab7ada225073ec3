// Package waiver prices free-agent claims against the league's bidding history.
package waiver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

const (
	historySamples    = 5
	defaultBaseBid    = 5.0
	opportunityWeight = 0.5
	needWeight        = 0.3
	urgentTrendPct    = 20.0
	urgencyMultiplier = 1.2
	maxBudgetShare    = 0.4
)

type BidHistory interface {
	RecentWinningBids(ctx context.Context, leagueID string, pos models.Position, limit int) ([]int, error)
}

type BidInput struct {
	League          *models.League
	Position        models.Position
	Opportunity     float64
	Need            float64
	TrendPercentage float64
}

type Bid struct {
	Recommended      int     `json:"recommended_bid"`
	Min              int     `json:"min_bid"`
	Max              int     `json:"max_bid"`
	MedianHistorical float64 `json:"median_historical_bid"`
}

type Calculator struct {
	history BidHistory
	logger  *logrus.Logger
}

func NewCalculator(history BidHistory, logger *logrus.Logger) *Calculator {
	return &Calculator{history: history, logger: logger}
}

// Calculate looks up comparable winning bids (same league and position) and
// prices the claim. A failed lookup prices as if there were no history.
func (c *Calculator) Calculate(ctx context.Context, in BidInput) (Bid, error) {
	if in.League == nil {
		return Bid{}, fmt.Errorf("bid calculation needs a league")
	}

	history, err := c.history.RecentWinningBids(ctx, in.League.ID, in.Position, historySamples)
	if err != nil {
		c.logger.WithError(err).WithField("league_id", in.League.ID).Warn("Bid history unavailable, using default base bid")
		history = nil
	}

	bid := ComputeBid(history, in.League.FAABRemaining, in.Opportunity, in.Need, in.TrendPercentage)

	c.logger.WithFields(logrus.Fields{
		"league_id":   in.League.ID,
		"position":    in.Position,
		"recommended": bid.Recommended,
		"median":      bid.MedianHistorical,
		"remaining":   in.League.FAABRemaining,
	}).Debug("Waiver bid calculated")

	return bid, nil
}

// ComputeBid is the pure pricing rule. The recommended bid never exceeds 40%
// of the remaining budget, and an empty budget bids nothing.
func ComputeBid(history []int, remaining int, opportunity, need, trendPct float64) Bid {
	median := medianBid(history)
	if remaining <= 0 {
		return Bid{MedianHistorical: median}
	}

	base := defaultBaseBid
	if len(history) >= historySamples {
		base = median
	}
	base *= 1 + opportunity*opportunityWeight
	base *= 1 + need*needWeight
	if trendPct > urgentTrendPct {
		base *= urgencyMultiplier
	}

	budgetCap := float64(remaining) * maxBudgetShare
	base = math.Min(base, budgetCap)

	recommended := int(math.Round(base))
	if recommended < 1 {
		recommended = 1
	}
	if ceiling := int(math.Floor(budgetCap)); recommended > ceiling {
		recommended = ceiling
	}

	return Bid{
		Recommended:      recommended,
		Min:              int(math.Round(float64(recommended) * 0.5)),
		Max:              recommended,
		MedianHistorical: median,
	}
}

func medianBid(history []int) float64 {
	if len(history) == 0 {
		return 0
	}
	if len(history) > historySamples {
		history = history[:historySamples]
	}
	sorted := make([]float64, len(history))
	for i, b := range history {
		sorted[i] = float64(b)
	}
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
