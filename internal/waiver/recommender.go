package waiver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/projection"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
)

const (
	defaultTopN         = 10
	trendingLookback    = 24
	trendingLimit       = 25
	injuredNeedBoost    = 0.25
	opportunityPriority = 0.6
	needPriority        = 0.4
)

// idealDepth is how many players a healthy roster carries per position.
var idealDepth = map[models.Position]int{
	models.PositionQB:  2,
	models.PositionRB:  5,
	models.PositionWR:  5,
	models.PositionTE:  2,
	models.PositionK:   1,
	models.PositionDEF: 1,
}

type DataSource interface {
	BidHistory
	GetLeague(ctx context.Context, id string) (*models.League, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error)
	ListRosterSlots(ctx context.Context, leagueID string) ([]models.RosterSlot, error)
	ListLeagueRosters(ctx context.Context, leagueID string) ([]models.LeagueRoster, error)
	ReplaceWaiverRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.WaiverRecommendation) error
}

type Trending interface {
	GetTrendingAdds(ctx context.Context, lookbackHours, limit int) ([]providers.TrendingPlayer, error)
}

type Projector interface {
	Project(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
}

type Recommender struct {
	data       DataSource
	trending   Trending
	projector  Projector
	calculator *Calculator
	topN       int
	logger     *logrus.Logger
}

func NewRecommender(data DataSource, trending Trending, projector Projector, topN int, logger *logrus.Logger) *Recommender {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Recommender{
		data:       data,
		trending:   trending,
		projector:  projector,
		calculator: NewCalculator(data, logger),
		topN:       topN,
		logger:     logger,
	}
}

// Calculator exposes the bid calculator used for single-player pricing.
func (r *Recommender) Calculator() *Calculator {
	return r.calculator
}

// Generate scores trending free agents for the user's roster, prices a bid for
// each and replaces the stored recommendations for the league week.
func (r *Recommender) Generate(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	start := time.Now()

	league, err := r.data.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}

	trending, err := r.trending.GetTrendingAdds(ctx, trendingLookback, trendingLimit)
	if err != nil {
		// feed outage: proceed with no candidates
		r.logger.WithError(err).Warn("Trending adds unavailable")
		trending = nil
	}

	rostered, err := r.rosteredIDs(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	slots, err := r.data.ListRosterSlots(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for %s: %w", leagueID, err)
	}

	ids := make([]string, 0, len(trending)+len(slots))
	totalAdds := 0
	for _, t := range trending {
		ids = append(ids, t.PlayerID)
		totalAdds += t.Count
	}
	for _, s := range slots {
		ids = append(ids, s.PlayerID)
	}
	players, err := r.data.GetPlayers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	roster := r.summarizeRoster(ctx, slots, players, season, week)

	var recs []models.WaiverRecommendation
	for _, t := range trending {
		if _, taken := rostered[t.PlayerID]; taken {
			continue
		}
		player, ok := players[t.PlayerID]
		if !ok || !player.Position.IsValid() {
			continue
		}

		proj, err := r.projector.Project(ctx, player.ID, season, week)
		if err != nil {
			r.logger.WithError(err).WithField("player_id", player.ID).Debug("Skipping waiver candidate without projection")
			continue
		}

		opportunity := Opportunity(player.Position, proj.ProjectedPoints, proj.Confidence)
		need := roster.need(player.Position)
		trendPct := 0.0
		if totalAdds > 0 {
			trendPct = float64(t.Count) / float64(totalAdds) * 100
		}

		bid, err := r.calculator.Calculate(ctx, BidInput{
			League:          league,
			Position:        player.Position,
			Opportunity:     opportunity,
			Need:            need,
			TrendPercentage: trendPct,
		})
		if err != nil {
			return nil, err
		}

		rec := models.WaiverRecommendation{
			LeagueID:            leagueID,
			Season:              season,
			Week:                week,
			PlayerID:            player.ID,
			Position:            player.Position,
			DropPlayerID:        roster.dropCandidate(player.Position),
			OpportunityScore:    opportunity,
			PositionalNeed:      need,
			TrendPercentage:     trendPct,
			ProjectedPoints:     proj.ProjectedPoints,
			RecommendedBid:      bid.Recommended,
			MinBid:              bid.Min,
			MaxBid:              bid.Max,
			MedianHistoricalBid: bid.MedianHistorical,
			Priority:            opportunityPriority*opportunity + needPriority*need,
		}
		rec.Reason = reason(player, rec)
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})
	if len(recs) > r.topN {
		recs = recs[:r.topN]
	}
	generationID := uuid.NewString()
	for i := range recs {
		recs[i].Rank = i + 1
		recs[i].GenerationID = generationID
	}

	if err := r.data.ReplaceWaiverRecommendations(ctx, leagueID, season, week, recs); err != nil {
		return nil, fmt.Errorf("failed to persist waiver recommendations: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"league_id":       leagueID,
		"week":            week,
		"generation_id":   generationID,
		"trending":        len(trending),
		"recommendations": len(recs),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Waiver recommendations generated")

	return recs, nil
}

// Opportunity blends how close the projection is to an elite week with how
// much the projection can be trusted.
func Opportunity(pos models.Position, projected, confidence float64) float64 {
	ceiling := math.Min(1, projected/projection.EliteThreshold(pos))
	return clamp01(0.7*ceiling + 0.3*confidence)
}

func (r *Recommender) rosteredIDs(ctx context.Context, leagueID string) (map[string]struct{}, error) {
	rosters, err := r.data.ListLeagueRosters(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load league rosters for %s: %w", leagueID, err)
	}
	out := make(map[string]struct{})
	for _, roster := range rosters {
		for _, id := range roster.PlayerIDs {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

type benchPlayer struct {
	id        string
	projected float64
}

type rosterSummary struct {
	counts  map[models.Position]int
	injured map[models.Position]bool
	bench   map[models.Position][]benchPlayer
}

func (r *Recommender) summarizeRoster(ctx context.Context, slots []models.RosterSlot, players map[string]models.Player, season, week int) rosterSummary {
	sum := rosterSummary{
		counts:  make(map[models.Position]int),
		injured: make(map[models.Position]bool),
		bench:   make(map[models.Position][]benchPlayer),
	}
	for _, slot := range slots {
		p, ok := players[slot.PlayerID]
		if !ok {
			continue
		}
		sum.counts[p.Position]++
		if p.Status == models.StatusDoubtful || p.Status.CannotPlay() {
			sum.injured[p.Position] = true
		}
		if slot.IsStarter {
			continue
		}
		projected := 0.0
		if proj, err := r.projector.Project(ctx, p.ID, season, week); err == nil {
			projected = proj.ProjectedPoints
		}
		sum.bench[p.Position] = append(sum.bench[p.Position], benchPlayer{id: p.ID, projected: projected})
	}
	return sum
}

func (s rosterSummary) need(pos models.Position) float64 {
	ideal, ok := idealDepth[pos]
	if !ok {
		return 0
	}
	need := float64(ideal-s.counts[pos]) / float64(ideal)
	if s.injured[pos] {
		need += injuredNeedBoost
	}
	return clamp01(need)
}

func (s rosterSummary) dropCandidate(pos models.Position) string {
	var (
		drop   string
		lowest = math.Inf(1)
	)
	for _, b := range s.bench[pos] {
		if b.projected < lowest {
			drop, lowest = b.id, b.projected
		}
	}
	return drop
}

func reason(player models.Player, rec models.WaiverRecommendation) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s projects %.1f points", player.FullName, rec.ProjectedPoints))
	if rec.PositionalNeed >= 0.5 {
		parts = append(parts, fmt.Sprintf("fills a thin %s group", rec.Position))
	}
	if rec.TrendPercentage > urgentTrendPct {
		parts = append(parts, fmt.Sprintf("%.0f%% of trending adds", rec.TrendPercentage))
	}
	if rec.DropPlayerID != "" {
		parts = append(parts, "drop "+rec.DropPlayerID)
	}
	return strings.Join(parts, "; ")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
