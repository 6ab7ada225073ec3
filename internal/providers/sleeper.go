package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/scoring"
)

// ErrUpstreamNotFound is returned when the feed answers 404 or a JSON null.
var ErrUpstreamNotFound = errors.New("feed resource not found")

type SleeperConfig struct {
	BaseURL          string
	RequestsPerSec   float64
	Timeout          time.Duration
	BreakerThreshold int
}

// SleeperClient implements Feed against the Sleeper public API.
type SleeperClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *logrus.Logger
}

func NewSleeperClient(cfg SleeperConfig, logger *logrus.Logger) *SleeperClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	burst := int(cfg.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}

	return &SleeperClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst),
		breaker:     NewCircuitBreaker("sleeper", cfg.BreakerThreshold, 30*time.Second, logger),
		logger:      logger,
	}
}

// Sleeper API response structures
type sleeperState struct {
	Season     string `json:"season"`
	Week       int    `json:"week"`
	SeasonType string `json:"season_type"`
}

type sleeperLeague struct {
	LeagueID        string             `json:"league_id"`
	Name            string             `json:"name"`
	Season          string             `json:"season"`
	Status          string             `json:"status"`
	TotalRosters    int                `json:"total_rosters"`
	ScoringSettings map[string]float64 `json:"scoring_settings"`
	Settings        struct {
		WaiverBudget int `json:"waiver_budget"`
	} `json:"settings"`
}

type sleeperRoster struct {
	RosterID int      `json:"roster_id"`
	OwnerID  string   `json:"owner_id"`
	Players  []string `json:"players"`
	Starters []string `json:"starters"`
	Settings struct {
		WaiverBudgetUsed int `json:"waiver_budget_used"`
	} `json:"settings"`
}

type sleeperUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type sleeperTransaction struct {
	TransactionID string         `json:"transaction_id"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Leg           int            `json:"leg"`
	RosterIDs     []int          `json:"roster_ids"`
	ConsenterIDs  []int          `json:"consenter_ids"`
	Adds          map[string]int `json:"adds"`
	Drops         map[string]int `json:"drops"`
	Created       int64          `json:"created"`
	Settings      *struct {
		WaiverBid int `json:"waiver_bid"`
	} `json:"settings"`
}

type sleeperTrending struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
}

type sleeperPlayer struct {
	PlayerID     string `json:"player_id"`
	FullName     string `json:"full_name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Position     string `json:"position"`
	Team         string `json:"team"`
	Status       string `json:"status"`
	InjuryStatus string `json:"injury_status"`
	Active       bool   `json:"active"`
}

func (c *SleeperClient) GetState(ctx context.Context) (*NFLState, error) {
	var raw sleeperState
	if err := c.getJSON(ctx, "/state/nfl", &raw); err != nil {
		return nil, err
	}
	season, err := strconv.Atoi(raw.Season)
	if err != nil {
		return nil, fmt.Errorf("invalid season %q in feed state: %w", raw.Season, err)
	}
	return &NFLState{Season: season, Week: raw.Week, SeasonType: raw.SeasonType}, nil
}

func (c *SleeperClient) GetLeague(ctx context.Context, leagueID string) (*LeagueInfo, error) {
	var raw *sleeperLeague
	if err := c.getJSON(ctx, "/league/"+leagueID, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("league %s: %w", leagueID, ErrUpstreamNotFound)
	}
	season, _ := strconv.Atoi(raw.Season)
	return &LeagueInfo{
		ID:           raw.LeagueID,
		Name:         raw.Name,
		Season:       season,
		Status:       raw.Status,
		TotalRosters: raw.TotalRosters,
		ScoringType:  scoring.FromLeagueSettings(raw.ScoringSettings["rec"]),
		WaiverBudget: raw.Settings.WaiverBudget,
	}, nil
}

func (c *SleeperClient) GetRosters(ctx context.Context, leagueID string) ([]RosterInfo, error) {
	var raw []sleeperRoster
	if err := c.getJSON(ctx, fmt.Sprintf("/league/%s/rosters", leagueID), &raw); err != nil {
		return nil, err
	}
	rosters := make([]RosterInfo, 0, len(raw))
	for _, r := range raw {
		rosters = append(rosters, RosterInfo{
			RosterID:         r.RosterID,
			OwnerID:          r.OwnerID,
			Players:          r.Players,
			Starters:         r.Starters,
			WaiverBudgetUsed: r.Settings.WaiverBudgetUsed,
		})
	}
	return rosters, nil
}

func (c *SleeperClient) GetUsers(ctx context.Context, leagueID string) ([]LeagueUser, error) {
	var raw []sleeperUser
	if err := c.getJSON(ctx, fmt.Sprintf("/league/%s/users", leagueID), &raw); err != nil {
		return nil, err
	}
	users := make([]LeagueUser, 0, len(raw))
	for _, u := range raw {
		users = append(users, LeagueUser{UserID: u.UserID, DisplayName: u.DisplayName})
	}
	return users, nil
}

func (c *SleeperClient) GetTransactions(ctx context.Context, leagueID string, week int) ([]FeedTransaction, error) {
	var raw []sleeperTransaction
	if err := c.getJSON(ctx, fmt.Sprintf("/league/%s/transactions/%d", leagueID, week), &raw); err != nil {
		return nil, err
	}
	txs := make([]FeedTransaction, 0, len(raw))
	for _, t := range raw {
		tx := FeedTransaction{
			ID:        t.TransactionID,
			Type:      t.Type,
			Status:    t.Status,
			Week:      t.Leg,
			RosterIDs: t.RosterIDs,
			Adds:      t.Adds,
			Drops:     t.Drops,
			CreatedAt: time.UnixMilli(t.Created).UTC(),
		}
		if tx.Week == 0 {
			tx.Week = week
		}
		// the proposing roster is the first consenter on trades
		if len(t.ConsenterIDs) > 0 {
			tx.CreatorRosterID = t.ConsenterIDs[0]
		} else if len(t.RosterIDs) > 0 {
			tx.CreatorRosterID = t.RosterIDs[0]
		}
		if t.Settings != nil {
			tx.WaiverBid = t.Settings.WaiverBid
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *SleeperClient) GetWeeklyStats(ctx context.Context, season, week int) ([]PlayerStatLine, error) {
	var raw map[string]map[string]float64
	if err := c.getJSON(ctx, fmt.Sprintf("/stats/nfl/regular/%d/%d", season, week), &raw); err != nil {
		return nil, err
	}
	lines := make([]PlayerStatLine, 0, len(raw))
	for id, stats := range raw {
		if len(stats) == 0 {
			continue
		}
		lines = append(lines, PlayerStatLine{PlayerID: id, Stats: models.StatBag(stats)})
	}
	return lines, nil
}

func (c *SleeperClient) GetTrendingAdds(ctx context.Context, lookbackHours, limit int) ([]TrendingPlayer, error) {
	var raw []sleeperTrending
	path := fmt.Sprintf("/players/nfl/trending/add?lookback_hours=%d&limit=%d", lookbackHours, limit)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	trending := make([]TrendingPlayer, 0, len(raw))
	for _, t := range raw {
		trending = append(trending, TrendingPlayer{PlayerID: t.PlayerID, Count: t.Count})
	}
	return trending, nil
}

// GetAllPlayers returns every feed player at a fantasy position.
func (c *SleeperClient) GetAllPlayers(ctx context.Context) ([]FeedPlayer, error) {
	var raw map[string]sleeperPlayer
	if err := c.getJSON(ctx, "/players/nfl", &raw); err != nil {
		return nil, err
	}
	players := make([]FeedPlayer, 0, len(raw))
	for id, p := range raw {
		pos := MapPosition(p.Position)
		if pos == "" {
			continue
		}
		name := p.FullName
		if name == "" {
			name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
		if p.PlayerID == "" {
			p.PlayerID = id
		}
		players = append(players, FeedPlayer{
			PlayerID:     p.PlayerID,
			FullName:     name,
			Position:     pos,
			Team:         p.Team,
			Status:       MapStatus(p.Status, p.InjuryStatus),
			InjuryStatus: p.InjuryStatus,
			Active:       p.Active,
		})
	}
	return players, nil
}

// GetPlayerStatuses resolves current availability for the given players. The
// feed has no per-player endpoint, so this reads the full player dump.
func (c *SleeperClient) GetPlayerStatuses(ctx context.Context, playerIDs []string) (map[string]models.PlayerStatus, error) {
	players, err := c.GetAllPlayers(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		wanted[id] = struct{}{}
	}
	statuses := make(map[string]models.PlayerStatus, len(playerIDs))
	for _, p := range players {
		if _, ok := wanted[p.PlayerID]; ok {
			statuses[p.PlayerID] = p.Status
		}
	}
	return statuses, nil
}

func (c *SleeperClient) getJSON(ctx context.Context, path string, dest interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request to %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", path, ErrUpstreamNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("feed returned status %d for %s: %s", resp.StatusCode, path, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil, nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Feed request failed")
		return err
	}
	return nil
}
