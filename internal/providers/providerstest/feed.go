// Package providerstest provides an in-memory Feed for tests.
package providerstest

import (
	"context"
	"sync"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
)

// Feed serves canned data. Err, when set, is returned by every call.
type Feed struct {
	mu sync.Mutex

	State        providers.NFLState
	Leagues      map[string]*providers.LeagueInfo
	Rosters      map[string][]providers.RosterInfo
	Users        map[string][]providers.LeagueUser
	Transactions map[string]map[int][]providers.FeedTransaction
	Stats        map[int][]providers.PlayerStatLine
	Trending     []providers.TrendingPlayer
	Players      []providers.FeedPlayer
	Err          error

	calls map[string]int
}

func NewFeed() *Feed {
	return &Feed{
		State:        providers.NFLState{Season: 2024, Week: 6, SeasonType: "regular"},
		Leagues:      make(map[string]*providers.LeagueInfo),
		Rosters:      make(map[string][]providers.RosterInfo),
		Users:        make(map[string][]providers.LeagueUser),
		Transactions: make(map[string]map[int][]providers.FeedTransaction),
		Stats:        make(map[int][]providers.PlayerStatLine),
		calls:        make(map[string]int),
	}
}

// Calls returns how many times the named method was invoked.
func (f *Feed) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Feed) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.Err
}

func (f *Feed) GetState(context.Context) (*providers.NFLState, error) {
	if err := f.record("GetState"); err != nil {
		return nil, err
	}
	state := f.State
	return &state, nil
}

func (f *Feed) GetLeague(_ context.Context, leagueID string) (*providers.LeagueInfo, error) {
	if err := f.record("GetLeague"); err != nil {
		return nil, err
	}
	info, ok := f.Leagues[leagueID]
	if !ok {
		return nil, providers.ErrUpstreamNotFound
	}
	return info, nil
}

func (f *Feed) GetRosters(_ context.Context, leagueID string) ([]providers.RosterInfo, error) {
	if err := f.record("GetRosters"); err != nil {
		return nil, err
	}
	return f.Rosters[leagueID], nil
}

func (f *Feed) GetUsers(_ context.Context, leagueID string) ([]providers.LeagueUser, error) {
	if err := f.record("GetUsers"); err != nil {
		return nil, err
	}
	return f.Users[leagueID], nil
}

func (f *Feed) GetTransactions(_ context.Context, leagueID string, week int) ([]providers.FeedTransaction, error) {
	if err := f.record("GetTransactions"); err != nil {
		return nil, err
	}
	return f.Transactions[leagueID][week], nil
}

func (f *Feed) GetWeeklyStats(_ context.Context, _ int, week int) ([]providers.PlayerStatLine, error) {
	if err := f.record("GetWeeklyStats"); err != nil {
		return nil, err
	}
	return f.Stats[week], nil
}

func (f *Feed) GetTrendingAdds(_ context.Context, _ int, limit int) ([]providers.TrendingPlayer, error) {
	if err := f.record("GetTrendingAdds"); err != nil {
		return nil, err
	}
	if limit > 0 && len(f.Trending) > limit {
		return f.Trending[:limit], nil
	}
	return f.Trending, nil
}

func (f *Feed) GetAllPlayers(context.Context) ([]providers.FeedPlayer, error) {
	if err := f.record("GetAllPlayers"); err != nil {
		return nil, err
	}
	return f.Players, nil
}

func (f *Feed) GetPlayerStatuses(_ context.Context, ids []string) (map[string]models.PlayerStatus, error) {
	if err := f.record("GetPlayerStatuses"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]models.PlayerStatus)
	for _, p := range f.Players {
		if want[p.PlayerID] {
			out[p.PlayerID] = p.Status
		}
	}
	return out, nil
}

var _ providers.Feed = (*Feed)(nil)
