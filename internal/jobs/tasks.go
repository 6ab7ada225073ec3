package jobs

import (
	"context"
	"fmt"

	"github.com/jstittsworth/fantasy-advisor/internal/ingest"
)

const (
	PlayerSync      = "player_sync"
	ProjectionSync  = "projection_sync"
	StatSync        = "stat_sync"
	TransactionSync = "transaction_sync"
)

// DefaultSchedules are evaluated in the runner's location.
var DefaultSchedules = map[string]string{
	PlayerSync:      "0 6 * * *",
	ProjectionSync:  "0 7 * * *",
	StatSync:        "0 9 * * 2",
	TransactionSync: "0 10 * * 3",
}

type Syncer interface {
	CurrentWeek(ctx context.Context) (season, week int, err error)
	SyncPlayers(ctx context.Context) (*ingest.BatchResult, error)
	SyncAllLeagues(ctx context.Context) (*ingest.BatchResult, error)
	SyncWeeklyStats(ctx context.Context, season, week int) (*ingest.BatchResult, error)
	SyncProjections(ctx context.Context, season, week int) (*ingest.BatchResult, error)
	SyncAllTransactions(ctx context.Context, week int) (*ingest.BatchResult, error)
}

// RegisterDefaults wires the standard sync jobs onto the runner.
func RegisterDefaults(r *Runner, s Syncer) error {
	tasks := map[string]Task{
		PlayerSync:      PlayerSyncTask(s),
		ProjectionSync:  ProjectionSyncTask(s),
		StatSync:        StatSyncTask(s),
		TransactionSync: TransactionSyncTask(s),
	}
	for _, name := range []string{PlayerSync, ProjectionSync, StatSync, TransactionSync} {
		if err := r.Register(name, DefaultSchedules[name], tasks[name]); err != nil {
			return err
		}
	}
	return nil
}

// PlayerSyncTask refreshes the player directory and then every league roster.
func PlayerSyncTask(s Syncer) Task {
	return func(ctx context.Context) error {
		if err := checkBatch(s.SyncPlayers(ctx)); err != nil {
			return err
		}
		return checkBatch(s.SyncAllLeagues(ctx))
	}
}

func ProjectionSyncTask(s Syncer) Task {
	return func(ctx context.Context) error {
		season, week, err := s.CurrentWeek(ctx)
		if err != nil {
			return err
		}
		return checkBatch(s.SyncProjections(ctx, season, week))
	}
}

// StatSyncTask loads the week that just finished.
func StatSyncTask(s Syncer) Task {
	return func(ctx context.Context) error {
		season, week, err := s.CurrentWeek(ctx)
		if err != nil {
			return err
		}
		if week > 1 {
			week--
		}
		return checkBatch(s.SyncWeeklyStats(ctx, season, week))
	}
}

// TransactionSyncTask replays the previous week's waivers and trades.
func TransactionSyncTask(s Syncer) Task {
	return func(ctx context.Context) error {
		_, week, err := s.CurrentWeek(ctx)
		if err != nil {
			return err
		}
		if week > 1 {
			week--
		}
		return checkBatch(s.SyncAllTransactions(ctx, week))
	}
}

func checkBatch(result *ingest.BatchResult, err error) error {
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("batch failed: %d of %d items failed", result.Failed, result.Processed)
	}
	return nil
}
