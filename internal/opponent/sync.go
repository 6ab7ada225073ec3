package opponent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/valuation"
)

type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) (bool, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error)
}

type SyncResult struct {
	Stored   int
	Replayed int
	Skipped  int
}

// SyncTransactions stores a week of feed transactions and replays trades that
// were not seen before through the profile of every opposing participant.
func (l *Learner) SyncTransactions(ctx context.Context, txStore TransactionStore, league *models.League, week int, txs []providers.FeedTransaction) (SyncResult, error) {
	var result SyncResult

	ids := make([]string, 0)
	for _, tx := range txs {
		for id := range tx.Adds {
			ids = append(ids, id)
		}
		for id := range tx.Drops {
			ids = append(ids, id)
		}
	}
	players, err := txStore.GetPlayers(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to resolve transaction players: %w", err)
	}

	for _, tx := range txs {
		local := toLocal(league, week, tx, players)
		created, err := txStore.SaveTransaction(ctx, local)
		if err != nil {
			return result, err
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Stored++

		if tx.Type != models.TransactionTrade {
			continue
		}
		for _, rosterID := range tx.RosterIDs {
			if rosterID == league.UserRosterID {
				continue
			}
			outcome := outcomeFor(rosterID, tx, players)
			if _, err := l.Record(ctx, league.ID, rosterID, outcome); err != nil {
				return result, err
			}
			result.Replayed++
		}
	}

	l.logger.WithFields(logrus.Fields{
		"league_id": league.ID,
		"week":      week,
		"stored":    result.Stored,
		"replayed":  result.Replayed,
		"skipped":   result.Skipped,
	}).Info("Transactions synced")

	return result, nil
}

func outcomeFor(rosterID int, tx providers.FeedTransaction, players map[string]models.Player) TradeOutcome {
	outcome := TradeOutcome{
		Accepted:            tx.Status == models.TransactionComplete,
		InitiatedByOpponent: tx.CreatorRosterID == rosterID,
	}
	for id, to := range tx.Adds {
		if to != rosterID {
			continue
		}
		p, ok := players[id]
		if !ok {
			continue
		}
		outcome.PositionsGained = append(outcome.PositionsGained, p.Position)
		if valuation.IsInjured(valuation.InjuryRisk(p.Status)) {
			outcome.GainedInjured = true
		}
	}
	for id, from := range tx.Drops {
		if from != rosterID {
			continue
		}
		if p, ok := players[id]; ok {
			outcome.PositionsLost = append(outcome.PositionsLost, p.Position)
		}
	}
	return outcome
}

func toLocal(league *models.League, week int, tx providers.FeedTransaction, players map[string]models.Player) *models.Transaction {
	local := &models.Transaction{
		ExternalID:      tx.ID,
		LeagueID:        league.ID,
		Season:          league.Season,
		Week:            week,
		Type:            tx.Type,
		Status:          tx.Status,
		RosterIDs:       datatypes.JSONSlice[int](tx.RosterIDs),
		Adds:            datatypes.NewJSONType(tx.Adds),
		Drops:           datatypes.NewJSONType(tx.Drops),
		CreatorRosterID: tx.CreatorRosterID,
		WaiverBid:       tx.WaiverBid,
		OccurredAt:      tx.CreatedAt,
	}
	if tx.Week > 0 {
		local.Week = tx.Week
	}
	// waiver history is compared by the position of the claimed player
	if tx.Type == models.TransactionWaiver {
		for id := range tx.Adds {
			if p, ok := players[id]; ok {
				local.Position = p.Position
				break
			}
		}
	}
	return local
}
