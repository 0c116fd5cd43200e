// Package badge evaluates badge criteria against a user's ledger-derived
// counters and awards unlocks through the points engine.
package badge

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/store"
)

// Evaluator checks every badge definition the user does not yet hold against
// the matching counter. Counters are gross historical figures: an undone
// completion still counts, mirroring how totalEarned accounting works.
type Evaluator struct {
	engine   *points.Engine
	ledger   *store.LedgerStore
	balances *store.BalanceStore
	streaks  *store.StreakStore
	badges   *store.BadgeStore
	logger   *slog.Logger
}

func NewEvaluator(db *sql.DB, engine *points.Engine, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		engine:   engine,
		ledger:   store.NewLedgerStore(db),
		balances: store.NewBalanceStore(db),
		streaks:  store.NewStreakStore(db),
		badges:   store.NewBadgeStore(db),
		logger:   logger.With("component", "badges"),
	}
}

// Unlock is one newly-earned badge plus the bonus it granted, if any.
type Unlock struct {
	Badge  model.BadgeDefinition `json:"badge"`
	Points int                   `json:"points"`
}

// Evaluate awards every badge whose criteria the user now meets and returns
// the new unlocks. Safe to call repeatedly: already-held badges are skipped
// here and the engine's unique-constraint insert backstops races between
// concurrent evaluations.
func (e *Evaluator) Evaluate(ctx context.Context, userID, householdID int64) ([]Unlock, error) {
	defs, err := e.badges.ListDefinitions()
	if err != nil {
		return nil, err
	}
	held, err := e.badges.ListUserBadges(userID)
	if err != nil {
		return nil, err
	}

	var unlocks []Unlock
	for _, def := range defs {
		if _, ok := held[def.ID]; ok {
			continue
		}

		met, err := e.criteriaMet(def, userID, householdID)
		if err != nil {
			return nil, err
		}
		if !met {
			continue
		}

		result, err := e.engine.AwardBadgePoints(ctx, userID, householdID, def.ID)
		if err != nil {
			return nil, err
		}

		unlock := Unlock{Badge: def}
		if result != nil && result.Transaction != nil {
			unlock.Points = result.Transaction.Points
		}
		unlocks = append(unlocks, unlock)
		e.logger.Info("badge unlocked", "user_id", userID, "badge", def.Name)
	}
	return unlocks, nil
}

func (e *Evaluator) criteriaMet(def model.BadgeDefinition, userID, householdID int64) (bool, error) {
	switch def.CriteriaType {
	case model.CriteriaChoresCompleted:
		count, err := e.ledger.CountByType(userID, householdID, model.TxChoreCompletion)
		if err != nil {
			return false, err
		}
		return count >= def.Value, nil

	case model.CriteriaStreakDays:
		st, err := e.streaks.Get(userID)
		if err != nil {
			return false, err
		}
		return st != nil && st.LongestStreak >= def.Value, nil

	case model.CriteriaTotalPoints:
		balance, err := e.balances.Get(userID, householdID)
		if err != nil {
			return false, err
		}
		return balance != nil && balance.TotalEarned >= def.Value, nil

	default:
		// Special badges are granted manually, never by evaluation.
		return false, nil
	}
}
