package points

import (
	"database/sql"
	"log/slog"

	"github.com/tidebrook/choretally/internal/store"
)

// Reconciler verifies the point_balances projection against the ledger and
// can rebuild drifted rows. Because the award path writes both under one
// transaction, any drift it finds means a bug or out-of-band data surgery.
type Reconciler struct {
	ledger   *store.LedgerStore
	balances *store.BalanceStore
	logger   *slog.Logger
}

func NewReconciler(db *sql.DB, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger:   store.NewLedgerStore(db),
		balances: store.NewBalanceStore(db),
		logger:   logger.With("component", "reconciler"),
	}
}

// Drift describes one projection row that disagrees with the ledger replay.
type Drift struct {
	UserID           int64 `json:"user_id"`
	HouseholdID      int64 `json:"household_id"`
	ProjectedBalance int   `json:"projected_balance"`
	ReplayedBalance  int   `json:"replayed_balance"`
	ProjectedEarned  int   `json:"projected_earned"`
	ReplayedEarned   int   `json:"replayed_earned"`
	ProjectedSpent   int   `json:"projected_spent"`
	ReplayedSpent    int   `json:"replayed_spent"`
}

// Verify replays the ledger for every (user, household) pair and reports rows
// whose projection disagrees. An empty slice means the projection is sound.
func (r *Reconciler) Verify() ([]Drift, error) {
	pairs, err := r.ledger.ListPairs()
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, p := range pairs {
		userID, householdID := p[0], p[1]

		balance, earned, spent, err := r.ledger.ReplayTotals(userID, householdID)
		if err != nil {
			return nil, err
		}

		projected, err := r.balances.Get(userID, householdID)
		if err != nil {
			return nil, err
		}

		pBalance, pEarned, pSpent := 0, 0, 0
		if projected != nil {
			pBalance, pEarned, pSpent = projected.CurrentBalance, projected.TotalEarned, projected.TotalSpent
		}

		if pBalance != balance || pEarned != earned || pSpent != spent {
			drifts = append(drifts, Drift{
				UserID:           userID,
				HouseholdID:      householdID,
				ProjectedBalance: pBalance,
				ReplayedBalance:  balance,
				ProjectedEarned:  pEarned,
				ReplayedEarned:   earned,
				ProjectedSpent:   pSpent,
				ReplayedSpent:    spent,
			})
			r.logger.Warn("projection drift",
				"user_id", userID, "household_id", householdID,
				"projected_balance", pBalance, "replayed_balance", balance)
		}
	}
	return drifts, nil
}

// Rebuild overwrites every drifted projection row with replayed ledger
// totals and returns how many rows were repaired.
func (r *Reconciler) Rebuild() (int, error) {
	drifts, err := r.Verify()
	if err != nil {
		return 0, err
	}

	for _, d := range drifts {
		err := r.balances.Overwrite(d.UserID, d.HouseholdID, d.ReplayedBalance, d.ReplayedEarned, d.ReplayedSpent)
		if err != nil {
			return 0, err
		}
		r.logger.Info("projection rebuilt",
			"user_id", d.UserID, "household_id", d.HouseholdID,
			"balance", d.ReplayedBalance)
	}
	return len(drifts), nil
}
