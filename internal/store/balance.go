package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

// BalanceStore maintains the point_balances projection. All writes go through
// ApplyDeltaTx, a single atomic upsert; there is no read-modify-write path.
type BalanceStore struct {
	db *sql.DB
}

func NewBalanceStore(db *sql.DB) *BalanceStore {
	return &BalanceStore{db: db}
}

func scanBalance(scanner interface{ Scan(...any) error }) (*model.PointBalance, error) {
	var b model.PointBalance
	err := scanner.Scan(&b.UserID, &b.HouseholdID, &b.CurrentBalance, &b.TotalEarned, &b.TotalSpent, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const balanceCols = `user_id, household_id, current_balance, total_earned, total_spent, updated_at`

// Get returns the balance row, or nil if the user has never had a
// transaction. Callers treat absence as zero balance.
func (s *BalanceStore) Get(userID, householdID int64) (*model.PointBalance, error) {
	row := s.db.QueryRow(
		`SELECT `+balanceCols+` FROM point_balances WHERE user_id = ? AND household_id = ?`,
		userID, householdID,
	)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetTx is Get inside the caller's transaction.
func (s *BalanceStore) GetTx(tx *sql.Tx, userID, householdID int64) (*model.PointBalance, error) {
	row := tx.QueryRow(
		`SELECT `+balanceCols+` FROM point_balances WHERE user_id = ? AND household_id = ?`,
		userID, householdID,
	)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ApplyDeltaTx adjusts the projection in one atomic statement.
// current_balance always moves by points; total_earned only grows on
// positive non-refund entries; total_spent only grows on redemption charges.
// Undo entries and redemption refunds therefore touch the balance alone,
// keeping both totals monotonically non-decreasing.
func (s *BalanceStore) ApplyDeltaTx(tx *sql.Tx, userID, householdID int64, points int, txType string) (*model.PointBalance, error) {
	earnedDelta := 0
	spentDelta := 0
	if points > 0 && txType != model.TxRewardRedemption {
		earnedDelta = points
	}
	if points < 0 && txType == model.TxRewardRedemption {
		spentDelta = -points
	}

	_, err := tx.Exec(
		`INSERT INTO point_balances (user_id, household_id, current_balance, total_earned, total_spent, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, household_id) DO UPDATE SET
			current_balance = current_balance + excluded.current_balance,
			total_earned = total_earned + excluded.total_earned,
			total_spent = total_spent + excluded.total_spent,
			updated_at = CURRENT_TIMESTAMP`,
		userID, householdID, points, earnedDelta, spentDelta,
	)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}
	return s.GetTx(tx, userID, householdID)
}

// ListByHousehold returns all balance rows for a household.
func (s *BalanceStore) ListByHousehold(householdID int64) ([]model.PointBalance, error) {
	rows, err := s.db.Query(
		`SELECT `+balanceCols+` FROM point_balances WHERE household_id = ? ORDER BY total_earned DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

// Overwrite replaces a projection row with replayed ledger totals. Used only
// by the reconciler; the award path never calls this.
func (s *BalanceStore) Overwrite(userID, householdID int64, balance, earned, spent int) error {
	_, err := s.db.Exec(
		`INSERT INTO point_balances (user_id, household_id, current_balance, total_earned, total_spent, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, household_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			total_earned = excluded.total_earned,
			total_spent = excluded.total_spent,
			updated_at = CURRENT_TIMESTAMP`,
		userID, householdID, balance, earned, spent,
	)
	if err != nil {
		return fmt.Errorf("overwrite balance: %w", err)
	}
	return nil
}
