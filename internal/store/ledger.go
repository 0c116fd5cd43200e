package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tidebrook/choretally/internal/model"
)

// LedgerStore persists point transactions. The ledger is append-only: no
// method on this store ever updates or deletes a row.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var refID, createdBy sql.NullInt64
	var desc sql.NullString

	err := scanner.Scan(
		&t.ID, &t.UserID, &t.HouseholdID, &t.Points, &t.TransactionType,
		&refID, &desc, &t.BalanceAfter, &createdBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if refID.Valid {
		t.ReferenceID = &refID.Int64
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.Int64
	}
	return &t, nil
}

const transactionCols = `id, user_id, household_id, points, transaction_type, reference_id, description, balance_after, created_by, created_at`

// AppendInput describes a ledger entry to be written. BalanceAfter is
// computed by AppendTx, not supplied by callers.
type AppendInput struct {
	UserID          int64
	HouseholdID     int64
	Points          int
	TransactionType string
	ReferenceID     *int64
	Description     *string
	CreatedBy       *int64
}

// AppendTx inserts a ledger entry inside the caller's transaction. The
// balance_after snapshot is read from the projection row under the same
// transaction, so it is consistent with the delta applied alongside it.
func (s *LedgerStore) AppendTx(tx *sql.Tx, in AppendInput) (*model.PointTransaction, error) {
	var current int
	err := tx.QueryRow(
		`SELECT COALESCE((SELECT current_balance FROM point_balances WHERE user_id = ? AND household_id = ?), 0)`,
		in.UserID, in.HouseholdID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("read current balance: %w", err)
	}

	var refID, createdBy sql.NullInt64
	if in.ReferenceID != nil {
		refID = sql.NullInt64{Int64: *in.ReferenceID, Valid: true}
	}
	if in.CreatedBy != nil {
		createdBy = sql.NullInt64{Int64: *in.CreatedBy, Valid: true}
	}
	var desc sql.NullString
	if in.Description != nil {
		desc = sql.NullString{String: *in.Description, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO point_transactions (user_id, household_id, points, transaction_type, reference_id, description, balance_after, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.HouseholdID, in.Points, in.TransactionType, refID, desc, current+in.Points, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := tx.QueryRow(`SELECT `+transactionCols+` FROM point_transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// HistoryFilter narrows a history listing to earned or spent entries.
type HistoryFilter string

const (
	FilterAll    HistoryFilter = ""
	FilterEarned HistoryFilter = "earned"
	FilterSpent  HistoryFilter = "spent"
)

// ListByUser returns a user's transactions newest first.
func (s *LedgerStore) ListByUser(userID, householdID int64, filter HistoryFilter, limit, offset int) ([]model.PointTransaction, error) {
	query := `SELECT ` + transactionCols + ` FROM point_transactions WHERE user_id = ? AND household_id = ?`
	switch filter {
	case FilterEarned:
		query += ` AND points > 0`
	case FilterSpent:
		query += ` AND points < 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, userID, householdID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// SumByUser returns the signed sum of all entries for a user, the ledger's
// own answer to "what is the balance". The reconciler treats this as the
// source of truth when verifying the projection.
func (s *LedgerStore) SumByUser(userID, householdID int64) (int, error) {
	var sum int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0) FROM point_transactions WHERE user_id = ? AND household_id = ?`,
		userID, householdID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// EarnedByMemberBetween returns per-member sums of positive entries in
// [start, end) for a household. Members with no positive entries are absent.
func (s *LedgerStore) EarnedByMemberBetween(householdID int64, start, end time.Time) (map[int64]int, error) {
	rows, err := s.db.Query(
		`SELECT user_id, SUM(points) FROM point_transactions
		 WHERE household_id = ? AND points > 0 AND created_at >= ? AND created_at < ?
		 GROUP BY user_id`,
		householdID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sum earned by member: %w", err)
	}
	defer rows.Close()

	earned := make(map[int64]int)
	for rows.Next() {
		var userID int64
		var sum int
		if err := rows.Scan(&userID, &sum); err != nil {
			return nil, fmt.Errorf("scan earned row: %w", err)
		}
		earned[userID] = sum
	}
	return earned, rows.Err()
}

// EarnedBetween returns the sum of a user's positive entries in [start, end).
func (s *LedgerStore) EarnedBetween(userID, householdID int64, start, end time.Time) (int, error) {
	var sum int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0) FROM point_transactions
		 WHERE user_id = ? AND household_id = ? AND points > 0 AND created_at >= ? AND created_at < ?`,
		userID, householdID, start.UTC(), end.UTC(),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum earned between: %w", err)
	}
	return sum, nil
}

// CountByTypeBetween counts a user's entries of the given type in [start, end).
func (s *LedgerStore) CountByTypeBetween(userID, householdID int64, txType string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM point_transactions
		 WHERE user_id = ? AND household_id = ? AND transaction_type = ? AND created_at >= ? AND created_at < ?`,
		userID, householdID, txType, start.UTC(), end.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by type between: %w", err)
	}
	return count, nil
}

// CountByType counts all of a user's entries of the given type.
func (s *LedgerStore) CountByType(userID, householdID int64, txType string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM point_transactions WHERE user_id = ? AND household_id = ? AND transaction_type = ?`,
		userID, householdID, txType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by type: %w", err)
	}
	return count, nil
}

// ReplayTotals recomputes projection figures for a (user, household) pair by
// replaying the ledger with the same accounting rules the projector applies
// incrementally. Undo entries and redemption refunds affect the balance only.
func (s *LedgerStore) ReplayTotals(userID, householdID int64) (balance, earned, spent int, err error) {
	err = s.db.QueryRow(
		`SELECT
			COALESCE(SUM(points), 0),
			COALESCE(SUM(CASE WHEN points > 0 AND transaction_type != 'reward_redemption' THEN points ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN points < 0 AND transaction_type = 'reward_redemption' THEN -points ELSE 0 END), 0)
		 FROM point_transactions WHERE user_id = ? AND household_id = ?`,
		userID, householdID,
	).Scan(&balance, &earned, &spent)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("replay totals: %w", err)
	}
	return balance, earned, spent, nil
}

// ListPairs returns every (user, household) pair present in the ledger.
func (s *LedgerStore) ListPairs() ([][2]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id, household_id FROM point_transactions`)
	if err != nil {
		return nil, fmt.Errorf("list ledger pairs: %w", err)
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var p [2]int64
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
