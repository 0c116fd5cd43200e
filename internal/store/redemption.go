package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

type RedemptionStore struct {
	db *sql.DB
}

func NewRedemptionStore(db *sql.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var fulfilledAt sql.NullTime
	var fulfilledBy sql.NullInt64

	err := scanner.Scan(
		&r.ID, &r.RewardID, &r.UserID, &r.HouseholdID, &r.PointsSpent,
		&r.Status, &fulfilledAt, &fulfilledBy, &r.FulfillmentNotes, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fulfilledAt.Valid {
		r.FulfilledAt = &fulfilledAt.Time
	}
	if fulfilledBy.Valid {
		r.FulfilledBy = &fulfilledBy.Int64
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, user_id, household_id, points_spent, status, fulfilled_at, fulfilled_by, fulfillment_notes, created_at`

// CreateTx inserts a pending redemption inside the caller's transaction, so
// the charge and its record commit or roll back together.
func (s *RedemptionStore) CreateTx(tx *sql.Tx, rewardID, userID, householdID int64, pointsSpent int) (*model.Redemption, error) {
	result, err := tx.Exec(
		`INSERT INTO redemptions (reward_id, user_id, household_id, points_spent) VALUES (?, ?, ?, ?)`,
		rewardID, userID, householdID, pointsSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := tx.QueryRow(`SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	return scanRedemption(row)
}

func (s *RedemptionStore) GetByID(id int64) (*model.Redemption, error) {
	return getRedemption(s.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction, so the refund path
// reads the status it is about to act on under the same lock.
func (s *RedemptionStore) GetByIDTx(tx *sql.Tx, id int64) (*model.Redemption, error) {
	return getRedemption(tx, id)
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getRedemption(q rowQuerier, id int64) (*model.Redemption, error) {
	row := q.QueryRow(`SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// DeletePendingTx removes a redemption only while it is still pending, inside
// the caller's transaction. Returns false when the row is missing or already
// fulfilled, mirroring the status guard on Fulfill.
func (s *RedemptionStore) DeletePendingTx(tx *sql.Tx, id int64) (bool, error) {
	result, err := tx.Exec(`DELETE FROM redemptions WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("delete redemption: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Fulfill transitions pending -> fulfilled exactly once. The status guard in
// the WHERE clause makes the transition atomic; a second call matches no row.
func (s *RedemptionStore) Fulfill(id, adminUserID int64, notes string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE redemptions
		 SET status = 'fulfilled', fulfilled_at = CURRENT_TIMESTAMP, fulfilled_by = ?, fulfillment_notes = ?
		 WHERE id = ? AND status = 'pending'`,
		adminUserID, notes, id,
	)
	if err != nil {
		return false, fmt.Errorf("fulfill redemption: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *RedemptionStore) ListByUser(userID, householdID int64) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE user_id = ? AND household_id = ? ORDER BY created_at DESC`,
		userID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by user: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

func (s *RedemptionStore) ListByHousehold(householdID int64, status model.RedemptionStatus) ([]model.Redemption, error) {
	query := `SELECT ` + redemptionCols + ` FROM redemptions WHERE household_id = ?`
	args := []any{householdID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by household: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

func collectRedemptions(rows *sql.Rows) ([]model.Redemption, error) {
	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}
