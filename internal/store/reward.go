package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var quantity sql.NullInt64
	var active int
	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.PointCost, &quantity, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if quantity.Valid {
		q := int(quantity.Int64)
		r.Quantity = &q
	}
	r.Active = active == 1
	return &r, nil
}

const rewardCols = `id, household_id, title, description, point_cost, quantity, active, created_at`

func (s *RewardStore) Create(householdID int64, title, description string, pointCost int, quantity *int) (*model.Reward, error) {
	var q any
	if quantity != nil {
		q = *quantity
	}
	result, err := s.db.Exec(
		`INSERT INTO rewards (household_id, title, description, point_cost, quantity) VALUES (?, ?, ?, ?, ?)`,
		householdID, title, description, pointCost, q,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByHousehold(householdID int64, activeOnly bool) ([]model.Reward, error) {
	query := `SELECT ` + rewardCols + ` FROM rewards WHERE household_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY point_cost ASC, title ASC`

	rows, err := s.db.Query(query, householdID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// DecrementQuantityTx consumes one unit of a limited reward inside the
// caller's transaction. Unlimited rewards (NULL quantity) are untouched.
// Returns false when a limited reward has no stock left, so the caller can
// roll back the whole redemption.
func (s *RewardStore) DecrementQuantityTx(tx *sql.Tx, id int64) (bool, error) {
	var quantity sql.NullInt64
	err := tx.QueryRow(`SELECT quantity FROM rewards WHERE id = ?`, id).Scan(&quantity)
	if err != nil {
		return false, fmt.Errorf("get reward quantity: %w", err)
	}
	if !quantity.Valid {
		return true, nil
	}

	result, err := tx.Exec(`UPDATE rewards SET quantity = quantity - 1 WHERE id = ? AND quantity > 0`, id)
	if err != nil {
		return false, fmt.Errorf("decrement reward quantity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// IncrementQuantityTx restores one unit of a limited reward, the refund
// counterpart of DecrementQuantityTx.
func (s *RewardStore) IncrementQuantityTx(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`UPDATE rewards SET quantity = quantity + 1 WHERE id = ? AND quantity IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("increment reward quantity: %w", err)
	}
	return nil
}
