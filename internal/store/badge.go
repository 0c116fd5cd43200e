package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func scanBadgeDefinition(scanner interface{ Scan(...any) error }) (*model.BadgeDefinition, error) {
	var b model.BadgeDefinition
	err := scanner.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Category, &b.CriteriaType, &b.Value, &b.PointsReward)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const badgeDefCols = `id, name, description, icon, category, criteria_type, criteria_value, points_reward`

func (s *BadgeStore) ListDefinitions() ([]model.BadgeDefinition, error) {
	rows, err := s.db.Query(`SELECT ` + badgeDefCols + ` FROM badge_definitions ORDER BY category ASC, criteria_value ASC`)
	if err != nil {
		return nil, fmt.Errorf("list badge definitions: %w", err)
	}
	defer rows.Close()

	var badges []model.BadgeDefinition
	for rows.Next() {
		b, err := scanBadgeDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge definition: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

func (s *BadgeStore) GetDefinition(id int64) (*model.BadgeDefinition, error) {
	row := s.db.QueryRow(`SELECT `+badgeDefCols+` FROM badge_definitions WHERE id = ?`, id)
	b, err := scanBadgeDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge definition: %w", err)
	}
	return b, nil
}

// ListUserBadges returns the ids of badges the user has earned.
func (s *BadgeStore) ListUserBadges(userID int64) (map[int64]model.UserBadge, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, badge_id, earned_at FROM user_badges WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}
	defer rows.Close()

	earned := make(map[int64]model.UserBadge)
	for rows.Next() {
		var ub model.UserBadge
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan user badge: %w", err)
		}
		earned[ub.BadgeID] = ub
	}
	return earned, rows.Err()
}

// InsertUserBadgeTx records a badge unlock inside the caller's transaction.
// Returns false if the (user, badge) pair already exists; the UNIQUE
// constraint makes the unlock idempotent even under concurrent evaluation.
func (s *BadgeStore) InsertUserBadgeTx(tx *sql.Tx, userID, badgeID int64) (bool, error) {
	result, err := tx.Exec(
		`INSERT OR IGNORE INTO user_badges (user_id, badge_id) VALUES (?, ?)`,
		userID, badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("insert user badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
