package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

func scanStreak(scanner interface{ Scan(...any) error }) (*model.UserStreak, error) {
	var s model.UserStreak
	err := scanner.Scan(&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.LastCompletionDate, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const streakCols = `user_id, current_streak, longest_streak, last_completion_date, updated_at`

// Get returns the streak row, or nil if the user has never completed a chore.
func (s *StreakStore) Get(userID int64) (*model.UserStreak, error) {
	row := s.db.QueryRow(`SELECT `+streakCols+` FROM user_streaks WHERE user_id = ?`, userID)
	st, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

// GetTx is Get inside the caller's transaction.
func (s *StreakStore) GetTx(tx *sql.Tx, userID int64) (*model.UserStreak, error) {
	row := tx.QueryRow(`SELECT `+streakCols+` FROM user_streaks WHERE user_id = ?`, userID)
	st, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

// UpsertTx writes the streak counters inside the caller's transaction.
func (s *StreakStore) UpsertTx(tx *sql.Tx, userID int64, current, longest int, lastDate string) error {
	_, err := tx.Exec(
		`INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_completion_date, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_completion_date = excluded.last_completion_date,
			updated_at = CURRENT_TIMESTAMP`,
		userID, current, longest, lastDate,
	)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}
