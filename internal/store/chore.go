package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tidebrook/choretally/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	err := scanner.Scan(&c.ID, &c.HouseholdID, &c.Title, &c.Description, &c.Points, &c.Difficulty, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.ChoreCompletion, error) {
	var cc model.ChoreCompletion
	var undone int
	err := scanner.Scan(&cc.ID, &cc.ChoreID, &cc.HouseholdID, &cc.CompletedBy, &cc.PointsEarned, &undone, &cc.CompletedAt)
	if err != nil {
		return nil, err
	}
	cc.Undone = undone == 1
	return &cc, nil
}

const choreCols = `id, household_id, title, description, points, difficulty, created_at, updated_at`
const completionCols = `id, chore_id, household_id, completed_by, points_earned, undone, completed_at`

func (s *ChoreStore) Create(householdID int64, title, description string, points int, difficulty string) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (household_id, title, description, points, difficulty) VALUES (?, ?, ?, ?, ?)`,
		householdID, title, description, points, difficulty,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) ListByHousehold(householdID int64) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY title ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// CreateCompletionTx records a completion inside the caller's transaction.
func (s *ChoreStore) CreateCompletionTx(tx *sql.Tx, choreID, userID, householdID int64, pointsEarned int) (*model.ChoreCompletion, error) {
	result, err := tx.Exec(
		`INSERT INTO chore_completions (chore_id, household_id, completed_by, points_earned) VALUES (?, ?, ?, ?)`,
		choreID, householdID, userID, pointsEarned,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := tx.QueryRow(`SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	return scanCompletion(row)
}

func (s *ChoreStore) GetCompletion(id int64) (*model.ChoreCompletion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	cc, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return cc, nil
}

// ActiveCompletionSince returns the user's most recent un-undone completion of
// the chore at or after the cutoff, or nil. Passing the start of the current
// UTC day answers "already completed today".
func (s *ChoreStore) ActiveCompletionSince(choreID, userID int64, cutoff time.Time) (*model.ChoreCompletion, error) {
	return activeCompletionSince(s.db, choreID, userID, cutoff)
}

// ActiveCompletionSinceTx is ActiveCompletionSince inside the caller's
// transaction. The award path gates double completions with it there, so a
// concurrent completion of the same chore observes the first one's row.
func (s *ChoreStore) ActiveCompletionSinceTx(tx *sql.Tx, choreID, userID int64, cutoff time.Time) (*model.ChoreCompletion, error) {
	return activeCompletionSince(tx, choreID, userID, cutoff)
}

func activeCompletionSince(q rowQuerier, choreID, userID int64, cutoff time.Time) (*model.ChoreCompletion, error) {
	row := q.QueryRow(
		`SELECT `+completionCols+` FROM chore_completions
		 WHERE chore_id = ? AND completed_by = ? AND undone = 0 AND completed_at >= ?
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		choreID, userID, cutoff.UTC(),
	)
	cc, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active completion since: %w", err)
	}
	return cc, nil
}

// LatestActiveCompletion returns the user's most recent un-undone completion
// of the chore regardless of age, or nil.
func (s *ChoreStore) LatestActiveCompletion(choreID, userID int64) (*model.ChoreCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM chore_completions
		 WHERE chore_id = ? AND completed_by = ? AND undone = 0
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		choreID, userID,
	)
	cc, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest active completion: %w", err)
	}
	return cc, nil
}

// MarkCompletionUndoneTx flips the undone flag inside the caller's
// transaction. Returns false if the row was already undone.
func (s *ChoreStore) MarkCompletionUndoneTx(tx *sql.Tx, id int64) (bool, error) {
	result, err := tx.Exec(`UPDATE chore_completions SET undone = 1 WHERE id = ? AND undone = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark completion undone: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
