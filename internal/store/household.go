package store

import (
	"database/sql"
	"fmt"

	"github.com/tidebrook/choretally/internal/model"
)

// HouseholdStore is the membership collaborator: the ledger core asks it who
// belongs to a household and whether a user is its admin.
type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, created_at, updated_at`
const householdMemberCols = `id, household_id, user_id, role, created_at, updated_at`

func (s *HouseholdStore) Create(name string) (*model.Household, error) {
	result, err := s.db.Exec(`INSERT INTO households (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) AddMember(householdID, userID int64, role string) (*model.HouseholdMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO household_members (household_id, user_id, role) VALUES (?, ?, ?)`,
		householdID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+householdMemberCols+` FROM household_members WHERE id = ?`, id)
	return scanHouseholdMember(row)
}

func (s *HouseholdStore) GetMember(householdID, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// IsAdmin reports whether the user is an admin of the household.
func (s *HouseholdStore) IsAdmin(householdID, userID int64) (bool, error) {
	m, err := s.GetMember(householdID, userID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Role == "admin", nil
}

// IsAdminTx is IsAdmin inside the caller's transaction.
func (s *HouseholdStore) IsAdminTx(tx *sql.Tx, householdID, userID int64) (bool, error) {
	var role string
	err := tx.QueryRow(
		`SELECT role FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get member role: %w", err)
	}
	return role == "admin", nil
}

// MemberProfile is a household member joined with display fields, the shape
// the leaderboard renders.
type MemberProfile struct {
	UserID      int64
	DisplayName string
	AvatarURL   string
	Role        string
}

// ListMemberProfiles returns household members with their display fields, in
// stable display-name order.
func (s *HouseholdStore) ListMemberProfiles(householdID int64) ([]MemberProfile, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.display_name, u.avatar_url, hm.role
		 FROM household_members hm
		 JOIN users u ON u.id = hm.user_id
		 WHERE hm.household_id = ?
		 ORDER BY u.display_name ASC, u.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list member profiles: %w", err)
	}
	defer rows.Close()

	var members []MemberProfile
	for rows.Next() {
		var m MemberProfile
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.AvatarURL, &m.Role); err != nil {
			return nil, fmt.Errorf("scan member profile: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
