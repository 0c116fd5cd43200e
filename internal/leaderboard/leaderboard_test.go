package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tidebrook/choretally/internal/database"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/store"
)

type fixture struct {
	db         *sql.DB
	svc        *Service
	engine     *points.Engine
	households *store.HouseholdStore
	users      *store.UserStore
	chores     *store.ChoreStore

	householdID int64
	adminID     int64
	aliceID     int64
	bobID       int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:         db,
		svc:        NewService(db, slog.Default()),
		engine:     points.NewEngine(db, slog.Default()),
		households: store.NewHouseholdStore(db),
		users:      store.NewUserStore(db),
		chores:     store.NewChoreStore(db),
	}

	hh, err := f.households.Create("Test House")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	f.householdID = hh.ID

	for _, u := range []struct {
		email, name, role string
		id                *int64
	}{
		{"admin@example.com", "Zoe", "admin", &f.adminID},
		{"alice@example.com", "Alice", "member", &f.aliceID},
		{"bob@example.com", "Bob", "member", &f.bobID},
	} {
		user, err := f.users.Create(u.email, u.name, "")
		if err != nil {
			t.Fatalf("create user %s: %v", u.name, err)
		}
		if _, err := f.households.AddMember(hh.ID, user.ID, u.role); err != nil {
			t.Fatalf("add member %s: %v", u.name, err)
		}
		*u.id = user.ID
	}

	return f
}

func (f *fixture) grant(t *testing.T, userID int64, pts int) {
	t.Helper()
	if _, err := f.engine.AwardBonus(context.Background(), f.adminID, f.householdID, userID, pts, ""); err != nil {
		t.Fatalf("grant %d to %d: %v", pts, userID, err)
	}
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"", "all_time", "this_week", "this_month"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) = %v, want nil", s, err)
		}
	}
	_, err := ParsePeriod("fortnight")
	if !errors.Is(err, points.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestGetLeaderboardRanking(t *testing.T) {
	f := setup(t)
	f.grant(t, f.aliceID, 80)
	f.grant(t, f.bobID, 50)

	entries, err := f.svc.GetLeaderboard(f.householdID, f.bobID, PeriodAllTime)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}

	// Admin has zero points and is not the requester, so only two rows.
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].UserID != f.aliceID || entries[0].Rank != 1 || entries[0].TotalPoints != 80 {
		t.Errorf("first = %+v, want Alice rank 1 with 80", entries[0])
	}
	if entries[1].UserID != f.bobID || entries[1].Rank != 2 || entries[1].TotalPoints != 50 {
		t.Errorf("second = %+v, want Bob rank 2 with 50", entries[1])
	}
	if !entries[1].IsCurrentUser {
		t.Error("requester's row should have IsCurrentUser set")
	}
	if entries[0].IsCurrentUser {
		t.Error("other rows should not have IsCurrentUser set")
	}
}

func TestGetLeaderboardRequesterWithZeroPoints(t *testing.T) {
	f := setup(t)
	f.grant(t, f.aliceID, 30)

	entries, err := f.svc.GetLeaderboard(f.householdID, f.adminID, PeriodAllTime)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}

	// Bob is dropped, but the zero-point requester stays visible.
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	last := entries[len(entries)-1]
	if last.UserID != f.adminID || !last.IsCurrentUser || last.TotalPoints != 0 {
		t.Errorf("last = %+v, want zero-point requester", last)
	}
	if last.Rank != 3 {
		t.Errorf("requester rank = %d, want 3 (ranked before filtering)", last.Rank)
	}
}

func TestGetLeaderboardTiesAlphabetical(t *testing.T) {
	f := setup(t)
	f.grant(t, f.bobID, 40)
	f.grant(t, f.aliceID, 40)

	entries, err := f.svc.GetLeaderboard(f.householdID, f.aliceID, PeriodAllTime)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].DisplayName != "Alice" || entries[1].DisplayName != "Bob" {
		t.Errorf("tie order = %q, %q, want Alice then Bob", entries[0].DisplayName, entries[1].DisplayName)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("tie ranks = %d, %d, want sequential 1, 2", entries[0].Rank, entries[1].Rank)
	}
}

func TestGetLeaderboardPeriodWindow(t *testing.T) {
	f := setup(t)
	f.grant(t, f.aliceID, 60)

	if _, err := f.engine.AwardBonus(context.Background(), f.adminID, f.householdID, f.bobID, 25, ""); err != nil {
		t.Fatalf("grant bob: %v", err)
	}

	// Push Alice's entries out of the current week and month.
	if _, err := f.db.Exec(
		"UPDATE point_transactions SET created_at = datetime('now', '-45 days') WHERE user_id = ?", f.aliceID,
	); err != nil {
		t.Fatalf("age transactions: %v", err)
	}

	entries, err := f.svc.GetLeaderboard(f.householdID, f.bobID, PeriodThisWeek)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}

	// Only Bob earned inside the window; Alice has zero and is dropped.
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].UserID != f.bobID || entries[0].TotalPoints != 25 {
		t.Errorf("entry = %+v, want Bob with 25", entries[0])
	}

	// All-time still counts the old earnings.
	allTime, err := f.svc.GetLeaderboard(f.householdID, f.bobID, PeriodAllTime)
	if err != nil {
		t.Fatalf("all-time leaderboard: %v", err)
	}
	if len(allTime) != 2 || allTime[0].UserID != f.aliceID {
		t.Errorf("all-time = %+v, want Alice first", allTime)
	}
}

func TestGetLeaderboardUnknownHousehold(t *testing.T) {
	f := setup(t)
	_, err := f.svc.GetLeaderboard(9999, f.aliceID, PeriodAllTime)
	if !errors.Is(err, points.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetStatistics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chore, err := f.chores.Create(f.householdID, "Dishes", "", 20, "easy")
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := f.engine.AwardChoreCompletion(ctx, f.aliceID, f.householdID, chore.ID); err != nil {
		t.Fatalf("completion: %v", err)
	}
	f.grant(t, f.aliceID, 10)

	stats, err := f.svc.GetStatistics(f.aliceID, f.householdID)
	if err != nil {
		t.Fatalf("get statistics: %v", err)
	}

	if stats.Week.Points != 30 {
		t.Errorf("week points = %d, want 30", stats.Week.Points)
	}
	if stats.Week.Chores != 1 {
		t.Errorf("week chores = %d, want 1", stats.Week.Chores)
	}
	if stats.PreviousWeek.Points != 0 {
		t.Errorf("previous week points = %d, want 0", stats.PreviousWeek.Points)
	}
	// New activity against an empty previous week reads as +100%.
	if stats.WeekPointsChange != 100 {
		t.Errorf("week change = %v, want 100", stats.WeekPointsChange)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("current streak = %d, want 1", stats.CurrentStreak)
	}
	if stats.CurrentBalance != 30 || stats.TotalEarned != 30 {
		t.Errorf("balance = %d earned = %d, want 30/30", stats.CurrentBalance, stats.TotalEarned)
	}
}

func TestGetStatisticsEmpty(t *testing.T) {
	f := setup(t)

	stats, err := f.svc.GetStatistics(f.aliceID, f.householdID)
	if err != nil {
		t.Fatalf("get statistics: %v", err)
	}
	if stats.Week.Points != 0 || stats.WeekPointsChange != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		current, previous int
		want              float64
	}{
		{0, 0, 0},
		{10, 0, 100},
		{0, 10, -100},
		{15, 10, 50},
		{5, 10, -50},
	}
	for _, tt := range tests {
		if got := percentChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("percentChange(%d, %d) = %v, want %v", tt.current, tt.previous, got, tt.want)
		}
	}
}

func TestPeriodStart(t *testing.T) {
	svc := &Service{now: func() time.Time {
		// A Wednesday.
		return time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	}}

	week := svc.periodStart(PeriodThisWeek)
	if want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC); !week.Equal(want) {
		t.Errorf("week start = %v, want Monday %v", week, want)
	}

	month := svc.periodStart(PeriodThisMonth)
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !month.Equal(want) {
		t.Errorf("month start = %v, want %v", month, want)
	}
}

func TestPeriodStartOnMonday(t *testing.T) {
	svc := &Service{now: func() time.Time {
		return time.Date(2026, 3, 9, 0, 5, 0, 0, time.UTC)
	}}
	week := svc.periodStart(PeriodThisWeek)
	if want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC); !week.Equal(want) {
		t.Errorf("week start = %v, want same Monday %v", week, want)
	}
}
