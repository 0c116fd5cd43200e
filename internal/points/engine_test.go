package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidebrook/choretally/internal/database"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/store"
)

type fixture struct {
	engine     *Engine
	households *store.HouseholdStore
	users      *store.UserStore
	chores     *store.ChoreStore
	rewards    *store.RewardStore
	ledger     *store.LedgerStore
	balances   *store.BalanceStore
	streaks    *store.StreakStore
	redemption *store.RedemptionStore
	badges     *store.BadgeStore

	householdID int64
	adminID     int64
	memberID    int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupAt(t, ":memory:")
}

func setupAt(t *testing.T, dsn string) *fixture {
	t.Helper()
	db, err := database.Open(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		engine:     NewEngine(db, slog.Default()),
		households: store.NewHouseholdStore(db),
		users:      store.NewUserStore(db),
		chores:     store.NewChoreStore(db),
		rewards:    store.NewRewardStore(db),
		ledger:     store.NewLedgerStore(db),
		balances:   store.NewBalanceStore(db),
		streaks:    store.NewStreakStore(db),
		redemption: store.NewRedemptionStore(db),
		badges:     store.NewBadgeStore(db),
	}

	hh, err := f.households.Create("Test House")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	f.householdID = hh.ID

	admin, err := f.users.Create("admin@example.com", "Admin", "")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f.adminID = admin.ID
	if _, err := f.households.AddMember(hh.ID, admin.ID, "admin"); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	member, err := f.users.Create("member@example.com", "Member", "")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	f.memberID = member.ID
	if _, err := f.households.AddMember(hh.ID, member.ID, "member"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	return f
}

func (f *fixture) createChore(t *testing.T, title string, points int) int64 {
	t.Helper()
	chore, err := f.chores.Create(f.householdID, title, "", points, "easy")
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return chore.ID
}

func (f *fixture) createReward(t *testing.T, title string, cost int, quantity *int) int64 {
	t.Helper()
	reward, err := f.rewards.Create(f.householdID, title, "", cost, quantity)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return reward.ID
}

func TestNewMemberHasZeroBalance(t *testing.T) {
	f := setup(t)

	balance, err := f.balances.Get(f.memberID, f.householdID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != nil {
		t.Errorf("expected nil balance row for new member, got %+v", balance)
	}
}

func TestAwardChoreCompletion(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)

	result, err := f.engine.AwardChoreCompletion(context.Background(), f.memberID, f.householdID, choreID)
	if err != nil {
		t.Fatalf("award completion: %v", err)
	}

	if result.Completion.ChoreID != choreID {
		t.Errorf("completion chore = %d, want %d", result.Completion.ChoreID, choreID)
	}
	if result.Completion.PointsEarned != 20 {
		t.Errorf("points earned = %d, want 20", result.Completion.PointsEarned)
	}
	if result.Transaction.TransactionType != model.TxChoreCompletion {
		t.Errorf("tx type = %q, want %q", result.Transaction.TransactionType, model.TxChoreCompletion)
	}
	if result.Transaction.BalanceAfter != 20 {
		t.Errorf("balance_after = %d, want 20", result.Transaction.BalanceAfter)
	}
	if result.Balance.CurrentBalance != 20 || result.Balance.TotalEarned != 20 {
		t.Errorf("balance = %d earned = %d, want 20/20", result.Balance.CurrentBalance, result.Balance.TotalEarned)
	}
	if result.Streak.CurrentStreak != 1 || result.Streak.LongestStreak != 1 {
		t.Errorf("streak = %d/%d, want 1/1", result.Streak.CurrentStreak, result.Streak.LongestStreak)
	}
}

func TestAwardChoreCompletionTwiceSameDay(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)
	ctx := context.Background()

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	_, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
	}

	// The same chore by a different member is fine.
	if _, err := f.engine.AwardChoreCompletion(ctx, f.adminID, f.householdID, choreID); err != nil {
		t.Errorf("other member completion: %v", err)
	}
}

func TestAwardChoreCompletionConcurrentSingleAward(t *testing.T) {
	f := setupAt(t, filepath.Join(t.TempDir(), "points.db"))
	choreID := f.createChore(t, "Dishes", 20)
	ctx := context.Background()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID)
			errs <- err
		}()
	}

	var awarded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			awarded++
		case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrConcurrencyConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if awarded != 1 || rejected != 1 {
		t.Fatalf("awarded = %d rejected = %d, want exactly one award", awarded, rejected)
	}

	history, err := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterAll, 10, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(history))
	}
	balance, _ := f.balances.Get(f.memberID, f.householdID)
	if balance.CurrentBalance != 20 {
		t.Errorf("balance = %d, want 20", balance.CurrentBalance)
	}
}

func TestAwardChoreCompletionZeroPointChore(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Freebie", 0)

	_, err := f.engine.AwardChoreCompletion(context.Background(), f.memberID, f.householdID, choreID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	history, _ := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterAll, 10, 0)
	if len(history) != 0 {
		t.Errorf("ledger entries = %d, want 0", len(history))
	}
}

func TestAwardChoreCompletionOverlongTitle(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, strings.Repeat("x", 501), 20)

	_, err := f.engine.AwardChoreCompletion(context.Background(), f.memberID, f.householdID, choreID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAwardChoreCompletionUnknownChore(t *testing.T) {
	f := setup(t)
	_, err := f.engine.AwardChoreCompletion(context.Background(), f.memberID, f.householdID, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAwardChoreCompletionNonMember(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)

	outsider, err := f.users.Create("outsider@example.com", "Outsider", "")
	if err != nil {
		t.Fatalf("create outsider: %v", err)
	}

	_, err = f.engine.AwardChoreCompletion(context.Background(), outsider.ID, f.householdID, choreID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestUndoCompletionRoundTrip(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)
	ctx := context.Background()

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("award completion: %v", err)
	}

	result, err := f.engine.UndoCompletion(ctx, f.memberID, f.householdID, choreID)
	if err != nil {
		t.Fatalf("undo completion: %v", err)
	}

	if result.Transaction.Points != -20 {
		t.Errorf("undo points = %d, want -20", result.Transaction.Points)
	}
	if result.Transaction.TransactionType != model.TxUndo {
		t.Errorf("tx type = %q, want %q", result.Transaction.TransactionType, model.TxUndo)
	}
	if result.Balance.CurrentBalance != 0 {
		t.Errorf("balance = %d, want 0", result.Balance.CurrentBalance)
	}
	// Gross accounting: the undo does not roll back total_earned.
	if result.Balance.TotalEarned != 20 {
		t.Errorf("total_earned = %d, want 20", result.Balance.TotalEarned)
	}

	// Both entries stay in the ledger.
	history, err := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterAll, 10, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history entries = %d, want 2", len(history))
	}

	// A second undo has no active completion left to reverse.
	_, err = f.engine.UndoCompletion(ctx, f.memberID, f.householdID, choreID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second undo err = %v, want ErrNotFound", err)
	}
}

func TestUndoCompletionWindowExpired(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)
	ctx := context.Background()

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("award completion: %v", err)
	}

	f.engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, err := f.engine.UndoCompletion(ctx, f.memberID, f.householdID, choreID)
	if !errors.Is(err, ErrUndoWindowExpired) {
		t.Fatalf("err = %v, want ErrUndoWindowExpired", err)
	}
}

func TestUndoDoesNotTouchStreak(t *testing.T) {
	f := setup(t)
	choreID := f.createChore(t, "Dishes", 20)
	ctx := context.Background()

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("award completion: %v", err)
	}
	if _, err := f.engine.UndoCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("undo completion: %v", err)
	}

	st, err := f.streaks.Get(f.memberID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if st == nil || st.CurrentStreak != 1 {
		t.Errorf("streak after undo = %+v, want current 1", st)
	}
}

func TestStreakAcrossDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	for i, offset := range []int{0, 1, 2} {
		f.engine.now = func() time.Time { return base.AddDate(0, 0, offset) }
		choreID := f.createChore(t, fmt.Sprintf("chore-%d", i), 10)
		result, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID)
		if err != nil {
			t.Fatalf("day %d completion: %v", i, err)
		}
		if result.Streak.CurrentStreak != i+1 {
			t.Errorf("day %d streak = %d, want %d", i, result.Streak.CurrentStreak, i+1)
		}
	}

	// Skip a day; the streak resets but the longest survives.
	f.engine.now = func() time.Time { return base.AddDate(0, 0, 4) }
	choreID := f.createChore(t, "after-gap", 10)
	result, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID)
	if err != nil {
		t.Fatalf("post-gap completion: %v", err)
	}
	if result.Streak.CurrentStreak != 1 {
		t.Errorf("post-gap streak = %d, want 1", result.Streak.CurrentStreak)
	}
	if result.Streak.LongestStreak != 3 {
		t.Errorf("longest streak = %d, want 3", result.Streak.LongestStreak)
	}
	if result.Streak.LongestStreak < result.Streak.CurrentStreak {
		t.Error("longest streak must never be below current streak")
	}
}

func TestAwardBonus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	result, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, "great week")
	if err != nil {
		t.Fatalf("award bonus: %v", err)
	}
	if result.Transaction.Points != 50 {
		t.Errorf("points = %d, want 50", result.Transaction.Points)
	}
	if result.Transaction.CreatedBy == nil || *result.Transaction.CreatedBy != f.adminID {
		t.Errorf("created_by = %v, want %d", result.Transaction.CreatedBy, f.adminID)
	}
	if result.Balance.CurrentBalance != 50 {
		t.Errorf("balance = %d, want 50", result.Balance.CurrentBalance)
	}
}

func TestAwardBonusValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Non-admin granter
	_, err := f.engine.AwardBonus(ctx, f.memberID, f.householdID, f.adminID, 10, "")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin err = %v, want ErrForbidden", err)
	}

	// Points over the cap
	_, err = f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 150, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("over-cap err = %v, want ErrValidation", err)
	}

	// Zero points
	_, err = f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 0, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("zero err = %v, want ErrValidation", err)
	}

	// Nothing was written by the rejected grants.
	balance, err := f.balances.Get(f.memberID, f.householdID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != nil {
		t.Errorf("expected no balance row after rejected grants, got %+v", balance)
	}
}

func TestChargeRedemption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	qty := 2
	rewardID := f.createReward(t, "Movie Night", 30, &qty)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	result, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if err != nil {
		t.Fatalf("charge redemption: %v", err)
	}

	if result.Redemption.Status != model.RedemptionPending {
		t.Errorf("status = %q, want %q", result.Redemption.Status, model.RedemptionPending)
	}
	if result.Balance.CurrentBalance != 20 {
		t.Errorf("balance = %d, want 20", result.Balance.CurrentBalance)
	}
	if result.Balance.TotalSpent != 30 {
		t.Errorf("total_spent = %d, want 30", result.Balance.TotalSpent)
	}

	reward, err := f.rewards.GetByID(rewardID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if reward.Quantity == nil || *reward.Quantity != 1 {
		t.Errorf("quantity = %v, want 1", reward.Quantity)
	}
}

func TestChargeRedemptionInsufficientBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rewardID := f.createReward(t, "Movie Night", 30, nil)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 10, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	_, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// Full rollback: no redemption row, no extra ledger entry, balance intact.
	redemptions, err := f.redemption.ListByUser(f.memberID, f.householdID)
	if err != nil {
		t.Fatalf("list redemptions: %v", err)
	}
	if len(redemptions) != 0 {
		t.Errorf("redemptions = %d, want 0", len(redemptions))
	}
	history, _ := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterAll, 10, 0)
	if len(history) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(history))
	}
	balance, _ := f.balances.Get(f.memberID, f.householdID)
	if balance.CurrentBalance != 10 {
		t.Errorf("balance = %d, want 10", balance.CurrentBalance)
	}
}

func TestChargeRedemptionOutOfStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	qty := 0
	rewardID := f.createReward(t, "Movie Night", 10, &qty)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	_, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestChargeRedemptionZeroCostReward(t *testing.T) {
	f := setup(t)
	rewardID := f.createReward(t, "Freebie", 0, nil)

	_, err := f.engine.ChargeRedemption(context.Background(), f.memberID, f.householdID, rewardID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRefundRedemption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	qty := 1
	rewardID := f.createReward(t, "Movie Night", 30, &qty)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	charged, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if err != nil {
		t.Fatalf("charge redemption: %v", err)
	}

	result, err := f.engine.RefundRedemption(ctx, f.memberID, f.householdID, charged.Redemption.ID)
	if err != nil {
		t.Fatalf("refund redemption: %v", err)
	}

	if result.Balance.CurrentBalance != 50 {
		t.Errorf("balance = %d, want 50", result.Balance.CurrentBalance)
	}
	// Gross accounting: the refund does not roll back total_spent.
	if result.Balance.TotalSpent != 30 {
		t.Errorf("total_spent = %d, want 30", result.Balance.TotalSpent)
	}

	// Redemption record is gone and stock is restored.
	redemption, _ := f.redemption.GetByID(charged.Redemption.ID)
	if redemption != nil {
		t.Error("expected redemption record to be deleted")
	}
	reward, _ := f.rewards.GetByID(rewardID)
	if reward.Quantity == nil || *reward.Quantity != 1 {
		t.Errorf("quantity = %v, want 1", reward.Quantity)
	}
}

func TestRefundRedemptionForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rewardID := f.createReward(t, "Movie Night", 10, nil)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	charged, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if err != nil {
		t.Fatalf("charge redemption: %v", err)
	}

	other, err := f.users.Create("other@example.com", "Other", "")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if _, err := f.households.AddMember(f.householdID, other.ID, "member"); err != nil {
		t.Fatalf("add other: %v", err)
	}

	_, err = f.engine.RefundRedemption(ctx, other.ID, f.householdID, charged.Redemption.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// An admin may refund on the member's behalf.
	if _, err := f.engine.RefundRedemption(ctx, f.adminID, f.householdID, charged.Redemption.ID); err != nil {
		t.Errorf("admin refund: %v", err)
	}
}

func TestRefundFulfilledRedemption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rewardID := f.createReward(t, "Movie Night", 10, nil)

	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 50, ""); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	charged, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if err != nil {
		t.Fatalf("charge redemption: %v", err)
	}

	if _, err := f.redemption.Fulfill(charged.Redemption.ID, f.adminID, ""); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	_, err = f.engine.RefundRedemption(ctx, f.memberID, f.householdID, charged.Redemption.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	// No double benefit: the fulfilled record survives and no points came back.
	redemption, _ := f.redemption.GetByID(charged.Redemption.ID)
	if redemption == nil || redemption.Status != model.RedemptionFulfilled {
		t.Errorf("redemption = %+v, want fulfilled record intact", redemption)
	}
	balance, _ := f.balances.Get(f.memberID, f.householdID)
	if balance.CurrentBalance != 40 {
		t.Errorf("balance = %d, want 40", balance.CurrentBalance)
	}
}

func TestAwardBadgePointsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	defs, err := f.badges.ListDefinitions()
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	var badgeID int64
	var reward int
	for _, d := range defs {
		if d.PointsReward > 0 {
			badgeID, reward = d.ID, d.PointsReward
			break
		}
	}
	if badgeID == 0 {
		t.Fatal("no seeded badge with a points reward")
	}

	first, err := f.engine.AwardBadgePoints(ctx, f.memberID, f.householdID, badgeID)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if first == nil || first.Balance.CurrentBalance != reward {
		t.Fatalf("first award balance = %+v, want %d", first, reward)
	}

	second, err := f.engine.AwardBadgePoints(ctx, f.memberID, f.householdID, badgeID)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if second != nil {
		t.Errorf("second award = %+v, want nil (already held)", second)
	}

	balance, _ := f.balances.Get(f.memberID, f.householdID)
	if balance.CurrentBalance != reward {
		t.Errorf("balance after re-award = %d, want %d", balance.CurrentBalance, reward)
	}
}

func TestStreakBadgeUsesStreakBonusType(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	defs, err := f.badges.ListDefinitions()
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	var streakBadgeID int64
	for _, d := range defs {
		if d.CriteriaType == model.CriteriaStreakDays && d.PointsReward > 0 {
			streakBadgeID = d.ID
			break
		}
	}
	if streakBadgeID == 0 {
		t.Fatal("no seeded streak badge with a points reward")
	}

	result, err := f.engine.AwardBadgePoints(ctx, f.memberID, f.householdID, streakBadgeID)
	if err != nil {
		t.Fatalf("award streak badge: %v", err)
	}
	if result.Transaction.TransactionType != model.TxStreakBonus {
		t.Errorf("tx type = %q, want %q", result.Transaction.TransactionType, model.TxStreakBonus)
	}
}

func TestBalanceAfterSnapshots(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chore1 := f.createChore(t, "Dishes", 20)
	chore2 := f.createChore(t, "Vacuum", 15)

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, chore1); err != nil {
		t.Fatalf("completion 1: %v", err)
	}
	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, chore2); err != nil {
		t.Fatalf("completion 2: %v", err)
	}

	history, err := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterAll, 10, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("entries = %d, want 2", len(history))
	}
	// Newest first.
	if history[0].BalanceAfter != 35 {
		t.Errorf("latest balance_after = %d, want 35", history[0].BalanceAfter)
	}
	if history[1].BalanceAfter != 20 {
		t.Errorf("first balance_after = %d, want 20", history[1].BalanceAfter)
	}
}

func TestHistoryFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rewardID := f.createReward(t, "Treat", 10, nil)
	choreID := f.createChore(t, "Dishes", 20)

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("completion: %v", err)
	}
	if _, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID); err != nil {
		t.Fatalf("redemption: %v", err)
	}

	earned, err := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterEarned, 10, 0)
	if err != nil {
		t.Fatalf("list earned: %v", err)
	}
	if len(earned) != 1 || earned[0].Points != 20 {
		t.Errorf("earned entries = %+v, want one +20", earned)
	}

	spent, err := f.ledger.ListByUser(f.memberID, f.householdID, store.FilterSpent, 10, 0)
	if err != nil {
		t.Fatalf("list spent: %v", err)
	}
	if len(spent) != 1 || spent[0].Points != -10 {
		t.Errorf("spent entries = %+v, want one -10", spent)
	}
}
