package points

import (
	"context"
	"log/slog"
	"testing"
)

func TestReconcilerCleanAfterOperations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	choreID := f.createChore(t, "Dishes", 20)
	rewardID := f.createReward(t, "Treat", 15, nil)

	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("completion: %v", err)
	}
	if _, err := f.engine.AwardBonus(ctx, f.adminID, f.householdID, f.memberID, 25, "tidy room"); err != nil {
		t.Fatalf("bonus: %v", err)
	}
	charged, err := f.engine.ChargeRedemption(ctx, f.memberID, f.householdID, rewardID)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}
	if _, err := f.engine.RefundRedemption(ctx, f.memberID, f.householdID, charged.Redemption.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := f.engine.UndoCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("undo: %v", err)
	}

	reconciler := &Reconciler{ledger: f.ledger, balances: f.balances, logger: slog.Default()}
	drifts, err := reconciler.Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(drifts) != 0 {
		t.Errorf("drifts = %+v, want none", drifts)
	}
}

func TestReconcilerDetectsAndRepairsDrift(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	choreID := f.createChore(t, "Dishes", 20)
	if _, err := f.engine.AwardChoreCompletion(ctx, f.memberID, f.householdID, choreID); err != nil {
		t.Fatalf("completion: %v", err)
	}

	// Corrupt the projection out-of-band.
	if err := f.balances.Overwrite(f.memberID, f.householdID, 999, 999, 0); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	reconciler := &Reconciler{ledger: f.ledger, balances: f.balances, logger: slog.Default()}

	drifts, err := reconciler.Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("drifts = %d, want 1", len(drifts))
	}
	if drifts[0].ProjectedBalance != 999 || drifts[0].ReplayedBalance != 20 {
		t.Errorf("drift = %+v, want projected 999 replayed 20", drifts[0])
	}

	repaired, err := reconciler.Rebuild()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	balance, err := f.balances.Get(f.memberID, f.householdID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.CurrentBalance != 20 || balance.TotalEarned != 20 {
		t.Errorf("balance after rebuild = %+v, want 20/20", balance)
	}

	// Clean again after repair.
	drifts, err = reconciler.Verify()
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if len(drifts) != 0 {
		t.Errorf("drifts after rebuild = %+v, want none", drifts)
	}
}
