// Package points is the single write path for the ledger. Every operation
// that changes a balance funnels through the Engine, which wraps the ledger
// append, the projection delta, and any side rows in one transaction.
package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/store"
	"github.com/tidebrook/choretally/internal/streak"
)

const (
	// DefaultUndoWindow bounds how long after a completion the undo
	// operation is accepted.
	DefaultUndoWindow = 24 * time.Hour

	// MaxBonusPoints caps a single admin bonus grant.
	MaxBonusPoints = 100

	// MaxDescriptionLen bounds free-text fields on ledger entries and
	// fulfillment notes.
	MaxDescriptionLen = 500

	busyRetries = 5
)

// Engine coordinates all balance-affecting operations. Each public method is
// one intent, executed in a single transaction with full rollback on failure.
type Engine struct {
	db         *sql.DB
	ledger     *store.LedgerStore
	balances   *store.BalanceStore
	streaks    *store.StreakStore
	chores     *store.ChoreStore
	rewards    *store.RewardStore
	redemption *store.RedemptionStore
	badges     *store.BadgeStore
	households *store.HouseholdStore
	logger     *slog.Logger

	// UndoWindow is DefaultUndoWindow unless overridden at construction.
	UndoWindow time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

func NewEngine(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{
		db:         db,
		ledger:     store.NewLedgerStore(db),
		balances:   store.NewBalanceStore(db),
		streaks:    store.NewStreakStore(db),
		chores:     store.NewChoreStore(db),
		rewards:    store.NewRewardStore(db),
		redemption: store.NewRedemptionStore(db),
		badges:     store.NewBadgeStore(db),
		households: store.NewHouseholdStore(db),
		logger:     logger.With("component", "points"),
		UndoWindow: DefaultUndoWindow,
		now:        time.Now,
	}
}

// CompletionResult is what a successful chore completion produced.
type CompletionResult struct {
	Completion  *model.ChoreCompletion  `json:"completion"`
	Transaction *model.PointTransaction `json:"transaction"`
	Balance     *model.PointBalance     `json:"balance"`
	Streak      *model.UserStreak       `json:"streak"`
}

// AwardResult is what a bonus, undo, or badge award produced.
type AwardResult struct {
	Transaction *model.PointTransaction `json:"transaction"`
	Balance     *model.PointBalance     `json:"balance"`
}

// RedemptionResult is what a successful redemption charge produced.
type RedemptionResult struct {
	Redemption  *model.Redemption       `json:"redemption"`
	Transaction *model.PointTransaction `json:"transaction"`
	Balance     *model.PointBalance     `json:"balance"`
}

// AwardChoreCompletion records a completion: one completion row, one ledger
// entry, the balance delta, and the streak update commit together. The
// completed-today check runs inside the transaction, so of two concurrent
// completions the second observes the first one's row and is rejected.
func (e *Engine) AwardChoreCompletion(ctx context.Context, userID, householdID, choreID int64) (*CompletionResult, error) {
	if err := e.requireMember(householdID, userID); err != nil {
		return nil, err
	}

	chore, err := e.chores.GetByID(choreID)
	if err != nil {
		return nil, err
	}
	if chore == nil || chore.HouseholdID != householdID {
		return nil, fmt.Errorf("chore %d: %w", choreID, ErrNotFound)
	}
	if chore.Points == 0 {
		return nil, fmt.Errorf("chore %d has zero points: %w", choreID, ErrValidation)
	}
	if len(chore.Title) > MaxDescriptionLen {
		return nil, fmt.Errorf("chore title exceeds %d characters: %w", MaxDescriptionLen, ErrValidation)
	}

	dayStart, err := time.Parse("2006-01-02", streak.DayOf(e.now()))
	if err != nil {
		return nil, fmt.Errorf("parse day start: %w", err)
	}

	var result CompletionResult
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := e.chores.ActiveCompletionSinceTx(tx, choreID, userID, dayStart)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("chore %d: %w", choreID, ErrAlreadyCompleted)
		}

		completion, err := e.chores.CreateCompletionTx(tx, choreID, userID, householdID, chore.Points)
		if err != nil {
			return err
		}

		entry, err := e.ledger.AppendTx(tx, store.AppendInput{
			UserID:          userID,
			HouseholdID:     householdID,
			Points:          chore.Points,
			TransactionType: model.TxChoreCompletion,
			ReferenceID:     &completion.ID,
			Description:     &chore.Title,
		})
		if err != nil {
			return err
		}

		balance, err := e.balances.ApplyDeltaTx(tx, userID, householdID, chore.Points, model.TxChoreCompletion)
		if err != nil {
			return err
		}

		st, err := e.advanceStreakTx(tx, userID)
		if err != nil {
			return err
		}

		result = CompletionResult{Completion: completion, Transaction: entry, Balance: balance, Streak: st}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("chore completed",
		"user_id", userID, "chore_id", choreID, "points", chore.Points,
		"balance", result.Balance.CurrentBalance, "streak", result.Streak.CurrentStreak)
	return &result, nil
}

// UndoCompletion reverses the user's most recent active completion of the
// chore by appending a compensating negative entry. The original row stays in
// the ledger untouched. The streak is deliberately left alone.
func (e *Engine) UndoCompletion(ctx context.Context, userID, householdID, choreID int64) (*AwardResult, error) {
	if err := e.requireMember(householdID, userID); err != nil {
		return nil, err
	}

	completion, err := e.chores.LatestActiveCompletion(choreID, userID)
	if err != nil {
		return nil, err
	}
	if completion == nil || completion.HouseholdID != householdID {
		return nil, fmt.Errorf("completion of chore %d: %w", choreID, ErrNotFound)
	}
	if e.now().Sub(completion.CompletedAt) > e.UndoWindow {
		return nil, fmt.Errorf("completion %d: %w", completion.ID, ErrUndoWindowExpired)
	}

	var result AwardResult
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		undone, err := e.chores.MarkCompletionUndoneTx(tx, completion.ID)
		if err != nil {
			return err
		}
		if !undone {
			return fmt.Errorf("completion %d already undone: %w", completion.ID, ErrInvalidState)
		}

		entry, err := e.ledger.AppendTx(tx, store.AppendInput{
			UserID:          userID,
			HouseholdID:     householdID,
			Points:          -completion.PointsEarned,
			TransactionType: model.TxUndo,
			ReferenceID:     &completion.ID,
		})
		if err != nil {
			return err
		}

		balance, err := e.balances.ApplyDeltaTx(tx, userID, householdID, -completion.PointsEarned, model.TxUndo)
		if err != nil {
			return err
		}

		result = AwardResult{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("completion undone",
		"user_id", userID, "chore_id", choreID, "completion_id", completion.ID,
		"points", -completion.PointsEarned)
	return &result, nil
}

// AwardBonus grants discretionary points. Only household admins may grant,
// and a single grant is capped at MaxBonusPoints.
func (e *Engine) AwardBonus(ctx context.Context, granterID, householdID, recipientID int64, pts int, reason string) (*AwardResult, error) {
	admin, err := e.households.IsAdmin(householdID, granterID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, fmt.Errorf("user %d is not a household admin: %w", granterID, ErrForbidden)
	}
	if pts < 1 || pts > MaxBonusPoints {
		return nil, fmt.Errorf("bonus points must be between 1 and %d: %w", MaxBonusPoints, ErrValidation)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxDescriptionLen {
		return nil, fmt.Errorf("reason exceeds %d characters: %w", MaxDescriptionLen, ErrValidation)
	}
	if err := e.requireMember(householdID, recipientID); err != nil {
		return nil, err
	}

	var result AwardResult
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		in := store.AppendInput{
			UserID:          recipientID,
			HouseholdID:     householdID,
			Points:          pts,
			TransactionType: model.TxBonus,
			CreatedBy:       &granterID,
		}
		if reason != "" {
			in.Description = &reason
		}
		entry, err := e.ledger.AppendTx(tx, in)
		if err != nil {
			return err
		}

		balance, err := e.balances.ApplyDeltaTx(tx, recipientID, householdID, pts, model.TxBonus)
		if err != nil {
			return err
		}

		result = AwardResult{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("bonus granted",
		"granter_id", granterID, "recipient_id", recipientID, "points", pts)
	return &result, nil
}

// ChargeRedemption deducts a reward's cost and creates the pending redemption
// record in the same transaction. The balance check runs inside the
// transaction, so two simultaneous redemptions cannot both pass it against
// the same funds.
func (e *Engine) ChargeRedemption(ctx context.Context, userID, householdID, rewardID int64) (*RedemptionResult, error) {
	if err := e.requireMember(householdID, userID); err != nil {
		return nil, err
	}

	reward, err := e.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil || reward.HouseholdID != householdID {
		return nil, fmt.Errorf("reward %d: %w", rewardID, ErrNotFound)
	}
	if !reward.Active {
		return nil, fmt.Errorf("reward %d is inactive: %w", rewardID, ErrInvalidState)
	}
	if reward.PointCost < 1 {
		return nil, fmt.Errorf("reward %d has no point cost: %w", rewardID, ErrValidation)
	}

	var result RedemptionResult
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		balance, err := e.balances.GetTx(tx, userID, householdID)
		if err != nil {
			return err
		}
		current := 0
		if balance != nil {
			current = balance.CurrentBalance
		}
		if current < reward.PointCost {
			return fmt.Errorf("balance %d, cost %d: %w", current, reward.PointCost, ErrInsufficientBalance)
		}

		inStock, err := e.rewards.DecrementQuantityTx(tx, rewardID)
		if err != nil {
			return err
		}
		if !inStock {
			return fmt.Errorf("reward %d out of stock: %w", rewardID, ErrInvalidState)
		}

		redemption, err := e.redemption.CreateTx(tx, rewardID, userID, householdID, reward.PointCost)
		if err != nil {
			return err
		}

		entry, err := e.ledger.AppendTx(tx, store.AppendInput{
			UserID:          userID,
			HouseholdID:     householdID,
			Points:          -reward.PointCost,
			TransactionType: model.TxRewardRedemption,
			ReferenceID:     &redemption.ID,
			Description:     &reward.Title,
		})
		if err != nil {
			return err
		}

		newBalance, err := e.balances.ApplyDeltaTx(tx, userID, householdID, -reward.PointCost, model.TxRewardRedemption)
		if err != nil {
			return err
		}

		result = RedemptionResult{Redemption: redemption, Transaction: entry, Balance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("reward redeemed",
		"user_id", userID, "reward_id", rewardID, "cost", reward.PointCost,
		"redemption_id", result.Redemption.ID)
	return &result, nil
}

// RefundRedemption cancels a still-pending redemption: the record is removed,
// stock is restored, and a compensating positive entry returns the points.
// The charge entry stays in the ledger; history shows both sides. Every check
// runs inside the transaction and the delete is status-guarded, so a
// concurrent Fulfill cannot slip between the status read and the delete.
func (e *Engine) RefundRedemption(ctx context.Context, userID, householdID, redemptionID int64) (*AwardResult, error) {
	var result AwardResult
	var refundedUser int64
	var refundedPoints int
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		redemption, err := e.redemption.GetByIDTx(tx, redemptionID)
		if err != nil {
			return err
		}
		if redemption == nil || redemption.HouseholdID != householdID {
			return fmt.Errorf("redemption %d: %w", redemptionID, ErrNotFound)
		}
		if redemption.UserID != userID {
			admin, err := e.households.IsAdminTx(tx, householdID, userID)
			if err != nil {
				return err
			}
			if !admin {
				return fmt.Errorf("redemption %d belongs to another user: %w", redemptionID, ErrForbidden)
			}
		}
		if redemption.Status != model.RedemptionPending {
			return fmt.Errorf("redemption %d is %s: %w", redemptionID, redemption.Status, ErrInvalidState)
		}

		deleted, err := e.redemption.DeletePendingTx(tx, redemptionID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("redemption %d is no longer pending: %w", redemptionID, ErrInvalidState)
		}
		if err := e.rewards.IncrementQuantityTx(tx, redemption.RewardID); err != nil {
			return err
		}

		desc := "redemption refund"
		entry, err := e.ledger.AppendTx(tx, store.AppendInput{
			UserID:          redemption.UserID,
			HouseholdID:     householdID,
			Points:          redemption.PointsSpent,
			TransactionType: model.TxRewardRedemption,
			ReferenceID:     &redemption.RewardID,
			Description:     &desc,
		})
		if err != nil {
			return err
		}

		balance, err := e.balances.ApplyDeltaTx(tx, redemption.UserID, householdID, redemption.PointsSpent, model.TxRewardRedemption)
		if err != nil {
			return err
		}

		refundedUser, refundedPoints = redemption.UserID, redemption.PointsSpent
		result = AwardResult{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("redemption refunded",
		"redemption_id", redemptionID, "user_id", refundedUser,
		"points", refundedPoints)
	return &result, nil
}

// AwardBadgePoints unlocks a badge and grants its bonus once. The UNIQUE
// constraint on user_badges makes repeated evaluation a no-op: if the badge
// row already exists nothing is inserted and no points move. Returns nil
// results when the badge was already held.
func (e *Engine) AwardBadgePoints(ctx context.Context, userID, householdID, badgeID int64) (*AwardResult, error) {
	badge, err := e.badges.GetDefinition(badgeID)
	if err != nil {
		return nil, err
	}
	if badge == nil {
		return nil, fmt.Errorf("badge %d: %w", badgeID, ErrNotFound)
	}

	var result *AwardResult
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		unlocked, err := e.badges.InsertUserBadgeTx(tx, userID, badgeID)
		if err != nil {
			return err
		}
		if !unlocked || badge.PointsReward == 0 {
			return nil
		}

		txType := model.TxBonus
		if badge.CriteriaType == model.CriteriaStreakDays {
			txType = model.TxStreakBonus
		}

		entry, err := e.ledger.AppendTx(tx, store.AppendInput{
			UserID:          userID,
			HouseholdID:     householdID,
			Points:          badge.PointsReward,
			TransactionType: txType,
			ReferenceID:     &badge.ID,
			Description:     &badge.Name,
		})
		if err != nil {
			return err
		}

		balance, err := e.balances.ApplyDeltaTx(tx, userID, householdID, badge.PointsReward, txType)
		if err != nil {
			return err
		}

		result = &AwardResult{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		e.logger.Info("badge awarded",
			"user_id", userID, "badge_id", badgeID, "points", badge.PointsReward)
	}
	return result, nil
}

func (e *Engine) advanceStreakTx(tx *sql.Tx, userID int64) (*model.UserStreak, error) {
	st, err := e.streaks.GetTx(tx, userID)
	if err != nil {
		return nil, err
	}
	current, longest, lastDate := 0, 0, ""
	if st != nil {
		current, longest, lastDate = st.CurrentStreak, st.LongestStreak, st.LastCompletionDate
	}

	current, longest, lastDate = streak.Advance(current, longest, lastDate, e.now())
	if err := e.streaks.UpsertTx(tx, userID, current, longest, lastDate); err != nil {
		return nil, err
	}
	return e.streaks.GetTx(tx, userID)
}

func (e *Engine) requireMember(householdID, userID int64) error {
	m, err := e.households.GetMember(householdID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("user %d is not a member of household %d: %w", userID, householdID, ErrForbidden)
	}
	return nil
}

// inTx runs fn in a transaction, retrying with exponential backoff when
// SQLite reports contention. Retry exhaustion surfaces as
// ErrConcurrencyConflict so callers can distinguish it from data errors.
func (e *Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := retry.WithMaxRetries(busyRetries, retry.NewExponential(10*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && isBusy(err) {
		return fmt.Errorf("transaction retries exhausted: %w", ErrConcurrencyConflict)
	}
	return err
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
