// Package redemption handles the fulfillment side of the reward lifecycle.
// Charging and refunding live in the points engine because they move points;
// fulfillment only transitions the record's status.
package redemption

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/store"
)

type Workflow struct {
	redemptions *store.RedemptionStore
	households  *store.HouseholdStore
	logger      *slog.Logger
}

func NewWorkflow(db *sql.DB, logger *slog.Logger) *Workflow {
	return &Workflow{
		redemptions: store.NewRedemptionStore(db),
		households:  store.NewHouseholdStore(db),
		logger:      logger.With("component", "redemptions"),
	}
}

// Fulfill moves a redemption from pending to fulfilled, exactly once. Only a
// household admin may fulfill. There is no reverse transition; a wrong
// fulfillment is corrected with a manual bonus or charge, not by reopening.
func (w *Workflow) Fulfill(redemptionID, adminUserID int64, notes string) (*model.Redemption, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > points.MaxDescriptionLen {
		return nil, fmt.Errorf("notes exceed %d characters: %w", points.MaxDescriptionLen, points.ErrValidation)
	}

	redemption, err := w.redemptions.GetByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if redemption == nil {
		return nil, fmt.Errorf("redemption %d: %w", redemptionID, points.ErrNotFound)
	}

	admin, err := w.households.IsAdmin(redemption.HouseholdID, adminUserID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, fmt.Errorf("user %d is not an admin of household %d: %w", adminUserID, redemption.HouseholdID, points.ErrForbidden)
	}

	transitioned, err := w.redemptions.Fulfill(redemptionID, adminUserID, notes)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, fmt.Errorf("redemption %d is not pending: %w", redemptionID, points.ErrInvalidState)
	}

	w.logger.Info("redemption fulfilled",
		"redemption_id", redemptionID, "admin_id", adminUserID)
	return w.redemptions.GetByID(redemptionID)
}

// ListForUser returns the caller's own redemption history.
func (w *Workflow) ListForUser(userID, householdID int64) ([]model.Redemption, error) {
	return w.redemptions.ListByUser(userID, householdID)
}

// ListForHousehold returns household redemptions, admin only. Status narrows
// the listing when non-empty.
func (w *Workflow) ListForHousehold(householdID, adminUserID int64, status model.RedemptionStatus) ([]model.Redemption, error) {
	admin, err := w.households.IsAdmin(householdID, adminUserID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, fmt.Errorf("user %d is not an admin of household %d: %w", adminUserID, householdID, points.ErrForbidden)
	}
	if status != "" && status != model.RedemptionPending && status != model.RedemptionFulfilled {
		return nil, fmt.Errorf("unknown status %q: %w", status, points.ErrValidation)
	}
	return w.redemptions.ListByHousehold(householdID, status)
}
