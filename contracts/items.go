/*
items.go - Manual line-item editing

Manual items (SERVICE, DAMAGE, OPERATOR, EXTRA) are the only items humans
may create or delete; the engine preserves them across every
reconciliation. Editing an APPROVED plan silently costs it the approval:
the plan drops back to PLANNED with its stamps cleared, because finalized
numbers that just changed are no longer finalized.
*/
package contracts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haulbase/billing-engine/billing"
)

// ManualItemInput describes a human-entered charge.
type ManualItemInput struct {
	Type         billing.ItemType
	Description  string
	Amount       decimal.Decimal
	RentalLineID string // optional
}

// AddManualItem appends a manual item to a plan and recomputes its
// subtotals. Rejected on INVOICED, PAID, and CANCELLED plans.
func (s *Service) AddManualItem(ctx context.Context, planID string, input ManualItemInput) (*billing.BillingLineItem, error) {
	if input.Type.Auto() {
		return nil, billing.ErrAutoItemImmutable
	}

	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListItems(ctx, planID)
	if err != nil {
		return nil, err
	}

	item := billing.BillingLineItem{
		ID:           uuid.NewString(),
		PlanID:       planID,
		RentalLineID: input.RentalLineID,
		Type:         input.Type,
		Description:  input.Description,
		Amount:       input.Amount.Round(2),
		SortOrder:    len(items),
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	if err := s.afterItemMutation(ctx, plan); err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveManualItem deletes a manual item and recomputes the plan's
// subtotals. Auto items cannot be removed by hand.
func (s *Service) RemoveManualItem(ctx context.Context, planID, itemID string) error {
	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return err
	}

	items, err := s.store.ListItems(ctx, planID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == itemID && it.Type.Auto() {
			return billing.ErrAutoItemImmutable
		}
	}

	if err := s.store.DeleteItem(ctx, planID, itemID); err != nil {
		return err
	}
	return s.afterItemMutation(ctx, plan)
}

// editablePlan loads a plan and rejects item mutation on statuses past
// the point of no return.
func (s *Service) editablePlan(ctx context.Context, planID string) (*billing.BillingPlan, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	switch plan.Status {
	case billing.StatusInvoiced, billing.StatusPaid, billing.StatusCancelled:
		return nil, billing.ErrPlanFrozen
	}
	return plan, nil
}

// afterItemMutation recomputes subtotals and enforces loss of
// finalization: an edited APPROVED plan goes back to PLANNED.
func (s *Service) afterItemMutation(ctx context.Context, plan *billing.BillingPlan) error {
	items, err := s.store.ListItems(ctx, plan.ID)
	if err != nil {
		return err
	}
	plan.RentalSubtotal, plan.TransportSubtotal, plan.ExtraSubtotal, plan.TotalAmount = billing.Subtotals(items)

	if plan.Status == billing.StatusApproved {
		plan.Status = billing.StatusPlanned
		plan.ApprovedBy = ""
		plan.ApprovedAt = nil
	}

	// Estimated means: no manual items, and every auto item is still a
	// projection.
	estimated := len(items) > 0
	for _, it := range items {
		if !it.Type.Auto() || !it.IsEstimatedItem {
			estimated = false
			break
		}
	}
	plan.IsEstimated = estimated

	return s.store.UpdatePlan(ctx, *plan)
}
