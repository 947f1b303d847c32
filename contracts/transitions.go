/*
transitions.go - Human-initiated status changes and their side effects

The state machine in the billing package validates the move; this file
performs the side effects the engine never does on its own:

  APPROVED            stamps the approver and clears the estimated flag
  APPROVED -> PLANNED clears the approval stamps (loss of finalization)
  INVOICED            stamps the invoicer and flips each transport item's
                      once-only invoiced flag on its rental line
  PAID                stamps payment

Invalid transitions are rejected before any write.
*/
package contracts

import (
	"context"
	"time"

	"github.com/haulbase/billing-engine/billing"
)

// Transition moves a plan to the requested status, applying side effects.
// actor is recorded on stamping transitions.
func (s *Service) Transition(ctx context.Context, planID string, to billing.PlanStatus, actor string) (*billing.BillingPlan, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := billing.ValidateTransition(plan.Status, to); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch to {
	case billing.StatusApproved:
		plan.ApprovedBy = actor
		plan.ApprovedAt = &now
		plan.IsEstimated = false

	case billing.StatusPlanned:
		// Only reachable here from APPROVED: revert the approval.
		plan.ApprovedBy = ""
		plan.ApprovedAt = nil

	case billing.StatusInvoiced:
		plan.InvoicedBy = actor
		plan.InvoicedAt = &now
		if err := s.flagTransportInvoiced(ctx, planID); err != nil {
			return nil, err
		}

	case billing.StatusPaid:
		plan.PaidBy = actor
		plan.PaidAt = &now
	}

	plan.Status = to
	if err := s.store.UpdatePlan(ctx, *plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// flagTransportInvoiced marks each transport leg billed by this plan as
// invoiced on its rental line, so no later reconciliation re-emits it.
func (s *Service) flagTransportInvoiced(ctx context.Context, planID string) error {
	items, err := s.store.ListItems(ctx, planID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.RentalLineID == "" {
			continue
		}
		switch it.Type {
		case billing.ItemTransportDelivery, billing.ItemTransportReturn:
			if err := s.store.SetTransportInvoiced(ctx, it.RentalLineID, it.Type); err != nil {
				return err
			}
		}
	}
	return nil
}
