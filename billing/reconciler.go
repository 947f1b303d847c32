/*
reconciler.go - Idempotent billing-plan reconciliation

PURPOSE:
  Brings a contract's persisted plan set up to date with the current state
  of its rental lines: creates missing months, refreshes mutable plans,
  retires months that no longer apply, and never touches frozen plans.

RULES:
  - Frozen plans (APPROVED/INVOICED/PAID) are reported, never written.
  - Manual items always survive; a retired month with manual items is kept
    as PLANNED carrying only that human-entered money.
  - A mutable plan is rewritten only when its regenerated items or
    recomputed fields actually differ, so re-running with unchanged data
    is a no-op (zero creates, updates, cancels).
  - A failed write is logged and the month skipped; the pass continues.
  - A duplicate-creation re-check runs immediately before every insert to
    keep the one-plan-per-month invariant under racing triggers.
*/
package billing

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"
)

// FrozenSkip reports a plan the reconciler had to leave untouched even
// though the contract changed underneath it.
type FrozenSkip struct {
	PlanID   string
	MonthKey string
	Status   PlanStatus
	Reason   string
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Created   int
	Updated   int
	Cancelled int

	// SkippedFrozen lists finalized plans affected by the change. The
	// caller surfaces these to the operator; they are never errors.
	SkippedFrozen []FrozenSkip

	// Reason is set instead of an error for validation failures
	// (contract not found, no rental lines).
	Reason string
}

// PlanReconciler is the central engine entry point after activation.
type PlanReconciler struct {
	Store Store
	Alloc PeriodAllocator

	// Now supplies the current calendar date; defaults to Today.
	Now func() Date
}

// NewPlanReconciler wires a reconciler with the default rate conventions.
func NewPlanReconciler(store Store) *PlanReconciler {
	return &PlanReconciler{
		Store: store,
		Alloc: PeriodAllocator{Rates: DefaultRates},
		Now:   Today,
	}
}

// Reconcile recomputes the should-exist month range from the current
// rental-line state and reconciles every persisted plan against it.
func (r *PlanReconciler) Reconcile(ctx context.Context, contract Contract, lines []RentalLine) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	months, _, err := scheduleMonths(lines, r.now())
	if err != nil {
		return nil, err
	}
	inRange := make(map[string]MonthPeriod, len(months))
	for _, m := range months {
		inRange[m.Key] = m
	}

	plans, err := r.Store.ListPlans(ctx, contract.ID)
	if err != nil {
		return nil, err
	}

	anyDelivery := false
	for i := range lines {
		if lines[i].Delivered() {
			anyDelivery = true
			break
		}
	}

	handled := make(map[string]bool)
	for i := range plans {
		plan := plans[i]
		if plan.Status == StatusCancelled {
			continue
		}
		key := plan.MonthKey()
		month, ok := inRange[key]

		switch {
		case !ok && plan.Status.Frozen():
			result.SkippedFrozen = append(result.SkippedFrozen, FrozenSkip{
				PlanID:   plan.ID,
				MonthKey: key,
				Status:   plan.Status,
				Reason:   "contract no longer covers this month",
			})

		case !ok:
			if err := r.retire(ctx, plan, result); err != nil {
				return nil, err
			}

		case plan.Status.Frozen():
			handled[key] = true
			result.SkippedFrozen = append(result.SkippedFrozen, FrozenSkip{
				PlanID:   plan.ID,
				MonthKey: key,
				Status:   plan.Status,
				Reason:   "plan is frozen",
			})

		default:
			handled[key] = true
			if err := r.refresh(ctx, plan, lines, month, result); err != nil {
				return nil, err
			}
		}
	}

	for _, month := range months {
		if handled[month.Key] {
			continue
		}
		r.createMissing(ctx, contract, lines, month, anyDelivery, result)
	}
	return result, nil
}

// retire handles a mutable plan whose month fell out of the should-exist
// range (an early return shortened the contract). Auto items are removed;
// human-entered money is never silently discarded, so surviving manual
// items keep the plan alive as PLANNED.
func (r *PlanReconciler) retire(ctx context.Context, plan BillingPlan, result *ReconcileResult) error {
	items, err := r.Store.ListItems(ctx, plan.ID)
	if err != nil {
		return err
	}
	auto, manual := splitItems(items)

	if len(manual) == 0 {
		return r.cancel(ctx, plan, result)
	}

	rental, transport, extra, total := Subtotals(manual)
	unchanged := len(auto) == 0 &&
		plan.Status == StatusPlanned &&
		!plan.IsEstimated &&
		plan.RentalSubtotal.Equal(rental) &&
		plan.TransportSubtotal.Equal(transport) &&
		plan.ExtraSubtotal.Equal(extra) &&
		plan.TotalAmount.Equal(total)
	if unchanged {
		return nil
	}

	if err := r.Store.ReplaceAutoItems(ctx, plan.ID, nil); err != nil {
		log.Printf("[PlanReconciler] retire %s %s: %v", plan.ContractID, plan.MonthKey(), err)
		return nil
	}
	plan.RentalSubtotal, plan.TransportSubtotal, plan.ExtraSubtotal, plan.TotalAmount = rental, transport, extra, total
	plan.Status = StatusPlanned
	plan.IsEstimated = false
	if err := r.Store.UpdatePlan(ctx, plan); err != nil {
		log.Printf("[PlanReconciler] retire %s %s: %v", plan.ContractID, plan.MonthKey(), err)
		return nil
	}
	result.Updated++
	return nil
}

func (r *PlanReconciler) cancel(ctx context.Context, plan BillingPlan, result *ReconcileResult) error {
	if err := r.Store.DeleteItems(ctx, plan.ID); err != nil {
		log.Printf("[PlanReconciler] cancel %s %s: %v", plan.ContractID, plan.MonthKey(), err)
		return nil
	}
	plan.Status = StatusCancelled
	plan.RentalSubtotal = decimal.Zero
	plan.TransportSubtotal = decimal.Zero
	plan.ExtraSubtotal = decimal.Zero
	plan.TotalAmount = decimal.Zero
	if err := r.Store.UpdatePlan(ctx, plan); err != nil {
		log.Printf("[PlanReconciler] cancel %s %s: %v", plan.ContractID, plan.MonthKey(), err)
		return nil
	}
	result.Cancelled++
	return nil
}

// refresh regenerates a mutable in-range plan: auto items are replaced,
// manual items preserved, subtotals and flags recomputed, and DRAFT is
// promoted to PLANNED the first time the month carries real rental data.
func (r *PlanReconciler) refresh(ctx context.Context, plan BillingPlan, lines []RentalLine, month MonthPeriod, result *ReconcileResult) error {
	items, err := r.Store.ListItems(ctx, plan.ID)
	if err != nil {
		return err
	}
	auto, manual := splitItems(items)

	newAuto, anyActual := buildMonthItems(r.Alloc, lines, month)
	if len(newAuto) == 0 && len(manual) == 0 {
		return r.cancel(ctx, plan, result)
	}

	status := plan.Status
	if status == StatusDraft && anyActual {
		status = StatusPlanned
	}
	isExtension := isExtensionMonth(lines, month)
	isEstimated := len(manual) == 0 && !anyActual && len(newAuto) > 0

	all := append(append([]BillingLineItem{}, newAuto...), manual...)
	rental, transport, extra, total := Subtotals(all)

	unchanged := autoItemsEqual(auto, newAuto) &&
		plan.Status == status &&
		plan.IsEstimated == isEstimated &&
		plan.IsExtension == isExtension &&
		plan.RentalSubtotal.Equal(rental) &&
		plan.TransportSubtotal.Equal(transport) &&
		plan.ExtraSubtotal.Equal(extra) &&
		plan.TotalAmount.Equal(total)
	if unchanged {
		return nil
	}

	attachItems(plan.ID, newAuto)
	if err := r.Store.ReplaceAutoItems(ctx, plan.ID, newAuto); err != nil {
		log.Printf("[PlanReconciler] refresh %s %s: %v", plan.ContractID, month.Key, err)
		return nil
	}
	plan.Status = status
	plan.IsEstimated = isEstimated
	plan.IsExtension = isExtension
	plan.RentalSubtotal, plan.TransportSubtotal, plan.ExtraSubtotal, plan.TotalAmount = rental, transport, extra, total
	if err := r.Store.UpdatePlan(ctx, plan); err != nil {
		log.Printf("[PlanReconciler] refresh %s %s: %v", plan.ContractID, month.Key, err)
		return nil
	}
	result.Updated++
	return nil
}

// createMissing creates the plan for a month in the should-exist range
// that has no non-cancelled plan yet.
func (r *PlanReconciler) createMissing(ctx context.Context, contract Contract, lines []RentalLine, month MonthPeriod, anyDelivery bool, result *ReconcileResult) {
	items, anyActual := buildMonthItems(r.Alloc, lines, month)
	if len(items) == 0 {
		return
	}

	// Re-check for a racing insert immediately before writing.
	existing, err := r.Store.FindPlan(ctx, contract.ID, month.Key)
	if err != nil {
		log.Printf("[PlanReconciler] create %s %s: %v", contract.ID, month.Key, err)
		return
	}
	if existing != nil {
		return
	}

	plan := newPlan(contract, month)
	plan.Status = StatusDraft
	if anyDelivery && anyActual {
		plan.Status = StatusPlanned
	}
	plan.IsEstimated = !anyActual
	plan.IsExtension = isExtensionMonth(lines, month)
	plan.RentalSubtotal, plan.TransportSubtotal, plan.ExtraSubtotal, plan.TotalAmount = Subtotals(items)

	attachItems(plan.ID, items)
	if err := r.Store.CreatePlan(ctx, plan, items); err != nil {
		if errors.Is(err, ErrDuplicatePlanMonth) {
			// Lost the race; the other writer's plan stands.
			return
		}
		log.Printf("[PlanReconciler] create %s %s: %v", contract.ID, month.Key, err)
		return
	}
	result.Created++
}

func (r *PlanReconciler) now() Date {
	if r.Now != nil {
		return r.Now()
	}
	return Today()
}

// =============================================================================
// HELPERS
// =============================================================================

func splitItems(items []BillingLineItem) (auto, manual []BillingLineItem) {
	for _, it := range items {
		if it.Type.Auto() {
			auto = append(auto, it)
		} else {
			manual = append(manual, it)
		}
	}
	return auto, manual
}

// autoItemsEqual compares stored auto items against a freshly generated
// set, ignoring IDs and sort order. Equality means the regeneration would
// be a no-op write.
func autoItemsEqual(stored, generated []BillingLineItem) bool {
	if len(stored) != len(generated) {
		return false
	}
	for i := range stored {
		a, b := stored[i], generated[i]
		if a.RentalLineID != b.RentalLineID ||
			a.Type != b.Type ||
			a.Description != b.Description ||
			a.BillableDays != b.BillableDays ||
			a.IsEstimatedItem != b.IsEstimatedItem ||
			!a.DailyRate.Equal(b.DailyRate) ||
			!a.Amount.Equal(b.Amount) {
			return false
		}
		if !datePtrEqual(a.PeriodStart, b.PeriodStart) || !datePtrEqual(a.PeriodEnd, b.PeriodEnd) {
			return false
		}
	}
	return true
}

func datePtrEqual(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
