/*
generator.go - Initial month-by-month plan generation

PURPOSE:
  Runs once at contract activation, before any delivery has occurred:
  computes the union month range across all rental lines and persists a
  DRAFT, fully-estimated plan for each month that produces items.

PARTIAL SUCCESS:
  A failed insert is logged and that month skipped; remaining months are
  still processed. Each month is an independent unit of work.

SEE ALSO:
  - reconciler.go: keeps the generated plans correct afterwards
*/
package billing

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// PlanGenerator produces the initial billing-plan sequence for a contract.
type PlanGenerator struct {
	Store Store
	Alloc PeriodAllocator

	// Now supplies the current calendar date; defaults to Today.
	Now func() Date
}

// NewPlanGenerator wires a generator with the default rate conventions.
func NewPlanGenerator(store Store) *PlanGenerator {
	return &PlanGenerator{
		Store: store,
		Alloc: PeriodAllocator{Rates: DefaultRates},
		Now:   Today,
	}
}

// Generate creates the month-by-month billing plans for the contract's
// rental lines and returns how many plans were created. Months that
// already carry a non-cancelled plan are skipped, as are months where no
// line produces any item.
func (g *PlanGenerator) Generate(ctx context.Context, contract Contract, lines []RentalLine) (int, error) {
	months, ok, err := scheduleMonths(lines, g.now())
	if err != nil || !ok {
		return 0, err
	}

	created := 0
	for _, month := range months {
		existing, err := g.Store.FindPlan(ctx, contract.ID, month.Key)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		items, _ := buildMonthItems(g.Alloc, lines, month)
		if len(items) == 0 {
			continue
		}

		// Generation runs before any delivery: every plan starts as an
		// estimated DRAFT.
		plan := newPlan(contract, month)
		plan.Status = StatusDraft
		plan.IsEstimated = true
		plan.RentalSubtotal, plan.TransportSubtotal, plan.ExtraSubtotal, plan.TotalAmount = Subtotals(items)

		attachItems(plan.ID, items)
		if err := g.Store.CreatePlan(ctx, plan, items); err != nil {
			log.Printf("[PlanGenerator] create failed for %s %s: %v", contract.ID, month.Key, err)
			continue
		}
		created++
	}
	return created, nil
}

func (g *PlanGenerator) now() Date {
	if g.Now != nil {
		return g.Now()
	}
	return Today()
}

// =============================================================================
// SHARED PLAN ASSEMBLY (generator + reconciler)
// =============================================================================

// scheduleMonths computes the should-exist month range for a set of
// rental lines: earliest effective start to latest end. A delivered line
// with no recorded return extends the range to today (extension months);
// a returned line ends at its actual return; a projected line ends at its
// nominal contract end.
func scheduleMonths(lines []RentalLine, today Date) ([]MonthPeriod, bool, error) {
	var earliest, latest Date
	found := false

	for i := range lines {
		line := &lines[i]
		start, ok := line.EffectiveStart()
		if !ok {
			continue
		}

		end := ContractEnd(start, line.DurationValue, line.DurationUnit)
		if actualReturn, returned := line.ActualReturn(); returned {
			end = actualReturn
		} else if line.Delivered() {
			end = MaxDate(end, today)
		}

		if !found {
			earliest, latest = start, end
			found = true
			continue
		}
		earliest = MinDate(earliest, start)
		latest = MaxDate(latest, end)
	}
	if !found {
		return nil, false, nil
	}

	months, err := MonthRange(MonthKey(earliest), MonthKey(latest))
	if err != nil {
		return nil, false, err
	}
	return months, true, nil
}

// buildMonthItems allocates every line into the month and renumbers sort
// order across lines. The second result reports whether any item carries
// real (non-estimated) data.
func buildMonthItems(alloc PeriodAllocator, lines []RentalLine, month MonthPeriod) ([]BillingLineItem, bool) {
	var items []BillingLineItem
	anyActual := false
	for i := range lines {
		line := &lines[i]
		estimated := !line.Delivered()
		for _, it := range alloc.Allocate(line, month, estimated) {
			it.SortOrder = len(items)
			items = append(items, it)
			if !it.IsEstimatedItem {
				anyActual = true
			}
		}
	}
	return items, anyActual
}

// newPlan builds the invariant plan fields for a contract month.
func newPlan(contract Contract, month MonthPeriod) BillingPlan {
	return BillingPlan{
		ID:          uuid.NewString(),
		ContractID:  contract.ID,
		CompanyID:   contract.CompanyID,
		PeriodStart: month.Start,
		PeriodEnd:   month.End,
		PeriodLabel: month.Label,
		BillingDate: month.End,
		Currency:    contract.Currency,
	}
}

// attachItems stamps plan ownership and fresh IDs onto item drafts.
func attachItems(planID string, items []BillingLineItem) {
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].PlanID = planID
	}
}

// isExtensionMonth reports whether the month lies wholly past the
// contracted end of some delivered line.
func isExtensionMonth(lines []RentalLine, month MonthPeriod) bool {
	for i := range lines {
		line := &lines[i]
		if !line.Delivered() {
			continue
		}
		if end, ok := line.NominalEnd(); ok && end.Before(month.Start) {
			return true
		}
	}
	return false
}
