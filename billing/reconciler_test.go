package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/haulbase/billing-engine/billing"
	"github.com/haulbase/billing-engine/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newReconcileFixture generates a 6-month contract (estimated start Jan 10)
// ready to receive delivery/return events.
func newReconcileFixture(t *testing.T, today billing.Date) (*store.Memory, billing.Contract, *billing.PlanReconciler) {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	contract := testContract()
	line := excavatorLine()
	line.Start = billing.EstimatedDate(billing.NewDate(2025, time.January, 10))
	mustCreateContract(t, mem, contract, []billing.RentalLine{line})

	gen := billing.NewPlanGenerator(mem)
	gen.Now = fixedToday(today)
	if _, err := gen.Generate(ctx, contract, []billing.RentalLine{line}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	rec := billing.NewPlanReconciler(mem)
	rec.Now = fixedToday(today)
	return mem, contract, rec
}

func reconcile(t *testing.T, mem *store.Memory, rec *billing.PlanReconciler, contract billing.Contract) *billing.ReconcileResult {
	t.Helper()
	ctx := context.Background()
	lines, err := mem.ListRentalLines(ctx, contract.ID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	result, err := rec.Reconcile(ctx, contract, lines)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	return result
}

func setDelivery(t *testing.T, mem *store.Memory, lineID string, d billing.Date) {
	t.Helper()
	if err := mem.SetDeliveryDate(context.Background(), lineID, d); err != nil {
		t.Fatalf("set delivery: %v", err)
	}
}

func setReturn(t *testing.T, mem *store.Memory, lineID string, d billing.Date) {
	t.Helper()
	if err := mem.SetReturnDate(context.Background(), lineID, d); err != nil {
		t.Fatalf("set return: %v", err)
	}
}

func setStatus(t *testing.T, mem *store.Memory, plan *billing.BillingPlan, status billing.PlanStatus) {
	t.Helper()
	plan.Status = status
	if err := mem.UpdatePlan(context.Background(), *plan); err != nil {
		t.Fatalf("update plan: %v", err)
	}
}

func addManual(t *testing.T, mem *store.Memory, planID string, typ billing.ItemType, amount string) {
	t.Helper()
	err := mem.CreateItem(context.Background(), billing.BillingLineItem{
		ID:          uuid.NewString(),
		PlanID:      planID,
		Type:        typ,
		Description: "manual charge",
		Amount:      dec(amount),
	})
	if err != nil {
		t.Fatalf("create manual item: %v", err)
	}
}

// =============================================================================
// DELIVERY RECONCILIATION
// =============================================================================

func TestReconcile_DeliveryPromotesDraftAndReprices(t *testing.T) {
	// GIVEN: Generated estimated plans, then an actual delivery on Jan 12
	// WHEN: Reconciling
	// THEN: January is repriced from the real date and promoted DRAFT -> PLANNED

	today := billing.NewDate(2025, time.January, 12)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 12))

	result := reconcile(t, mem, rec, contract)
	if result.Updated == 0 {
		t.Fatal("expected at least one updated plan")
	}

	jan := planByMonth(t, mem, contract.ID, "2025-01")
	if jan.Status != billing.StatusPlanned {
		t.Errorf("expected PLANNED after delivery, got %s", jan.Status)
	}
	if jan.IsEstimated {
		t.Error("plan with actual data must not stay estimated")
	}
	// Jan 12..31 inclusive = 20 days at 100/day, plus 250 transport.
	if !jan.TotalAmount.Equal(dec("2250")) {
		t.Errorf("expected January total 2250, got %s", jan.TotalAmount)
	}
}

func TestReconcile_SecondRunIsNoOp(t *testing.T) {
	// GIVEN: A contract already reconciled after delivery
	// WHEN: Reconciling again with nothing changed
	// THEN: Zero creates, updates, and cancels

	today := billing.NewDate(2025, time.January, 12)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 12))

	reconcile(t, mem, rec, contract)
	second := reconcile(t, mem, rec, contract)

	if second.Created != 0 || second.Updated != 0 || second.Cancelled != 0 {
		t.Errorf("expected no-op, got created=%d updated=%d cancelled=%d",
			second.Created, second.Updated, second.Cancelled)
	}
}

// =============================================================================
// EARLY RETURN
// =============================================================================

func TestReconcile_EarlyReturn_CancelsTailMonths(t *testing.T) {
	// GIVEN: A 6-month contract delivered Jan 10, returned Mar 15
	// WHEN: Reconciling
	// THEN: Apr..Jul plans are cancelled and emptied, March is truncated

	today := billing.NewDate(2025, time.March, 15)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 10))
	reconcile(t, mem, rec, contract)

	setReturn(t, mem, "line-1", billing.NewDate(2025, time.March, 15))
	result := reconcile(t, mem, rec, contract)

	if result.Cancelled != 4 {
		t.Errorf("expected 4 cancelled tail months, got %d", result.Cancelled)
	}

	// FindPlan only sees live plans; the tail must be gone from its view.
	for _, key := range []string{"2025-04", "2025-05", "2025-06", "2025-07"} {
		if planByMonth(t, mem, contract.ID, key) != nil {
			t.Errorf("expected no live plan for %s", key)
		}
	}

	ctx := context.Background()
	plans, err := mem.ListPlans(ctx, contract.ID)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	for i := range plans {
		if plans[i].Status != billing.StatusCancelled {
			continue
		}
		if !plans[i].TotalAmount.IsZero() {
			t.Errorf("cancelled plan %s must have zero total, got %s", plans[i].MonthKey(), plans[i].TotalAmount)
		}
		items, err := mem.ListItems(ctx, plans[i].ID)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("cancelled plan %s must have no items, got %d", plans[i].MonthKey(), len(items))
		}
	}

	mar := planByMonth(t, mem, contract.ID, "2025-03")
	// Mar 1..15 = 15 days rental (1500) + return transport (250).
	if !mar.TotalAmount.Equal(dec("1750")) {
		t.Errorf("expected March total 1750, got %s", mar.TotalAmount)
	}
}

func TestReconcile_EarlyReturn_ManualItemSurvives(t *testing.T) {
	// GIVEN: A May plan carrying a 400 DAMAGE item, then a return in March
	// WHEN: Reconciling
	// THEN: May keeps the manual money as PLANNED instead of being cancelled

	today := billing.NewDate(2025, time.March, 15)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 10))
	reconcile(t, mem, rec, contract)

	may := planByMonth(t, mem, contract.ID, "2025-05")
	addManual(t, mem, may.ID, billing.ItemDamage, "400")

	setReturn(t, mem, "line-1", billing.NewDate(2025, time.March, 15))
	result := reconcile(t, mem, rec, contract)

	if result.Cancelled != 3 {
		t.Errorf("expected 3 cancelled months (Apr, Jun, Jul), got %d", result.Cancelled)
	}

	may = planByMonth(t, mem, contract.ID, "2025-05")
	if may == nil {
		t.Fatal("plan with manual money must stay alive")
	}
	if may.Status != billing.StatusPlanned {
		t.Errorf("expected PLANNED, got %s", may.Status)
	}
	if !may.TotalAmount.Equal(dec("400")) {
		t.Errorf("expected only the manual 400 to remain, got %s", may.TotalAmount)
	}

	items, err := mem.ListItems(context.Background(), may.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].Type != billing.ItemDamage {
		t.Fatalf("expected exactly the DAMAGE item to survive, got %d items", len(items))
	}
}

// =============================================================================
// FROZEN PLANS
// =============================================================================

func TestReconcile_FrozenPlanNeverTouched(t *testing.T) {
	// GIVEN: An APPROVED April plan, then an early return in March
	// WHEN: Reconciling
	// THEN: April keeps its items and amounts; the skip is reported

	today := billing.NewDate(2025, time.March, 15)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 10))
	reconcile(t, mem, rec, contract)

	apr := planByMonth(t, mem, contract.ID, "2025-04")
	setStatus(t, mem, apr, billing.StatusApproved)
	frozenTotal := apr.TotalAmount

	setReturn(t, mem, "line-1", billing.NewDate(2025, time.March, 15))
	result := reconcile(t, mem, rec, contract)

	found := false
	for _, skip := range result.SkippedFrozen {
		if skip.MonthKey == "2025-04" {
			found = true
			if skip.Status != billing.StatusApproved {
				t.Errorf("expected APPROVED in skip report, got %s", skip.Status)
			}
		}
	}
	if !found {
		t.Error("expected April in the frozen-skip report")
	}

	apr = planByMonth(t, mem, contract.ID, "2025-04")
	if apr.Status != billing.StatusApproved {
		t.Errorf("frozen plan status changed to %s", apr.Status)
	}
	if !apr.TotalAmount.Equal(frozenTotal) {
		t.Errorf("frozen plan amount changed: %s -> %s", frozenTotal, apr.TotalAmount)
	}
	items, err := mem.ListItems(context.Background(), apr.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) == 0 {
		t.Error("frozen plan items were deleted")
	}
}

// =============================================================================
// EXTENSIONS
// =============================================================================

func TestReconcile_MachineStillOut_CreatesExtensionMonth(t *testing.T) {
	// GIVEN: A delivered 1-month line, no return, today one month past its end
	// WHEN: Reconciling
	// THEN: A new extension plan exists for the current month, flagged as such

	ctx := context.Background()
	mem := store.NewMemory()
	contract := testContract()
	line := excavatorLine()
	line.DurationValue = 1
	line.Start = billing.EstimatedDate(billing.NewDate(2025, time.January, 10))
	mustCreateContract(t, mem, contract, []billing.RentalLine{line})

	gen := billing.NewPlanGenerator(mem)
	gen.Now = fixedToday(billing.NewDate(2025, time.January, 5))
	if _, err := gen.Generate(ctx, contract, []billing.RentalLine{line}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 10))

	// Nominal end is Feb 9; it is now March 20 and nothing came back.
	rec := billing.NewPlanReconciler(mem)
	rec.Now = fixedToday(billing.NewDate(2025, time.March, 20))
	result := reconcile(t, mem, rec, contract)

	if result.Created == 0 {
		t.Fatal("expected extension months to be created")
	}
	mar := planByMonth(t, mem, contract.ID, "2025-03")
	if mar == nil {
		t.Fatal("expected a March extension plan")
	}
	if !mar.IsExtension {
		t.Error("extension month must be flagged IsExtension")
	}
	if mar.Status != billing.StatusPlanned {
		t.Errorf("extension from real delivery data: expected PLANNED, got %s", mar.Status)
	}
	if !mar.TotalAmount.Equal(dec("3000")) {
		t.Errorf("expected full extension month 3000, got %s", mar.TotalAmount)
	}
}

// =============================================================================
// TRANSPORT ONCE-ONLY ACROSS RECONCILIATIONS
// =============================================================================

func TestReconcile_InvoicedTransportNotRegenerated(t *testing.T) {
	// GIVEN: January reconciled with its delivery transport, then the leg is
	//        marked invoiced by the invoicing workflow
	// WHEN: Reconciling again
	// THEN: January's regenerated items no longer carry the transport charge

	today := billing.NewDate(2025, time.January, 12)
	mem, contract, rec := newReconcileFixture(t, today)
	setDelivery(t, mem, "line-1", billing.NewDate(2025, time.January, 12))
	reconcile(t, mem, rec, contract)

	ctx := context.Background()
	if err := mem.SetTransportInvoiced(ctx, "line-1", billing.ItemTransportDelivery); err != nil {
		t.Fatalf("set transport invoiced: %v", err)
	}

	result := reconcile(t, mem, rec, contract)
	if result.Updated == 0 {
		t.Fatal("expected January to be rewritten without the transport item")
	}

	jan := planByMonth(t, mem, contract.ID, "2025-01")
	if !jan.TransportSubtotal.IsZero() {
		t.Errorf("expected zero transport subtotal, got %s", jan.TransportSubtotal)
	}
	if !jan.TotalAmount.Equal(dec("2000")) {
		t.Errorf("expected rental-only total 2000, got %s", jan.TotalAmount)
	}
}
