/*
Package contracts is the trigger layer around the billing engine.

PURPOSE:
  The engine itself is pure and stateless between calls; this package
  wires it to the five external events that drive it:

    Contract activated   -> PlanGenerator
    Delivery recorded    -> PlanReconciler
    Return recorded      -> PlanReconciler + early-return / pending-
                            transport detection
    Extension sweep      -> PlanReconciler per affected contract
    Manual recalculation -> PlanReconciler

  It also owns the human-facing mutations the engine never performs:
  status transitions with their side effects (transitions.go) and manual
  line-item editing (items.go).

CONCURRENCY:
  Reconciliation for one contract runs under a per-contract mutex, so
  racing triggers (delivery + sweep, double-click recalculate) serialize
  instead of interleaving their plan writes. The store-level duplicate
  guard remains the backstop for independent processes.
*/
package contracts

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/haulbase/billing-engine/billing"
)

// Service coordinates the billing engine against a durable store.
type Service struct {
	store billing.Store
	gen   *billing.PlanGenerator
	rec   *billing.PlanReconciler
	rates billing.RateConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-contract serialization
}

// NewService creates a service using the default rate conventions.
func NewService(store billing.Store) *Service {
	return &Service{
		store: store,
		gen:   billing.NewPlanGenerator(store),
		rec:   billing.NewPlanReconciler(store),
		rates: billing.DefaultRates,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetToday overrides the engine's current-date source. Tests use this to
// pin the extension horizon.
func (s *Service) SetToday(now func() billing.Date) {
	s.gen.Now = now
	s.rec.Now = now
}

func (s *Service) contractLock(contractID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[contractID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[contractID] = l
	}
	return l
}

// =============================================================================
// TRIGGER: CONTRACT ACTIVATED
// =============================================================================

// ActivationResult reports initial plan generation.
type ActivationResult struct {
	ContractID string
	Created    int
	Reason     string // set instead of an error on validation failure
}

// Activate persists a contract with its rental lines and generates the
// complete month-by-month plan sequence. Missing record IDs are assigned
// here; line ownership fields are stamped from the contract. A contract
// without lines is a validation failure: an empty result with a reason,
// not an error.
func (s *Service) Activate(ctx context.Context, contract billing.Contract, lines []billing.RentalLine) (*ActivationResult, error) {
	if len(lines) == 0 {
		return &ActivationResult{ContractID: contract.ID, Reason: "no rental lines"}, nil
	}

	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.NewString()
		}
		lines[i].ContractID = contract.ID
		lines[i].CompanyID = contract.CompanyID
	}

	if err := s.store.CreateContract(ctx, contract, lines); err != nil {
		return nil, err
	}

	lock := s.contractLock(contract.ID)
	lock.Lock()
	defer lock.Unlock()

	created, err := s.gen.Generate(ctx, contract, lines)
	if err != nil {
		return nil, err
	}
	return &ActivationResult{ContractID: contract.ID, Created: created}, nil
}

// =============================================================================
// TRIGGER: DELIVERY COMPLETED
// =============================================================================

// RecordDelivery stamps the actual delivery date on a line (exactly once)
// and reconciles the whole contract.
func (s *Service) RecordDelivery(ctx context.Context, lineID string, deliveredAt billing.Date) (*billing.ReconcileResult, error) {
	line, err := s.store.GetRentalLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDeliveryDate(ctx, lineID, deliveredAt); err != nil {
		return nil, err
	}
	return s.reconcileContract(ctx, line.ContractID)
}

// =============================================================================
// TRIGGER: RETURN COMPLETED
// =============================================================================

// ReturnResult is a reconciliation result enriched with the warnings a
// return can raise.
type ReturnResult struct {
	billing.ReconcileResult

	// EarlyReturn: the machine came back before its contracted end.
	EarlyReturn bool
	// ApprovedWarning: the change affected at least one finalized plan
	// that the engine could not touch.
	ApprovedWarning bool
	// PendingTransportReturn: the return-transport charge could not be
	// attached because the return month's plan is already INVOICED/PAID.
	// The caller must surface this as a manual follow-up, never drop it.
	PendingTransportReturn bool
}

// RecordReturn stamps the actual return date on a line (exactly once),
// reconciles the contract, and detects early return and stranded
// return-transport charges.
func (s *Service) RecordReturn(ctx context.Context, lineID string, returnedAt billing.Date) (*ReturnResult, error) {
	line, err := s.store.GetRentalLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetReturnDate(ctx, lineID, returnedAt); err != nil {
		return nil, err
	}

	rec, err := s.reconcileContract(ctx, line.ContractID)
	if err != nil {
		return nil, err
	}

	result := &ReturnResult{ReconcileResult: *rec}
	result.ApprovedWarning = len(rec.SkippedFrozen) > 0

	if end, ok := line.NominalEnd(); ok && returnedAt.Before(end) {
		result.EarlyReturn = true
	}

	pending, err := s.pendingTransportReturn(ctx, line, returnedAt)
	if err != nil {
		return nil, err
	}
	result.PendingTransportReturn = pending
	return result, nil
}

// pendingTransportReturn checks whether the return-back transport half is
// owed but stranded behind a finalized plan for the return month.
func (s *Service) pendingTransportReturn(ctx context.Context, line *billing.RentalLine, returnedAt billing.Date) (bool, error) {
	if line.TransportReturnInvoiced {
		return false, nil
	}
	if !s.rates.LineTransportHalf(line).IsPositive() {
		return false, nil
	}
	plan, err := s.store.FindPlan(ctx, line.ContractID, billing.MonthKey(returnedAt))
	if err != nil {
		return false, err
	}
	if plan == nil {
		return false, nil
	}
	return plan.Status == billing.StatusInvoiced || plan.Status == billing.StatusPaid, nil
}

// =============================================================================
// TRIGGER: PERIODIC EXTENSION SWEEP
// =============================================================================

// SweepResult reports how many contracts gained extension plans.
type SweepResult struct {
	Extensions int
}

// ExtensionSweep scans every delivered-not-returned line and reconciles
// each affected contract, but only when the current month's plan is
// missing (the machine is still out and nothing bills for it yet).
func (s *Service) ExtensionSweep(ctx context.Context) (*SweepResult, error) {
	open, err := s.store.ListOpenDeliveredLines(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var contractIDs []string
	for i := range open {
		id := open[i].ContractID
		if !seen[id] {
			seen[id] = true
			contractIDs = append(contractIDs, id)
		}
	}

	currentKey := billing.MonthKey(s.rec.Now())
	result := &SweepResult{}
	for _, contractID := range contractIDs {
		plan, err := s.store.FindPlan(ctx, contractID, currentKey)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			continue
		}
		rec, err := s.reconcileContract(ctx, contractID)
		if err != nil {
			return nil, err
		}
		if rec.Created > 0 {
			result.Extensions++
		}
	}
	return result, nil
}

// =============================================================================
// TRIGGER: MANUAL RECALCULATION
// =============================================================================

// Recalculate reconciles a contract on demand. An unknown contract or a
// contract without lines yields an empty result with a reason.
func (s *Service) Recalculate(ctx context.Context, contractID string) (*billing.ReconcileResult, error) {
	result, err := s.reconcileContract(ctx, contractID)
	if errors.Is(err, billing.ErrContractNotFound) {
		return &billing.ReconcileResult{Reason: "contract not found"}, nil
	}
	return result, err
}

// reconcileContract re-reads the full line set and runs one serialized
// reconciliation pass.
func (s *Service) reconcileContract(ctx context.Context, contractID string) (*billing.ReconcileResult, error) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListRentalLines(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &billing.ReconcileResult{Reason: "no rental lines"}, nil
	}

	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	return s.rec.Reconcile(ctx, *contract, lines)
}
