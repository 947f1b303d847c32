/*
status.go - Billing plan status state machine

  DRAFT    -> PLANNED, CANCELLED
  PLANNED  -> APPROVED, CANCELLED
  APPROVED -> INVOICED, PLANNED, CANCELLED   (PLANNED = revert approval)
  INVOICED -> PAID
  PAID     -> (terminal)
  CANCELLED-> (terminal)

The machine only validates transitions. Side effects (approval stamps,
transport invoiced flags) belong to the calling application and are
performed in the contracts package. The reconciler itself only ever
writes DRAFT, PLANNED, and CANCELLED automatically.
*/
package billing

var transitions = map[PlanStatus][]PlanStatus{
	StatusDraft:     {StatusPlanned, StatusCancelled},
	StatusPlanned:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusInvoiced, StatusPlanned, StatusCancelled},
	StatusInvoiced:  {StatusPaid},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to PlanStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition rejects any transition not in the table, before any
// write happens, with an error naming source and target.
func ValidateTransition(from, to PlanStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// AllowedTransitions returns the permitted targets from a status.
func AllowedTransitions(from PlanStatus) []PlanStatus {
	out := make([]PlanStatus, len(transitions[from]))
	copy(out, transitions[from])
	return out
}
