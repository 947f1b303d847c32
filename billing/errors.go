/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All sentinel errors in one place. Business-rule conflicts (frozen plans,
  early returns) are never errors here: they surface as warnings on the
  reconciliation result. Errors are reserved for true precondition
  failures.

USAGE:
  Callers match with errors.Is:

    if errors.Is(err, billing.ErrInvalidTransition) { ... }
*/
package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrLineNotFound is returned when a referenced rental line doesn't exist.
	ErrLineNotFound = errors.New("rental line not found")

	// ErrPlanNotFound is returned when a referenced billing plan doesn't exist.
	ErrPlanNotFound = errors.New("billing plan not found")

	// ErrItemNotFound is returned when a referenced line item doesn't exist.
	ErrItemNotFound = errors.New("line item not found")

	// ErrInvalidTransition is returned when a status change is not in the
	// transition table. Matched by InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDateAlreadySet is returned when a delivery or return completion is
	// recorded twice. These dates are immutable facts once set.
	ErrDateAlreadySet = errors.New("completion date already recorded")

	// ErrPlanFrozen is returned when a caller tries to edit a plan whose
	// status forbids it (INVOICED, PAID, or CANCELLED for item mutation).
	ErrPlanFrozen = errors.New("plan can no longer be edited")

	// ErrAutoItemImmutable is returned when a caller tries to create or
	// delete an engine-owned item type by hand.
	ErrAutoItemImmutable = errors.New("auto items are owned by the engine")

	// ErrDuplicatePlanMonth is returned by stores when an insert would
	// violate the one-non-cancelled-plan-per-month invariant.
	ErrDuplicatePlanMonth = errors.New("plan already exists for month")
)

// InvalidTransitionError names the rejected source and target status.
type InvalidTransitionError struct {
	From PlanStatus
	To   PlanStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrItemNotFound)
}

// IsClientError reports whether the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDateAlreadySet) ||
		errors.Is(err, ErrPlanFrozen) ||
		errors.Is(err, ErrAutoItemImmutable)
}
