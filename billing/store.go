/*
store.go - Persistence interface for contracts, lines, plans, and items

PURPOSE:
  Defines the interface between the engine and the durable record store.
  The engine is specified against these interfaces only; SQLite and the
  in-memory store implement them.

CONTRACT:
  - Delivery/return dates are written exactly once (ErrDateAlreadySet).
  - FindPlan only ever sees non-CANCELLED plans; stores enforce the
    at-most-one-non-cancelled-plan-per-month invariant on insert
    (ErrDuplicatePlanMonth), which backs the reconciler's duplicate-
    creation guard under racing triggers.
  - ReplaceAutoItems swaps the engine-owned items of a plan while leaving
    manual items untouched.

IMPLEMENTATIONS:
  - store/memory.go:       in-memory, for tests and dev
  - store/sqlite/sqlite.go: production SQLite
*/
package billing

import "context"

// LineStore persists contracts and their rental lines.
type LineStore interface {
	// CreateContract persists a contract together with its rental lines.
	CreateContract(ctx context.Context, c Contract, lines []RentalLine) error

	// GetContract returns ErrContractNotFound when absent.
	GetContract(ctx context.Context, id string) (*Contract, error)

	// GetRentalLine returns ErrLineNotFound when absent.
	GetRentalLine(ctx context.Context, id string) (*RentalLine, error)

	// ListRentalLines returns all lines of a contract in creation order.
	ListRentalLines(ctx context.Context, contractID string) ([]RentalLine, error)

	// ListOpenDeliveredLines returns every line, across all contracts,
	// that has an actual delivery and no actual return yet.
	ListOpenDeliveredLines(ctx context.Context) ([]RentalLine, error)

	// SetDeliveryDate records the actual delivery date, exactly once.
	SetDeliveryDate(ctx context.Context, lineID string, d Date) error

	// SetReturnDate records the actual return date, exactly once.
	SetReturnDate(ctx context.Context, lineID string, d Date) error

	// SetTransportInvoiced flips the once-only invoiced flag for the given
	// transport leg (ItemTransportDelivery or ItemTransportReturn).
	SetTransportInvoiced(ctx context.Context, lineID string, leg ItemType) error
}

// PlanStore persists billing plans and their line items.
type PlanStore interface {
	// FindPlan returns the non-CANCELLED plan for (contract, "YYYY-MM"),
	// or nil when there is none.
	FindPlan(ctx context.Context, contractID, monthKey string) (*BillingPlan, error)

	// GetPlan returns ErrPlanNotFound when absent.
	GetPlan(ctx context.Context, id string) (*BillingPlan, error)

	// ListPlans returns every plan of a contract, cancelled included,
	// ordered by period start.
	ListPlans(ctx context.Context, contractID string) ([]BillingPlan, error)

	// CreatePlan persists a plan with its items. Returns
	// ErrDuplicatePlanMonth when a non-cancelled plan for the same
	// (contract, month) already exists.
	CreatePlan(ctx context.Context, plan BillingPlan, items []BillingLineItem) error

	// UpdatePlan rewrites a plan's mutable fields.
	UpdatePlan(ctx context.Context, plan BillingPlan) error

	// ListItems returns a plan's items ordered by sort order.
	ListItems(ctx context.Context, planID string) ([]BillingLineItem, error)

	// ReplaceAutoItems deletes the plan's auto items and inserts the given
	// ones. Manual items are left untouched.
	ReplaceAutoItems(ctx context.Context, planID string, items []BillingLineItem) error

	// CreateItem inserts a single (manual) item.
	CreateItem(ctx context.Context, item BillingLineItem) error

	// DeleteItem removes a single item. Returns ErrItemNotFound when absent.
	DeleteItem(ctx context.Context, planID, itemID string) error

	// DeleteItems removes every item of a plan.
	DeleteItems(ctx context.Context, planID string) error
}

// Store is the full persistence surface the engine runs against.
type Store interface {
	LineStore
	PlanStore
}
