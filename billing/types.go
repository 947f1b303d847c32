/*
Package billing provides the core billing-plan allocation engine.

PURPOSE:
  This package contains the algorithms that turn a multi-month
  equipment-rental contract into a sequence of monthly billing plans and
  keep them correct as delivery/return events occur. It is pure with
  respect to persistence: everything runs against the abstract Store
  interfaces in store.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - RentalLine:      one machine/service line of a contract
  - ScheduleDate:    a calendar date tagged estimated-vs-actual
  - BillingPlan:     the single invoice-worthy aggregation for one month
  - BillingLineItem: a charge inside a plan (engine-owned or manual)

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, never float64
  2. Frozen plans (APPROVED/INVOICED/PAID) are never written by the engine
  3. Auto items are regenerated wholesale; manual items are untouchable
  4. The estimated/actual distinction is a type-level tag, not a nil check

SEE ALSO:
  - dates.go:      calendar arithmetic (month keys, contract end)
  - allocator.go:  per-month charge computation
  - reconciler.go: the central create/update/cancel algorithm
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// DurationUnit is the unit a rental line's duration is expressed in.
type DurationUnit string

const (
	DurationDay   DurationUnit = "DAY"
	DurationWeek  DurationUnit = "WEEK"
	DurationMonth DurationUnit = "MONTH"
)

// PlanStatus is the lifecycle state of a billing plan.
type PlanStatus string

const (
	StatusDraft     PlanStatus = "DRAFT"
	StatusPlanned   PlanStatus = "PLANNED"
	StatusApproved  PlanStatus = "APPROVED"
	StatusInvoiced  PlanStatus = "INVOICED"
	StatusPaid      PlanStatus = "PAID"
	StatusCancelled PlanStatus = "CANCELLED"
)

// Frozen reports whether a plan in this status is protected from any
// automatic mutation. Only a human-approved status transition may write
// to a frozen plan.
func (s PlanStatus) Frozen() bool {
	return s == StatusApproved || s == StatusInvoiced || s == StatusPaid
}

// ItemType classifies a billing line item.
type ItemType string

const (
	ItemRental            ItemType = "RENTAL"
	ItemTransportDelivery ItemType = "TRANSPORT_DELIVERY"
	ItemTransportReturn   ItemType = "TRANSPORT_RETURN"
	ItemService           ItemType = "SERVICE"
	ItemDamage            ItemType = "DAMAGE"
	ItemOperator          ItemType = "OPERATOR"
	ItemExtra             ItemType = "EXTRA"
)

// Auto reports whether items of this type are owned by the engine and
// regenerated on every reconciliation. Non-auto (manual) items are created
// by humans and must survive every reconciliation pass untouched.
func (t ItemType) Auto() bool {
	switch t {
	case ItemRental, ItemTransportDelivery, ItemTransportReturn:
		return true
	}
	return false
}

// =============================================================================
// SCHEDULE DATE - Tagged estimated/actual union
// =============================================================================

// ScheduleDate is a calendar date tagged with whether it is a recorded
// fact (an actual delivery or return) or a projection (an estimate from
// the quote). The tag replaces the usual pair of nullable columns so the
// distinction is carried by the type, not by a null-check convention.
type ScheduleDate struct {
	Date   Date
	Actual bool
}

// Actual constructs an actual (recorded-fact) schedule date.
func ActualDate(d Date) *ScheduleDate { return &ScheduleDate{Date: d, Actual: true} }

// Estimated constructs a projected schedule date.
func EstimatedDate(d Date) *ScheduleDate { return &ScheduleDate{Date: d} }

// =============================================================================
// CONTRACT AND RENTAL LINE
// =============================================================================

// Contract is the minimal contract surface the engine needs. The rest of
// the contract record (customer, site, terms) lives in the calling
// application.
type Contract struct {
	ID        string
	CompanyID string
	Name      string
	Currency  string
}

// RentalLine is one machine/service entry of a contract, with its own
// pricing, delivery, and return facts. Start and End are set exactly once
// each by the external delivery/return workflows and are immutable facts
// afterwards.
type RentalLine struct {
	ID            string
	ContractID    string
	CompanyID     string
	MachineType   string
	MachineSerial string

	DurationValue int
	DurationUnit  DurationUnit

	RentalPriceUnit    decimal.Decimal
	RentalDiscountUnit decimal.Decimal
	TransportPrice     decimal.Decimal
	TransportDiscount  decimal.Decimal

	// Start is the actual delivery date once recorded, else the estimated
	// start from the quote. nil means the line is not scheduled at all.
	Start *ScheduleDate

	// End is the actual return date once recorded. An estimated end is
	// informational only: the engine projects the end from Start and the
	// duration. nil means open (machine still out, or never delivered).
	End *ScheduleDate

	TransportDeliveryInvoiced bool
	TransportReturnInvoiced   bool
}

// Delivered reports whether the machine has actually gone out.
func (l *RentalLine) Delivered() bool {
	return l.Start != nil && l.Start.Actual
}

// ActualReturn returns the recorded return date, if any.
func (l *RentalLine) ActualReturn() (Date, bool) {
	if l.End != nil && l.End.Actual {
		return l.End.Date, true
	}
	return Date{}, false
}

// EffectiveStart returns the date the line starts billing from: the actual
// delivery date when known, else the estimated start.
func (l *RentalLine) EffectiveStart() (Date, bool) {
	if l.Start == nil {
		return Date{}, false
	}
	return l.Start.Date, true
}

// NominalEnd returns the computed contract end for this line: effective
// start plus the contracted duration.
func (l *RentalLine) NominalEnd() (Date, bool) {
	start, ok := l.EffectiveStart()
	if !ok {
		return Date{}, false
	}
	return ContractEnd(start, l.DurationValue, l.DurationUnit), true
}

// =============================================================================
// BILLING PLAN
// =============================================================================

// BillingPlan aggregates all charges of one contract for one calendar
// month. At most one non-CANCELLED plan exists per (contract, month).
//
// TotalAmount is the sum of the three subtotals, each rounded to two
// decimals independently before summing. Rounding happens at the subtotal
// level to match downstream display.
type BillingPlan struct {
	ID         string
	ContractID string
	CompanyID  string

	PeriodStart Date
	PeriodEnd   Date
	PeriodLabel string
	BillingDate Date

	RentalSubtotal    decimal.Decimal
	TransportSubtotal decimal.Decimal
	ExtraSubtotal     decimal.Decimal
	TotalAmount       decimal.Decimal
	Currency          string

	Status PlanStatus

	// IsEstimated: no manual items and every auto item is a projection.
	IsEstimated bool
	// IsExtension: the month lies past a delivered line's contracted end
	// (machine still on site with no recorded return).
	IsExtension bool

	ApprovedBy string
	ApprovedAt *time.Time
	InvoicedBy string
	InvoicedAt *time.Time
	PaidBy     string
	PaidAt     *time.Time
}

// MonthKey returns the "YYYY-MM" key of the plan's period.
func (p *BillingPlan) MonthKey() string { return MonthKey(p.PeriodStart) }

// =============================================================================
// BILLING LINE ITEM
// =============================================================================

// BillingLineItem is a single charge inside a plan. RENTAL items carry
// their billable window and day count; transport items carry only the
// amount. Manual items (SERVICE, DAMAGE, OPERATOR, EXTRA) have no
// rental-line reference unless the operator supplied one.
type BillingLineItem struct {
	ID           string
	PlanID       string
	RentalLineID string // empty for manual items
	Type         ItemType
	Description  string

	PeriodStart  *Date // RENTAL only
	PeriodEnd    *Date // RENTAL only
	BillableDays int   // RENTAL only
	DailyRate    decimal.Decimal

	Amount          decimal.Decimal
	IsAuto          bool
	IsEstimatedItem bool
	SortOrder       int
}

// Subtotals sums a plan's items into the three subtotal buckets, rounding
// each bucket to two decimals before computing the total.
func Subtotals(items []BillingLineItem) (rental, transport, extra, total decimal.Decimal) {
	for _, it := range items {
		switch it.Type {
		case ItemRental:
			rental = rental.Add(it.Amount)
		case ItemTransportDelivery, ItemTransportReturn:
			transport = transport.Add(it.Amount)
		default:
			extra = extra.Add(it.Amount)
		}
	}
	rental = rental.Round(2)
	transport = transport.Round(2)
	extra = extra.Round(2)
	total = rental.Add(transport).Add(extra)
	return rental, transport, extra, total
}
