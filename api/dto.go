/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Contracts:
    ContractDTO, RentalLineDTO, ActivationResponse

  Plans:
    PlanDTO, PlanDetailDTO, LineItemDTO, TransitionRequest

  Manual items:
    ManualItemRequest

  Triggers:
    DeliveryRequest, ReturnRequest, ReconcileResponse, ReturnResponse,
    SweepResponse

MONEY:
  All amounts travel as JSON strings ("2200.00"), never floats. Clients
  parse them with their own decimal type.

VALIDATION:
  Validation is done in handlers and factory, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/contract.go: ContractJSON intake payload
*/
package api

import (
	"time"

	"github.com/haulbase/billing-engine/billing"
	"github.com/haulbase/billing-engine/contracts"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RentalLineDTO represents a rental line in API responses.
type RentalLineDTO struct {
	ID            string `json:"id"`
	ContractID    string `json:"contract_id"`
	MachineType   string `json:"machine_type"`
	MachineSerial string `json:"machine_serial,omitempty"`

	DurationValue int    `json:"duration_value"`
	DurationUnit  string `json:"duration_unit"`

	RentalPrice       string `json:"rental_price"`
	RentalDiscount    string `json:"rental_discount"`
	TransportPrice    string `json:"transport_price"`
	TransportDiscount string `json:"transport_discount"`

	StartDate   *string `json:"start_date,omitempty"`
	StartActual bool    `json:"start_actual"`
	EndDate     *string `json:"end_date,omitempty"`
	EndActual   bool    `json:"end_actual"`

	TransportDeliveryInvoiced bool `json:"transport_delivery_invoiced"`
	TransportReturnInvoiced   bool `json:"transport_return_invoiced"`
}

// ContractDTO represents a contract with its lines.
type ContractDTO struct {
	ID        string          `json:"id"`
	CompanyID string          `json:"company_id,omitempty"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Lines     []RentalLineDTO `json:"lines"`
}

// ActivationResponse reports the result of contract activation.
type ActivationResponse struct {
	Contract     ContractDTO `json:"contract"`
	PlansCreated int         `json:"plans_created"`
	Reason       string      `json:"reason,omitempty"`
}

// PlanDTO represents a billing plan without its items.
type PlanDTO struct {
	ID         string `json:"id"`
	ContractID string `json:"contract_id"`

	MonthKey    string `json:"month_key"`
	PeriodLabel string `json:"period_label"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	BillingDate string `json:"billing_date"`

	RentalSubtotal    string `json:"rental_subtotal"`
	TransportSubtotal string `json:"transport_subtotal"`
	ExtraSubtotal     string `json:"extra_subtotal"`
	TotalAmount       string `json:"total_amount"`
	Currency          string `json:"currency"`

	Status      string `json:"status"`
	IsEstimated bool   `json:"is_estimated"`
	IsExtension bool   `json:"is_extension"`

	ApprovedBy string  `json:"approved_by,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty"`
	InvoicedBy string  `json:"invoiced_by,omitempty"`
	InvoicedAt *string `json:"invoiced_at,omitempty"`
	PaidBy     string  `json:"paid_by,omitempty"`
	PaidAt     *string `json:"paid_at,omitempty"`
}

// LineItemDTO represents a single charge inside a plan.
type LineItemDTO struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	RentalLineID string `json:"rental_line_id,omitempty"`
	Type         string `json:"type"`
	Description  string `json:"description"`

	PeriodStart  *string `json:"period_start,omitempty"`
	PeriodEnd    *string `json:"period_end,omitempty"`
	BillableDays int     `json:"billable_days,omitempty"`
	DailyRate    string  `json:"daily_rate"`

	Amount      string `json:"amount"`
	IsAuto      bool   `json:"is_auto"`
	IsEstimated bool   `json:"is_estimated"`
	SortOrder   int    `json:"sort_order"`
}

// PlanDetailDTO is a plan together with its items.
type PlanDetailDTO struct {
	PlanDTO
	Items []LineItemDTO `json:"items"`
}

// TransitionRequest moves a plan through its status lifecycle.
type TransitionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// ManualItemRequest adds a manual charge to a plan.
type ManualItemRequest struct {
	Type         string  `json:"type"` // SERVICE, DAMAGE, OPERATOR, EXTRA
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	RentalLineID string  `json:"rental_line_id,omitempty"`
}

// DeliveryRequest records the actual delivery date of a line.
type DeliveryRequest struct {
	DeliveredAt string `json:"delivered_at"` // YYYY-MM-DD
}

// ReturnRequest records the actual return date of a line.
type ReturnRequest struct {
	ReturnedAt string `json:"returned_at"` // YYYY-MM-DD
}

// FrozenSkipDTO describes a finalized plan the engine refused to touch.
type FrozenSkipDTO struct {
	PlanID   string `json:"plan_id"`
	MonthKey string `json:"month_key"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// ReconcileResponse summarizes a reconciliation pass.
type ReconcileResponse struct {
	Created       int             `json:"created"`
	Updated       int             `json:"updated"`
	Cancelled     int             `json:"cancelled"`
	SkippedFrozen []FrozenSkipDTO `json:"skipped_frozen"`
	Reason        string          `json:"reason,omitempty"`
}

// ReturnResponse is a reconcile result plus the return-specific warnings.
type ReturnResponse struct {
	ReconcileResponse
	EarlyReturn            bool `json:"early_return"`
	ApprovedWarning        bool `json:"approved_warning"`
	PendingTransportReturn bool `json:"pending_transport_return"`
}

// SweepResponse reports the extension sweep outcome.
type SweepResponse struct {
	Extensions int `json:"extensions"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

func toLineDTO(l billing.RentalLine) RentalLineDTO {
	dto := RentalLineDTO{
		ID:                        l.ID,
		ContractID:                l.ContractID,
		MachineType:               l.MachineType,
		MachineSerial:             l.MachineSerial,
		DurationValue:             l.DurationValue,
		DurationUnit:              string(l.DurationUnit),
		RentalPrice:               l.RentalPriceUnit.String(),
		RentalDiscount:            l.RentalDiscountUnit.String(),
		TransportPrice:            l.TransportPrice.String(),
		TransportDiscount:         l.TransportDiscount.String(),
		TransportDeliveryInvoiced: l.TransportDeliveryInvoiced,
		TransportReturnInvoiced:   l.TransportReturnInvoiced,
	}
	if l.Start != nil {
		dto.StartDate = strPtr(l.Start.Date.String())
		dto.StartActual = l.Start.Actual
	}
	if l.End != nil {
		dto.EndDate = strPtr(l.End.Date.String())
		dto.EndActual = l.End.Actual
	}
	return dto
}

func toContractDTO(c *billing.Contract, lines []billing.RentalLine) ContractDTO {
	dtos := make([]RentalLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = toLineDTO(l)
	}
	return ContractDTO{
		ID:        c.ID,
		CompanyID: c.CompanyID,
		Name:      c.Name,
		Currency:  c.Currency,
		Lines:     dtos,
	}
}

func toPlanDTO(p *billing.BillingPlan) PlanDTO {
	return PlanDTO{
		ID:                p.ID,
		ContractID:        p.ContractID,
		MonthKey:          p.MonthKey(),
		PeriodLabel:       p.PeriodLabel,
		PeriodStart:       p.PeriodStart.String(),
		PeriodEnd:         p.PeriodEnd.String(),
		BillingDate:       p.BillingDate.String(),
		RentalSubtotal:    p.RentalSubtotal.StringFixed(2),
		TransportSubtotal: p.TransportSubtotal.StringFixed(2),
		ExtraSubtotal:     p.ExtraSubtotal.StringFixed(2),
		TotalAmount:       p.TotalAmount.StringFixed(2),
		Currency:          p.Currency,
		Status:            string(p.Status),
		IsEstimated:       p.IsEstimated,
		IsExtension:       p.IsExtension,
		ApprovedBy:        p.ApprovedBy,
		ApprovedAt:        timePtr(p.ApprovedAt),
		InvoicedBy:        p.InvoicedBy,
		InvoicedAt:        timePtr(p.InvoicedAt),
		PaidBy:            p.PaidBy,
		PaidAt:            timePtr(p.PaidAt),
	}
}

func toItemDTO(it billing.BillingLineItem) LineItemDTO {
	dto := LineItemDTO{
		ID:           it.ID,
		PlanID:       it.PlanID,
		RentalLineID: it.RentalLineID,
		Type:         string(it.Type),
		Description:  it.Description,
		BillableDays: it.BillableDays,
		DailyRate:    it.DailyRate.String(),
		Amount:       it.Amount.StringFixed(2),
		IsAuto:       it.IsAuto,
		IsEstimated:  it.IsEstimatedItem,
		SortOrder:    it.SortOrder,
	}
	if it.PeriodStart != nil {
		dto.PeriodStart = strPtr(it.PeriodStart.String())
	}
	if it.PeriodEnd != nil {
		dto.PeriodEnd = strPtr(it.PeriodEnd.String())
	}
	return dto
}

func toReconcileResponse(res *billing.ReconcileResult) ReconcileResponse {
	skips := make([]FrozenSkipDTO, len(res.SkippedFrozen))
	for i, s := range res.SkippedFrozen {
		skips[i] = FrozenSkipDTO{
			PlanID:   s.PlanID,
			MonthKey: s.MonthKey,
			Status:   string(s.Status),
			Reason:   s.Reason,
		}
	}
	return ReconcileResponse{
		Created:       res.Created,
		Updated:       res.Updated,
		Cancelled:     res.Cancelled,
		SkippedFrozen: skips,
		Reason:        res.Reason,
	}
}

func toReturnResponse(res *contracts.ReturnResult) ReturnResponse {
	return ReturnResponse{
		ReconcileResponse:      toReconcileResponse(&res.ReconcileResult),
		EarlyReturn:            res.EarlyReturn,
		ApprovedWarning:        res.ApprovedWarning,
		PendingTransportReturn: res.PendingTransportReturn,
	}
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.Format(time.RFC3339))
}
