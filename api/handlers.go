/*
handlers.go - HTTP API handlers for the billing-plan engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Contracts:
    POST   /api/contracts                    Activate contract (JSON definition)
    GET    /api/contracts/{id}               Get contract with lines
    GET    /api/contracts/{id}/plans         List the contract's plans
    POST   /api/contracts/{id}/recalculate   Manual reconciliation

  Rental lines:
    POST   /api/lines/{id}/delivery          Record actual delivery date
    POST   /api/lines/{id}/return            Record actual return date

  Plans:
    GET    /api/plans/{id}                   Get plan with items
    POST   /api/plans/{id}/status            Status transition
    POST   /api/plans/{id}/items             Add manual item
    DELETE /api/plans/{id}/items/{itemID}    Remove manual item

  Admin:
    POST   /api/admin/extension-sweep        Run the extension sweep now

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (reads)
  - Service: Domain workflows (all writes go through it)
  - Factory: JSON to contract conversion

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (service, reconciler)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (frozen plan, duplicate month, date already set)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The actor on status transitions is taken from the request body as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - contracts/service.go: The workflows behind these endpoints
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/haulbase/billing-engine/billing"
	"github.com/haulbase/billing-engine/contracts"
	"github.com/haulbase/billing-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   billing.Store
	Service *contracts.Service
	Factory *factory.ContractFactory
}

// NewHandler creates a new handler over a store and its service.
func NewHandler(store billing.Store, svc *contracts.Service) *Handler {
	return &Handler{
		Store:   store,
		Service: svc,
		Factory: factory.NewContractFactory(),
	}
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ActivateContract creates a contract from a JSON definition and generates
// its full plan sequence.
// POST /api/contracts
func (h *Handler) ActivateContract(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	contract, lines, err := h.Factory.ParseContract(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract definition", err)
		return
	}

	result, err := h.Service.Activate(r.Context(), *contract, lines)
	if err != nil {
		writeDomainError(w, "Failed to activate contract", err)
		return
	}
	if result.Reason != "" {
		writeError(w, http.StatusBadRequest, result.Reason, nil)
		return
	}

	// Re-read so the response carries the assigned record IDs.
	stored, err := h.Store.GetContract(r.Context(), result.ContractID)
	if err != nil {
		writeDomainError(w, "Failed to load contract", err)
		return
	}
	storedLines, err := h.Store.ListRentalLines(r.Context(), stored.ID)
	if err != nil {
		writeDomainError(w, "Failed to load rental lines", err)
		return
	}

	writeJSON(w, http.StatusCreated, ActivationResponse{
		Contract:     toContractDTO(stored, storedLines),
		PlansCreated: result.Created,
		Reason:       result.Reason,
	})
}

// GetContract returns a contract with its rental lines.
// GET /api/contracts/{id}
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	contract, err := h.Store.GetContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	lines, err := h.Store.ListRentalLines(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load rental lines", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractDTO(contract, lines))
}

// ListContractPlans returns every plan of a contract, cancelled included,
// ordered by period.
// GET /api/contracts/{id}/plans
func (h *Handler) ListContractPlans(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.GetContract(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}

	plans, err := h.Store.ListPlans(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i := range plans {
		dtos[i] = toPlanDTO(&plans[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecalculateContract runs a full reconciliation pass for one contract.
// POST /api/contracts/{id}/recalculate
func (h *Handler) RecalculateContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Service.Recalculate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to recalculate", err)
		return
	}

	writeJSON(w, http.StatusOK, toReconcileResponse(result))
}

// =============================================================================
// RENTAL LINE HANDLERS
// =============================================================================

// RecordDelivery stamps the actual delivery date on a line and reconciles.
// POST /api/lines/{id}/delivery
func (h *Handler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	deliveredAt, err := billing.ParseDate(req.DeliveredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delivered_at date", err)
		return
	}

	result, err := h.Service.RecordDelivery(r.Context(), id, deliveredAt)
	if err != nil {
		writeDomainError(w, "Failed to record delivery", err)
		return
	}

	writeJSON(w, http.StatusOK, toReconcileResponse(result))
}

// RecordReturn stamps the actual return date on a line and reconciles.
// POST /api/lines/{id}/return
func (h *Handler) RecordReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	returnedAt, err := billing.ParseDate(req.ReturnedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid returned_at date", err)
		return
	}

	result, err := h.Service.RecordReturn(r.Context(), id, returnedAt)
	if err != nil {
		writeDomainError(w, "Failed to record return", err)
		return
	}

	writeJSON(w, http.StatusOK, toReturnResponse(result))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// GetPlan returns a plan with its line items.
// GET /api/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}

	items, err := h.Store.ListItems(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list items", err)
		return
	}

	detail := PlanDetailDTO{PlanDTO: toPlanDTO(plan), Items: make([]LineItemDTO, len(items))}
	for i, it := range items {
		detail.Items[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, detail)
}

// TransitionPlan moves a plan through its status lifecycle.
// POST /api/plans/{id}/status
func (h *Handler) TransitionPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	status := billing.PlanStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	plan, err := h.Service.Transition(r.Context(), id, status, req.Actor)
	if err != nil {
		writeDomainError(w, "Failed to transition plan", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// AddManualItem appends a manual charge to a mutable plan.
// POST /api/plans/{id}/items
func (h *Handler) AddManualItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ManualItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "Description is required", nil)
		return
	}

	item, err := h.Service.AddManualItem(r.Context(), id, contracts.ManualItemInput{
		Type:         billing.ItemType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Description:  req.Description,
		Amount:       decimal.NewFromFloat(req.Amount),
		RentalLineID: req.RentalLineID,
	})
	if err != nil {
		writeDomainError(w, "Failed to add item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemDTO(*item))
}

// RemoveManualItem deletes a manual charge from a mutable plan.
// DELETE /api/plans/{id}/items/{itemID}
func (h *Handler) RemoveManualItem(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")

	if err := h.Service.RemoveManualItem(r.Context(), planID, itemID); err != nil {
		writeDomainError(w, "Failed to remove item", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerExtensionSweep runs the daily extension sweep immediately.
// POST /api/admin/extension-sweep
func (h *Handler) TriggerExtensionSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ExtensionSweep(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to run extension sweep", err)
		return
	}

	writeJSON(w, http.StatusOK, SweepResponse{Extensions: result.Extensions})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrPlanFrozen),
		errors.Is(err, billing.ErrDateAlreadySet),
		errors.Is(err, billing.ErrDuplicatePlanMonth):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
