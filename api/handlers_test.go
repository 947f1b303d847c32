/*
handlers_test.go - HTTP-level tests for the billing API

Tests drive the real router with httptest over the in-memory store, so
they cover routing, JSON mapping, and domain error translation together.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haulbase/billing-engine/billing"
	"github.com/haulbase/billing-engine/billing/store"
	"github.com/haulbase/billing-engine/contracts"
)

const contractJSON = `{
	"name": "ACME excavator rental",
	"company_id": "acme",
	"currency": "EUR",
	"lines": [
		{
			"machine_type": "excavator",
			"machine_serial": "EX-204",
			"duration_value": 6,
			"duration_unit": "MONTH",
			"rental_price": 3000,
			"transport_price": 500,
			"estimated_start": "2025-01-10"
		}
	]
}`

func newTestServer(t *testing.T, today billing.Date) (*httptest.Server, *contracts.Service) {
	t.Helper()
	mem := store.NewMemory()
	svc := contracts.NewService(mem)
	svc.SetToday(func() billing.Date { return today })

	srv := httptest.NewServer(NewRouter(NewHandler(mem, svc)))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func decodeInto(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

// activateContract posts the fixture contract and returns the activation
// response.
func activateContract(t *testing.T, srv *httptest.Server) ActivationResponse {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/api/contracts", contractJSON)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("activate: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var out ActivationResponse
	decodeInto(t, body, &out)
	return out
}

// =============================================================================
// CONTRACT LIFECYCLE OVER HTTP
// =============================================================================

func TestActivateContract_ReturnsPlansAndIDs(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2024, time.December, 1))

	out := activateContract(t, srv)
	if out.PlansCreated != 7 {
		t.Errorf("expected 7 plans, got %d", out.PlansCreated)
	}
	if out.Contract.ID == "" {
		t.Error("expected an assigned contract ID")
	}
	if len(out.Contract.Lines) != 1 || out.Contract.Lines[0].ID == "" {
		t.Fatalf("expected one line with an assigned ID, got %+v", out.Contract.Lines)
	}
	if out.Contract.Lines[0].StartActual {
		t.Error("estimated start must not be flagged actual")
	}
}

func TestActivateContract_InvalidDefinition_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2024, time.December, 1))

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/contracts", `{"name": ""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a nameless contract, got %d", resp.StatusCode)
	}
}

func TestListContractPlans_OrderedByPeriod(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2024, time.December, 1))
	out := activateContract(t, srv)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/contracts/"+out.Contract.ID+"/plans", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var plans []PlanDTO
	decodeInto(t, body, &plans)
	if len(plans) != 7 {
		t.Fatalf("expected 7 plans, got %d", len(plans))
	}
	if plans[0].MonthKey != "2025-01" || plans[6].MonthKey != "2025-07" {
		t.Errorf("unexpected ordering: %s .. %s", plans[0].MonthKey, plans[6].MonthKey)
	}
	if plans[1].TotalAmount != "3000.00" {
		t.Errorf("expected full-month 3000.00, got %s", plans[1].TotalAmount)
	}
}

func TestDeliveryThenPlanDetail(t *testing.T) {
	// GIVEN: An activated contract
	// WHEN: Recording delivery over HTTP and fetching January's detail
	// THEN: The plan is PLANNED with real items and repriced totals

	srv, _ := newTestServer(t, billing.NewDate(2025, time.January, 12))
	out := activateContract(t, srv)
	lineID := out.Contract.Lines[0].ID

	resp, body := do(t, http.MethodPost, srv.URL+"/api/lines/"+lineID+"/delivery",
		`{"delivered_at": "2025-01-12"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delivery: expected 200, got %d: %s", resp.StatusCode, body)
	}

	var rec ReconcileResponse
	decodeInto(t, body, &rec)
	if rec.Updated == 0 {
		t.Error("expected updated plans after delivery")
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/contracts/"+out.Contract.ID+"/plans", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var plans []PlanDTO
	decodeInto(t, body, &plans)

	jan := plans[0]
	if jan.Status != "PLANNED" {
		t.Errorf("expected PLANNED, got %s", jan.Status)
	}
	if jan.TotalAmount != "2250.00" {
		t.Errorf("expected 2250.00, got %s", jan.TotalAmount)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/plans/"+jan.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", resp.StatusCode)
	}
	var detail PlanDetailDTO
	decodeInto(t, body, &detail)
	if len(detail.Items) != 2 {
		t.Fatalf("expected rental + transport items, got %d", len(detail.Items))
	}
	for _, it := range detail.Items {
		if it.IsEstimated {
			t.Errorf("item %s still estimated after delivery", it.Type)
		}
	}
}

func TestDelivery_SecondTime_Conflict(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2025, time.January, 12))
	out := activateContract(t, srv)
	lineID := out.Contract.Lines[0].ID

	url := srv.URL + "/api/lines/" + lineID + "/delivery"
	if resp, _ := do(t, http.MethodPost, url, `{"delivered_at": "2025-01-12"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delivery failed: %d", resp.StatusCode)
	}
	resp, _ := do(t, http.MethodPost, url, `{"delivered_at": "2025-01-13"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for a second delivery, got %d", resp.StatusCode)
	}
}

func TestReturn_ReportsWarnings(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2025, time.March, 15))
	out := activateContract(t, srv)
	lineID := out.Contract.Lines[0].ID

	do(t, http.MethodPost, srv.URL+"/api/lines/"+lineID+"/delivery", `{"delivered_at": "2025-01-10"}`)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/lines/"+lineID+"/return",
		`{"returned_at": "2025-03-15"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return: expected 200, got %d: %s", resp.StatusCode, body)
	}

	var ret ReturnResponse
	decodeInto(t, body, &ret)
	if !ret.EarlyReturn {
		t.Error("expected early_return for a March return on a July-ending term")
	}
	if ret.Cancelled != 4 {
		t.Errorf("expected 4 cancelled tail months, got %d", ret.Cancelled)
	}
}

// =============================================================================
// STATUS AND ITEMS OVER HTTP
// =============================================================================

func TestTransitionAndManualItems(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2025, time.January, 12))
	out := activateContract(t, srv)
	lineID := out.Contract.Lines[0].ID
	do(t, http.MethodPost, srv.URL+"/api/lines/"+lineID+"/delivery", `{"delivered_at": "2025-01-12"}`)

	_, body := do(t, http.MethodGet, srv.URL+"/api/contracts/"+out.Contract.ID+"/plans", "")
	var plans []PlanDTO
	decodeInto(t, body, &plans)
	planID := plans[0].ID

	// Approve.
	resp, body := do(t, http.MethodPost, srv.URL+"/api/plans/"+planID+"/status",
		`{"status": "APPROVED", "actor": "alex"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var plan PlanDTO
	decodeInto(t, body, &plan)
	if plan.Status != "APPROVED" || plan.ApprovedBy != "alex" {
		t.Errorf("unexpected approval state: %s by %q", plan.Status, plan.ApprovedBy)
	}

	// Invalid transition from APPROVED.
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/plans/"+planID+"/status",
		`{"status": "PAID", "actor": "alex"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for APPROVED -> PAID, got %d", resp.StatusCode)
	}

	// Manual item knocks the plan back to PLANNED.
	resp, body = do(t, http.MethodPost, srv.URL+"/api/plans/"+planID+"/items",
		`{"type": "DAMAGE", "description": "Cracked windshield", "amount": 400}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var item LineItemDTO
	decodeInto(t, body, &item)
	if item.Amount != "400.00" {
		t.Errorf("expected 400.00, got %s", item.Amount)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/plans/"+planID, "")
	var detail PlanDetailDTO
	decodeInto(t, body, &detail)
	if detail.Status != "PLANNED" {
		t.Errorf("expected PLANNED after editing an approved plan, got %s", detail.Status)
	}
	if detail.TotalAmount != "2650.00" {
		t.Errorf("expected 2650.00, got %s", detail.TotalAmount)
	}

	// Remove it again.
	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("%s/api/plans/%s/items/%s", srv.URL, planID, item.ID), "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("remove item: expected 204, got %d", resp.StatusCode)
	}
}

func TestGetPlan_Unknown_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, billing.NewDate(2025, time.January, 12))

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/plans/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// ADMIN SWEEP
// =============================================================================

func TestExtensionSweepEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, billing.NewDate(2025, time.January, 12))
	out := activateContract(t, srv)
	lineID := out.Contract.Lines[0].ID
	do(t, http.MethodPost, srv.URL+"/api/lines/"+lineID+"/delivery", `{"delivered_at": "2025-01-12"}`)

	// The machine overstays well past the contracted end.
	svc.SetToday(func() billing.Date { return billing.NewDate(2025, time.August, 20) })

	resp, body := do(t, http.MethodPost, srv.URL+"/api/admin/extension-sweep", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sweep: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var sweep SweepResponse
	decodeInto(t, body, &sweep)
	if sweep.Extensions != 1 {
		t.Errorf("expected 1 extended contract, got %d", sweep.Extensions)
	}
}
