// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/haulbase/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	contracts     map[string]billing.Contract
	lines         map[string]billing.RentalLine
	linesByCtr    map[string][]string // contract -> line IDs, creation order
	plans         map[string]billing.BillingPlan
	plansByCtr    map[string][]string // contract -> plan IDs, creation order
	itemsByPlanID map[string][]billing.BillingLineItem
}

func NewMemory() *Memory {
	return &Memory{
		contracts:     make(map[string]billing.Contract),
		lines:         make(map[string]billing.RentalLine),
		linesByCtr:    make(map[string][]string),
		plans:         make(map[string]billing.BillingPlan),
		plansByCtr:    make(map[string][]string),
		itemsByPlanID: make(map[string][]billing.BillingLineItem),
	}
}

var _ billing.Store = (*Memory)(nil)

// =============================================================================
// LINE STORE
// =============================================================================

func (m *Memory) CreateContract(_ context.Context, c billing.Contract, lines []billing.RentalLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contracts[c.ID] = c
	for _, l := range lines {
		m.lines[l.ID] = cloneLine(l)
		m.linesByCtr[c.ID] = append(m.linesByCtr[c.ID], l.ID)
	}
	return nil
}

func (m *Memory) GetContract(_ context.Context, id string) (*billing.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, billing.ErrContractNotFound
	}
	return &c, nil
}

func (m *Memory) GetRentalLine(_ context.Context, id string) (*billing.RentalLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lines[id]
	if !ok {
		return nil, billing.ErrLineNotFound
	}
	out := cloneLine(l)
	return &out, nil
}

func (m *Memory) ListRentalLines(_ context.Context, contractID string) ([]billing.RentalLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.linesByCtr[contractID]
	out := make([]billing.RentalLine, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneLine(m.lines[id]))
	}
	return out, nil
}

func (m *Memory) ListOpenDeliveredLines(_ context.Context) ([]billing.RentalLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.RentalLine
	for _, l := range m.lines {
		if l.Delivered() {
			if _, returned := l.ActualReturn(); !returned {
				out = append(out, cloneLine(l))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetDeliveryDate(_ context.Context, lineID string, d billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[lineID]
	if !ok {
		return billing.ErrLineNotFound
	}
	if l.Delivered() {
		return billing.ErrDateAlreadySet
	}
	l.Start = billing.ActualDate(d)
	m.lines[lineID] = l
	return nil
}

func (m *Memory) SetReturnDate(_ context.Context, lineID string, d billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[lineID]
	if !ok {
		return billing.ErrLineNotFound
	}
	if _, returned := l.ActualReturn(); returned {
		return billing.ErrDateAlreadySet
	}
	l.End = billing.ActualDate(d)
	m.lines[lineID] = l
	return nil
}

func (m *Memory) SetTransportInvoiced(_ context.Context, lineID string, leg billing.ItemType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[lineID]
	if !ok {
		return billing.ErrLineNotFound
	}
	switch leg {
	case billing.ItemTransportDelivery:
		l.TransportDeliveryInvoiced = true
	case billing.ItemTransportReturn:
		l.TransportReturnInvoiced = true
	}
	m.lines[lineID] = l
	return nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (m *Memory) FindPlan(_ context.Context, contractID, monthKey string) (*billing.BillingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(contractID, monthKey), nil
}

func (m *Memory) findLocked(contractID, monthKey string) *billing.BillingPlan {
	for _, id := range m.plansByCtr[contractID] {
		p := m.plans[id]
		if p.Status != billing.StatusCancelled && p.MonthKey() == monthKey {
			out := p
			return &out
		}
	}
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id string) (*billing.BillingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, billing.ErrPlanNotFound
	}
	return &p, nil
}

func (m *Memory) ListPlans(_ context.Context, contractID string) ([]billing.BillingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.BillingPlan, 0, len(m.plansByCtr[contractID]))
	for _, id := range m.plansByCtr[contractID] {
		out = append(out, m.plans[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func (m *Memory) CreatePlan(_ context.Context, plan billing.BillingPlan, items []billing.BillingLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findLocked(plan.ContractID, plan.MonthKey()); existing != nil {
		return billing.ErrDuplicatePlanMonth
	}
	m.plans[plan.ID] = plan
	m.plansByCtr[plan.ContractID] = append(m.plansByCtr[plan.ContractID], plan.ID)
	m.itemsByPlanID[plan.ID] = append([]billing.BillingLineItem(nil), items...)
	return nil
}

func (m *Memory) UpdatePlan(_ context.Context, plan billing.BillingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plans[plan.ID]; !ok {
		return billing.ErrPlanNotFound
	}
	m.plans[plan.ID] = plan
	return nil
}

func (m *Memory) ListItems(_ context.Context, planID string) ([]billing.BillingLineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]billing.BillingLineItem(nil), m.itemsByPlanID[planID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *Memory) ReplaceAutoItems(_ context.Context, planID string, items []billing.BillingLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []billing.BillingLineItem
	for _, it := range m.itemsByPlanID[planID] {
		if !it.Type.Auto() {
			kept = append(kept, it)
		}
	}
	m.itemsByPlanID[planID] = append(kept, items...)
	return nil
}

func (m *Memory) CreateItem(_ context.Context, item billing.BillingLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.itemsByPlanID[item.PlanID] = append(m.itemsByPlanID[item.PlanID], item)
	return nil
}

func (m *Memory) DeleteItem(_ context.Context, planID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.itemsByPlanID[planID]
	for i, it := range items {
		if it.ID == itemID {
			m.itemsByPlanID[planID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return billing.ErrItemNotFound
}

func (m *Memory) DeleteItems(_ context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.itemsByPlanID, planID)
	return nil
}

// cloneLine copies the schedule pointers so callers never alias store state.
func cloneLine(l billing.RentalLine) billing.RentalLine {
	if l.Start != nil {
		s := *l.Start
		l.Start = &s
	}
	if l.End != nil {
		e := *l.End
		l.End = &e
	}
	return l
}
