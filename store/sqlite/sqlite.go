/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  The production persistence path. In a hosted deployment the same
  patterns apply to PostgreSQL; only minor SQL dialect differences.

KEY TABLES:
  contracts:          contract records
  rental_lines:       one row per machine/service line
  billing_plans:      one row per contract per calendar month
  billing_line_items: charges inside a plan

INVARIANT ENFORCEMENT:
  A partial unique index on (contract_id, month_key) over non-CANCELLED
  rows enforces at most one live plan per contract month at the database
  level. A racing insert fails with a constraint violation, surfaced as
  billing.ErrDuplicatePlanMonth, which backs the reconciler's
  duplicate-creation guard.

REPRESENTATION:
  Dates are stored as "YYYY-MM-DD" text (time-free, no timezone to get
  wrong). Money is stored as decimal text, never floating point.

WAL MODE:
  Opened with WAL for better concurrency; multiple readers don't block.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/haulbase/billing-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ billing.Store = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		currency   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rental_lines (
		id                          TEXT PRIMARY KEY,
		contract_id                 TEXT NOT NULL REFERENCES contracts(id),
		company_id                  TEXT NOT NULL,
		machine_type                TEXT NOT NULL,
		machine_serial              TEXT NOT NULL DEFAULT '',
		duration_value              INTEGER NOT NULL,
		duration_unit               TEXT NOT NULL,
		rental_price                TEXT NOT NULL,
		rental_discount             TEXT NOT NULL,
		transport_price             TEXT NOT NULL,
		transport_discount          TEXT NOT NULL,
		start_date                  TEXT,
		start_actual                INTEGER NOT NULL DEFAULT 0,
		end_date                    TEXT,
		end_actual                  INTEGER NOT NULL DEFAULT 0,
		transport_delivery_invoiced INTEGER NOT NULL DEFAULT 0,
		transport_return_invoiced   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_rental_lines_contract
		ON rental_lines(contract_id);

	CREATE TABLE IF NOT EXISTS billing_plans (
		id                 TEXT PRIMARY KEY,
		contract_id        TEXT NOT NULL REFERENCES contracts(id),
		company_id         TEXT NOT NULL,
		month_key          TEXT NOT NULL,
		period_start       TEXT NOT NULL,
		period_end         TEXT NOT NULL,
		period_label       TEXT NOT NULL,
		billing_date       TEXT NOT NULL,
		rental_subtotal    TEXT NOT NULL,
		transport_subtotal TEXT NOT NULL,
		extra_subtotal     TEXT NOT NULL,
		total_amount       TEXT NOT NULL,
		currency           TEXT NOT NULL,
		status             TEXT NOT NULL,
		is_estimated       INTEGER NOT NULL DEFAULT 0,
		is_extension       INTEGER NOT NULL DEFAULT 0,
		approved_by        TEXT NOT NULL DEFAULT '',
		approved_at        TEXT,
		invoiced_by        TEXT NOT NULL DEFAULT '',
		invoiced_at        TEXT,
		paid_by            TEXT NOT NULL DEFAULT '',
		paid_at            TEXT
	);

	-- CRITICAL: at most one non-cancelled plan per contract month.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_live_plan_month
		ON billing_plans(contract_id, month_key)
		WHERE status != 'CANCELLED';

	CREATE INDEX IF NOT EXISTS idx_billing_plans_contract
		ON billing_plans(contract_id, period_start);

	CREATE TABLE IF NOT EXISTS billing_line_items (
		id             TEXT PRIMARY KEY,
		plan_id        TEXT NOT NULL REFERENCES billing_plans(id),
		rental_line_id TEXT NOT NULL DEFAULT '',
		item_type      TEXT NOT NULL,
		description    TEXT NOT NULL,
		period_start   TEXT,
		period_end     TEXT,
		billable_days  INTEGER NOT NULL DEFAULT 0,
		daily_rate     TEXT NOT NULL DEFAULT '0',
		amount         TEXT NOT NULL,
		is_auto        INTEGER NOT NULL DEFAULT 0,
		is_estimated   INTEGER NOT NULL DEFAULT 0,
		sort_order     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_items_plan
		ON billing_line_items(plan_id, sort_order);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LINE STORE
// =============================================================================

func (s *Store) CreateContract(ctx context.Context, c billing.Contract, lines []billing.RentalLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contracts (id, company_id, name, currency) VALUES (?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, c.Currency,
	); err != nil {
		return err
	}

	for i := range lines {
		l := &lines[i]
		startDate, startActual := scheduleCols(l.Start)
		endDate, endActual := scheduleCols(l.End)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rental_lines (
				id, contract_id, company_id, machine_type, machine_serial,
				duration_value, duration_unit,
				rental_price, rental_discount, transport_price, transport_discount,
				start_date, start_actual, end_date, end_actual,
				transport_delivery_invoiced, transport_return_invoiced
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.ContractID, l.CompanyID, l.MachineType, l.MachineSerial,
			l.DurationValue, string(l.DurationUnit),
			l.RentalPriceUnit.String(), l.RentalDiscountUnit.String(),
			l.TransportPrice.String(), l.TransportDiscount.String(),
			startDate, startActual, endDate, endActual,
			boolInt(l.TransportDeliveryInvoiced), boolInt(l.TransportReturnInvoiced),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetContract(ctx context.Context, id string) (*billing.Contract, error) {
	var c billing.Contract
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, currency FROM contracts WHERE id = ?`, id,
	).Scan(&c.ID, &c.CompanyID, &c.Name, &c.Currency)
	if err == sql.ErrNoRows {
		return nil, billing.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const lineColumns = `
	id, contract_id, company_id, machine_type, machine_serial,
	duration_value, duration_unit,
	rental_price, rental_discount, transport_price, transport_discount,
	start_date, start_actual, end_date, end_actual,
	transport_delivery_invoiced, transport_return_invoiced`

func (s *Store) GetRentalLine(ctx context.Context, id string) (*billing.RentalLine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM rental_lines WHERE id = ?`, id)
	line, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *Store) ListRentalLines(ctx context.Context, contractID string) ([]billing.RentalLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM rental_lines WHERE contract_id = ? ORDER BY rowid`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func (s *Store) ListOpenDeliveredLines(ctx context.Context) ([]billing.RentalLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM rental_lines
		 WHERE start_actual = 1 AND end_actual = 0 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func (s *Store) SetDeliveryDate(ctx context.Context, lineID string, d billing.Date) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rental_lines SET start_date = ?, start_actual = 1
		 WHERE id = ? AND start_actual = 0`,
		d.String(), lineID)
	return s.onceOnlyResult(ctx, res, err, lineID)
}

func (s *Store) SetReturnDate(ctx context.Context, lineID string, d billing.Date) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rental_lines SET end_date = ?, end_actual = 1
		 WHERE id = ? AND end_actual = 0`,
		d.String(), lineID)
	return s.onceOnlyResult(ctx, res, err, lineID)
}

// onceOnlyResult distinguishes "line missing" from "date already set"
// when a guarded once-only update matched no rows.
func (s *Store) onceOnlyResult(ctx context.Context, res sql.Result, err error, lineID string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM rental_lines WHERE id = ?`, lineID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return billing.ErrLineNotFound
	}
	return billing.ErrDateAlreadySet
}

func (s *Store) SetTransportInvoiced(ctx context.Context, lineID string, leg billing.ItemType) error {
	column := ""
	switch leg {
	case billing.ItemTransportDelivery:
		column = "transport_delivery_invoiced"
	case billing.ItemTransportReturn:
		column = "transport_return_invoiced"
	default:
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rental_lines SET `+column+` = 1 WHERE id = ?`, lineID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrLineNotFound
	}
	return nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

const planColumns = `
	id, contract_id, company_id, period_start, period_end, period_label,
	billing_date, rental_subtotal, transport_subtotal, extra_subtotal,
	total_amount, currency, status, is_estimated, is_extension,
	approved_by, approved_at, invoiced_by, invoiced_at, paid_by, paid_at`

func (s *Store) FindPlan(ctx context.Context, contractID, monthKey string) (*billing.BillingPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM billing_plans
		 WHERE contract_id = ? AND month_key = ? AND status != 'CANCELLED'`,
		contractID, monthKey)
	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*billing.BillingPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM billing_plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) ListPlans(ctx context.Context, contractID string) ([]billing.BillingPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM billing_plans
		 WHERE contract_id = ? ORDER BY period_start`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []billing.BillingPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func (s *Store) CreatePlan(ctx context.Context, plan billing.BillingPlan, items []billing.BillingLineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO billing_plans (
			id, contract_id, company_id, month_key,
			period_start, period_end, period_label, billing_date,
			rental_subtotal, transport_subtotal, extra_subtotal, total_amount,
			currency, status, is_estimated, is_extension,
			approved_by, approved_at, invoiced_by, invoiced_at, paid_by, paid_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.ContractID, plan.CompanyID, plan.MonthKey(),
		plan.PeriodStart.String(), plan.PeriodEnd.String(), plan.PeriodLabel, plan.BillingDate.String(),
		plan.RentalSubtotal.String(), plan.TransportSubtotal.String(),
		plan.ExtraSubtotal.String(), plan.TotalAmount.String(),
		plan.Currency, string(plan.Status), boolInt(plan.IsEstimated), boolInt(plan.IsExtension),
		plan.ApprovedBy, nullableTime(plan.ApprovedAt),
		plan.InvoicedBy, nullableTime(plan.InvoicedAt),
		plan.PaidBy, nullableTime(plan.PaidAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return billing.ErrDuplicatePlanMonth
		}
		return err
	}

	for i := range items {
		if err := insertItem(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpdatePlan(ctx context.Context, plan billing.BillingPlan) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE billing_plans SET
			rental_subtotal = ?, transport_subtotal = ?, extra_subtotal = ?,
			total_amount = ?, status = ?, is_estimated = ?, is_extension = ?,
			approved_by = ?, approved_at = ?, invoiced_by = ?, invoiced_at = ?,
			paid_by = ?, paid_at = ?
		WHERE id = ?`,
		plan.RentalSubtotal.String(), plan.TransportSubtotal.String(),
		plan.ExtraSubtotal.String(), plan.TotalAmount.String(),
		string(plan.Status), boolInt(plan.IsEstimated), boolInt(plan.IsExtension),
		plan.ApprovedBy, nullableTime(plan.ApprovedAt),
		plan.InvoicedBy, nullableTime(plan.InvoicedAt),
		plan.PaidBy, nullableTime(plan.PaidAt),
		plan.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, planID string) ([]billing.BillingLineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, rental_line_id, item_type, description,
		       period_start, period_end, billable_days, daily_rate,
		       amount, is_auto, is_estimated, sort_order
		FROM billing_line_items WHERE plan_id = ? ORDER BY sort_order, rowid`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []billing.BillingLineItem
	for rows.Next() {
		var it billing.BillingLineItem
		var itemType string
		var periodStart, periodEnd sql.NullString
		var dailyRate, amount string
		var isAuto, isEstimated int
		if err := rows.Scan(
			&it.ID, &it.PlanID, &it.RentalLineID, &itemType, &it.Description,
			&periodStart, &periodEnd, &it.BillableDays, &dailyRate,
			&amount, &isAuto, &isEstimated, &it.SortOrder,
		); err != nil {
			return nil, err
		}
		it.Type = billing.ItemType(itemType)
		it.IsAuto = isAuto != 0
		it.IsEstimatedItem = isEstimated != 0
		if it.DailyRate, err = decimal.NewFromString(dailyRate); err != nil {
			return nil, err
		}
		if it.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if it.PeriodStart, err = nullableDateValue(periodStart); err != nil {
			return nil, err
		}
		if it.PeriodEnd, err = nullableDateValue(periodEnd); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ReplaceAutoItems(ctx context.Context, planID string, items []billing.BillingLineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM billing_line_items
		 WHERE plan_id = ? AND item_type IN ('RENTAL', 'TRANSPORT_DELIVERY', 'TRANSPORT_RETURN')`,
		planID,
	); err != nil {
		return err
	}
	for i := range items {
		if err := insertItem(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateItem(ctx context.Context, item billing.BillingLineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertItem(ctx, tx, &item); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteItem(ctx context.Context, planID, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM billing_line_items WHERE plan_id = ? AND id = ?`, planID, itemID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrItemNotFound
	}
	return nil
}

func (s *Store) DeleteItems(ctx context.Context, planID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM billing_line_items WHERE plan_id = ?`, planID)
	return err
}

func insertItem(ctx context.Context, tx *sql.Tx, it *billing.BillingLineItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO billing_line_items (
			id, plan_id, rental_line_id, item_type, description,
			period_start, period_end, billable_days, daily_rate,
			amount, is_auto, is_estimated, sort_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.PlanID, it.RentalLineID, string(it.Type), it.Description,
		nullableDate(it.PeriodStart), nullableDate(it.PeriodEnd),
		it.BillableDays, it.DailyRate.String(),
		it.Amount.String(), boolInt(it.IsAuto), boolInt(it.IsEstimatedItem), it.SortOrder,
	)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*billing.RentalLine, error) {
	var l billing.RentalLine
	var unit string
	var rentalPrice, rentalDiscount, transportPrice, transportDiscount string
	var startDate, endDate sql.NullString
	var startActual, endActual, deliveryInvoiced, returnInvoiced int

	err := row.Scan(
		&l.ID, &l.ContractID, &l.CompanyID, &l.MachineType, &l.MachineSerial,
		&l.DurationValue, &unit,
		&rentalPrice, &rentalDiscount, &transportPrice, &transportDiscount,
		&startDate, &startActual, &endDate, &endActual,
		&deliveryInvoiced, &returnInvoiced,
	)
	if err != nil {
		return nil, err
	}

	l.DurationUnit = billing.DurationUnit(unit)
	if l.RentalPriceUnit, err = decimal.NewFromString(rentalPrice); err != nil {
		return nil, err
	}
	if l.RentalDiscountUnit, err = decimal.NewFromString(rentalDiscount); err != nil {
		return nil, err
	}
	if l.TransportPrice, err = decimal.NewFromString(transportPrice); err != nil {
		return nil, err
	}
	if l.TransportDiscount, err = decimal.NewFromString(transportDiscount); err != nil {
		return nil, err
	}
	if l.Start, err = scheduleValue(startDate, startActual); err != nil {
		return nil, err
	}
	if l.End, err = scheduleValue(endDate, endActual); err != nil {
		return nil, err
	}
	l.TransportDeliveryInvoiced = deliveryInvoiced != 0
	l.TransportReturnInvoiced = returnInvoiced != 0
	return &l, nil
}

func collectLines(rows *sql.Rows) ([]billing.RentalLine, error) {
	var lines []billing.RentalLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

func scanPlan(row rowScanner) (*billing.BillingPlan, error) {
	var p billing.BillingPlan
	var periodStart, periodEnd, billingDate string
	var rental, transport, extra, total, status string
	var isEstimated, isExtension int
	var approvedAt, invoicedAt, paidAt sql.NullString

	err := row.Scan(
		&p.ID, &p.ContractID, &p.CompanyID, &periodStart, &periodEnd, &p.PeriodLabel,
		&billingDate, &rental, &transport, &extra,
		&total, &p.Currency, &status, &isEstimated, &isExtension,
		&p.ApprovedBy, &approvedAt, &p.InvoicedBy, &invoicedAt, &p.PaidBy, &paidAt,
	)
	if err != nil {
		return nil, err
	}

	if p.PeriodStart, err = billing.ParseDate(periodStart); err != nil {
		return nil, err
	}
	if p.PeriodEnd, err = billing.ParseDate(periodEnd); err != nil {
		return nil, err
	}
	if p.BillingDate, err = billing.ParseDate(billingDate); err != nil {
		return nil, err
	}
	if p.RentalSubtotal, err = decimal.NewFromString(rental); err != nil {
		return nil, err
	}
	if p.TransportSubtotal, err = decimal.NewFromString(transport); err != nil {
		return nil, err
	}
	if p.ExtraSubtotal, err = decimal.NewFromString(extra); err != nil {
		return nil, err
	}
	if p.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	p.Status = billing.PlanStatus(status)
	p.IsEstimated = isEstimated != 0
	p.IsExtension = isExtension != 0
	if p.ApprovedAt, err = nullableTimeValue(approvedAt); err != nil {
		return nil, err
	}
	if p.InvoicedAt, err = nullableTimeValue(invoicedAt); err != nil {
		return nil, err
	}
	if p.PaidAt, err = nullableTimeValue(paidAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scheduleCols(sd *billing.ScheduleDate) (any, int) {
	if sd == nil {
		return nil, 0
	}
	return sd.Date.String(), boolInt(sd.Actual)
}

func scheduleValue(date sql.NullString, actual int) (*billing.ScheduleDate, error) {
	if !date.Valid {
		return nil, nil
	}
	d, err := billing.ParseDate(date.String)
	if err != nil {
		return nil, err
	}
	return &billing.ScheduleDate{Date: d, Actual: actual != 0}, nil
}

func nullableDate(d *billing.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableDateValue(s sql.NullString) (*billing.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := billing.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullableTimeValue(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
