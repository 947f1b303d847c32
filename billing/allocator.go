/*
allocator.go - Per-month charge computation for one rental line

PURPOSE:
  Given one rental line and one target month, computes the auto line items
  (rental proration plus transport legs) that belong in that month.

ESTIMATED VS ACTUAL:
  The estimated flag says whether the line is still a projection (no
  actual delivery yet). An estimated line is never carried past its
  nominal contract end. A delivered line with no recorded return IS
  carried past its end: the machine is assumed to still be on site, which
  is how extension months come to exist.

FULL-MONTH CONVENTION:
  A window covering the whole calendar month bills the fixed month-day
  count (30), February included. Partial windows bill actual days, capped
  at the same count.
*/
package billing

import "fmt"

// PeriodAllocator computes the billable auto items of one rental line for
// one calendar month.
type PeriodAllocator struct {
	Rates RateConfig
}

// Allocate returns the auto item drafts for line in the given month, or
// nil when nothing is billable there. estimated marks the whole
// evaluation as a projection (the line has no actual delivery yet).
//
// Returned items carry no ID or PlanID; the caller assigns those when
// persisting, and renumbers SortOrder across lines.
func (a PeriodAllocator) Allocate(line *RentalLine, month MonthPeriod, estimated bool) []BillingLineItem {
	start, ok := line.EffectiveStart()
	if !ok {
		return nil
	}

	actualReturn, returned := line.ActualReturn()
	nominalEnd := ContractEnd(start, line.DurationValue, line.DurationUnit)

	// Not started by month end, or already returned before month start.
	if start.After(month.End) {
		return nil
	}
	if returned && actualReturn.Before(month.Start) {
		return nil
	}
	// A still-projected line is not carried past its nominal end.
	if estimated && !returned && nominalEnd.Before(month.Start) {
		return nil
	}

	var items []BillingLineItem
	if rental := a.rentalItem(line, month, start, actualReturn, returned, nominalEnd, estimated); rental != nil {
		items = append(items, *rental)
	}
	if delivery := a.deliveryTransportItem(line, month, start, estimated); delivery != nil {
		items = append(items, *delivery)
	}
	if ret := a.returnTransportItem(line, month, actualReturn, returned); ret != nil {
		items = append(items, *ret)
	}
	for i := range items {
		items[i].SortOrder = i
	}
	return items
}

func (a PeriodAllocator) rentalItem(line *RentalLine, month MonthPeriod, start, actualReturn Date, returned bool, nominalEnd Date, estimated bool) *BillingLineItem {
	windowStart := MaxDate(start, month.Start)

	windowEnd := month.End
	switch {
	case returned && actualReturn.BeforeOrEqual(month.End):
		windowEnd = actualReturn
	case estimated && !returned && nominalEnd.BeforeOrEqual(month.End):
		windowEnd = nominalEnd
	}

	days := DaysBetween(windowStart, windowEnd)
	if days == 0 {
		return nil
	}
	if windowStart.Equal(month.Start) && windowEnd.Equal(month.End) {
		// Full month: fixed day count regardless of calendar length.
		days = a.Rates.MonthDays
	} else if days > a.Rates.MonthDays {
		days = a.Rates.MonthDays
	}

	rate := a.Rates.LineDailyRate(line)
	amount := rate.Mul(intDecimal(days)).Round(2)

	ws, we := windowStart, windowEnd
	return &BillingLineItem{
		RentalLineID: line.ID,
		Type:         ItemRental,
		Description: fmt.Sprintf("Rental %s %s to %s (%d days)",
			lineLabel(line), windowStart, windowEnd, days),
		PeriodStart:     &ws,
		PeriodEnd:       &we,
		BillableDays:    days,
		DailyRate:       rate,
		Amount:          amount,
		IsAuto:          true,
		IsEstimatedItem: estimated,
	}
}

// deliveryTransportItem emits the outbound transport half when the
// (actual or projected) delivery date falls inside the month. This can
// happen at most once ever per line: the invoiced flag is set by the
// external workflow once the charge is invoiced.
func (a PeriodAllocator) deliveryTransportItem(line *RentalLine, month MonthPeriod, start Date, estimated bool) *BillingLineItem {
	if line.TransportDeliveryInvoiced {
		return nil
	}
	if start.Before(month.Start) || start.After(month.End) {
		return nil
	}
	half := a.Rates.LineTransportHalf(line)
	if !half.IsPositive() {
		return nil
	}
	return &BillingLineItem{
		RentalLineID:    line.ID,
		Type:            ItemTransportDelivery,
		Description:     fmt.Sprintf("Delivery transport %s", lineLabel(line)),
		Amount:          half.Round(2),
		IsAuto:          true,
		IsEstimatedItem: estimated,
	}
}

// returnTransportItem emits the return transport half only for an ACTUAL
// return inside the month. A projected end date never triggers it.
func (a PeriodAllocator) returnTransportItem(line *RentalLine, month MonthPeriod, actualReturn Date, returned bool) *BillingLineItem {
	if !returned || line.TransportReturnInvoiced {
		return nil
	}
	if actualReturn.Before(month.Start) || actualReturn.After(month.End) {
		return nil
	}
	half := a.Rates.LineTransportHalf(line)
	if !half.IsPositive() {
		return nil
	}
	return &BillingLineItem{
		RentalLineID: line.ID,
		Type:         ItemTransportReturn,
		Description:  fmt.Sprintf("Return transport %s", lineLabel(line)),
		Amount:       half.Round(2),
		IsAuto:       true,
	}
}

func lineLabel(line *RentalLine) string {
	if line.MachineSerial != "" {
		return fmt.Sprintf("%s (%s)", line.MachineType, line.MachineSerial)
	}
	return line.MachineType
}
