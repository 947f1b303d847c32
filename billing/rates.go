/*
rates.go - Unit price to daily rate conversion

The 30-day month divisor is a deliberate business convention, not a
calendar approximation: a MONTH-priced line always divides by 30 and a
full month is always billed as 30 days, February included. The constants
live on RateConfig so tests can assert on them directly instead of
hunting for hidden literals.
*/
package billing

import "github.com/shopspring/decimal"

// RateConfig owns the divisor conventions used to turn unit prices into
// daily rates.
type RateConfig struct {
	// MonthDays is the fixed divisor for MONTH-priced lines and the day
	// count a full calendar month is billed as.
	MonthDays int
	// WeekDays is the divisor for WEEK-priced lines.
	WeekDays int
}

// DefaultRates is the production convention: 30-day months, 7-day weeks.
var DefaultRates = RateConfig{MonthDays: 30, WeekDays: 7}

var two = decimal.NewFromInt(2)

func intDecimal(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// DailyRate converts a unit price and discount into a per-day rate.
func (rc RateConfig) DailyRate(unitPrice, unitDiscount decimal.Decimal, unit DurationUnit) decimal.Decimal {
	net := unitPrice.Sub(unitDiscount)
	switch unit {
	case DurationWeek:
		return net.Div(decimal.NewFromInt(int64(rc.WeekDays)))
	case DurationMonth:
		return net.Div(decimal.NewFromInt(int64(rc.MonthDays)))
	default:
		return net
	}
}

// LineDailyRate is DailyRate applied to a rental line's own pricing.
func (rc RateConfig) LineDailyRate(l *RentalLine) decimal.Decimal {
	return rc.DailyRate(l.RentalPriceUnit, l.RentalDiscountUnit, l.DurationUnit)
}

// TransportHalf returns half the net transport cost, the share charged to
// each of the outbound and return legs. Zero when the net cost is not
// positive.
func (rc RateConfig) TransportHalf(transportPrice, transportDiscount decimal.Decimal) decimal.Decimal {
	net := transportPrice.Sub(transportDiscount)
	if !net.IsPositive() {
		return decimal.Zero
	}
	return net.Div(two)
}

// LineTransportHalf is TransportHalf applied to a rental line's pricing.
func (rc RateConfig) LineTransportHalf(l *RentalLine) decimal.Decimal {
	return rc.TransportHalf(l.TransportPrice, l.TransportDiscount)
}
