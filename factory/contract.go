/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts JSON contract definitions into billing.Contract and
  billing.RentalLine objects. This enables contract intake without code
  changes - sales can submit contracts as JSON payloads, and the factory
  creates the proper Go structs with validated dates and decimal prices.

WHY JSON?
  - Direct integration with the ERP export format
  - Easy to test activation flows from fixture files
  - Version control for sample contracts

JSON SCHEMA:
  {
    "name": "ACME Q3 excavator rental",
    "company_id": "acme",
    "currency": "EUR",
    "lines": [
      {
        "machine_type": "excavator",
        "machine_serial": "EX-204",
        "duration_value": 6,
        "duration_unit": "MONTH",
        "rental_price": 3000,
        "rental_discount": 0,
        "transport_price": 500,
        "transport_discount": 0,
        "estimated_start": "2026-01-10"
      }
    ]
  }

KEY FEATURES:
  - Validates structure and enum values
  - Sets sensible defaults (currency, duration unit)
  - Converts float prices to decimals at the boundary
  - Parses estimated start dates into schedule dates

USAGE:
  factory := NewContractFactory()
  contract, lines, err := factory.ParseContract(jsonBytes)
  result, err := svc.Activate(ctx, contract, lines)

SEE ALSO:
  - billing/types.go: Contract and RentalLine definitions
  - contracts/service.go: Activate consumes the factory output
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/haulbase/billing-engine/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the JSON representation of a rental contract.
type ContractJSON struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	CompanyID string     `json:"company_id"`
	Currency  string     `json:"currency,omitempty"` // Default EUR
	Lines     []LineJSON `json:"lines"`
}

// LineJSON is the JSON representation of a single rental line.
type LineJSON struct {
	ID                string  `json:"id,omitempty"`
	MachineType       string  `json:"machine_type"`
	MachineSerial     string  `json:"machine_serial,omitempty"`
	DurationValue     int     `json:"duration_value"`
	DurationUnit      string  `json:"duration_unit,omitempty"` // DAY, WEEK, MONTH; default MONTH
	RentalPrice       float64 `json:"rental_price"`
	RentalDiscount    float64 `json:"rental_discount,omitempty"`
	TransportPrice    float64 `json:"transport_price,omitempty"`
	TransportDiscount float64 `json:"transport_discount,omitempty"`
	EstimatedStart    string  `json:"estimated_start,omitempty"` // YYYY-MM-DD
}

// =============================================================================
// CONTRACT FACTORY
// =============================================================================

// ContractFactory converts JSON contracts to Go structs.
type ContractFactory struct{}

// NewContractFactory creates a new contract factory.
func NewContractFactory() *ContractFactory {
	return &ContractFactory{}
}

// ParseContract parses a JSON payload into a Contract and its RentalLines.
func (f *ContractFactory) ParseContract(data []byte) (*billing.Contract, []billing.RentalLine, error) {
	var cj ContractJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, nil, fmt.Errorf("failed to parse contract JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ContractJSON to a Contract and RentalLines.
func (f *ContractFactory) FromJSON(cj ContractJSON) (*billing.Contract, []billing.RentalLine, error) {
	if strings.TrimSpace(cj.Name) == "" {
		return nil, nil, fmt.Errorf("contract name is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(cj.Currency))
	if currency == "" {
		currency = "EUR"
	}
	if len(currency) != 3 {
		return nil, nil, fmt.Errorf("currency must be a 3-letter code, got %q", cj.Currency)
	}

	contract := &billing.Contract{
		ID:        cj.ID,
		CompanyID: cj.CompanyID,
		Name:      cj.Name,
		Currency:  currency,
	}

	lines := make([]billing.RentalLine, 0, len(cj.Lines))
	for i, lj := range cj.Lines {
		line, err := parseLine(lj)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i, err)
		}
		lines = append(lines, line)
	}

	return contract, lines, nil
}

func parseLine(lj LineJSON) (billing.RentalLine, error) {
	var line billing.RentalLine

	if strings.TrimSpace(lj.MachineType) == "" {
		return line, fmt.Errorf("machine_type is required")
	}
	if lj.DurationValue <= 0 {
		return line, fmt.Errorf("duration_value must be positive, got %d", lj.DurationValue)
	}

	unit, err := parseDurationUnit(lj.DurationUnit)
	if err != nil {
		return line, err
	}
	if lj.RentalPrice < 0 || lj.RentalDiscount < 0 || lj.TransportPrice < 0 || lj.TransportDiscount < 0 {
		return line, fmt.Errorf("prices and discounts must not be negative")
	}

	line = billing.RentalLine{
		ID:                 lj.ID,
		MachineType:        lj.MachineType,
		MachineSerial:      lj.MachineSerial,
		DurationValue:      lj.DurationValue,
		DurationUnit:       unit,
		RentalPriceUnit:    decimal.NewFromFloat(lj.RentalPrice),
		RentalDiscountUnit: decimal.NewFromFloat(lj.RentalDiscount),
		TransportPrice:     decimal.NewFromFloat(lj.TransportPrice),
		TransportDiscount:  decimal.NewFromFloat(lj.TransportDiscount),
	}

	if lj.EstimatedStart != "" {
		start, err := billing.ParseDate(lj.EstimatedStart)
		if err != nil {
			return line, fmt.Errorf("estimated_start: %w", err)
		}
		line.Start = billing.EstimatedDate(start)
	}

	return line, nil
}

func parseDurationUnit(s string) (billing.DurationUnit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MONTH", "MONTHS":
		return billing.DurationMonth, nil
	case "WEEK", "WEEKS":
		return billing.DurationWeek, nil
	case "DAY", "DAYS":
		return billing.DurationDay, nil
	default:
		return "", fmt.Errorf("unknown duration_unit %q", s)
	}
}
