package domain

import (
	"github.com/bwmarrin/snowflake"
)

// PricingContext is the caller-supplied input for one calculation. It is
// never persisted; identical context against identical setting state yields
// an identical result.
type PricingContext struct {
	OperationType string         `json:"operation_type"`
	OutletID      *snowflake.ID  `json:"outlet_id,string,omitempty"`
	CustomerTier  string         `json:"customer_tier,omitempty"`
	CylinderType  string         `json:"cylinder_type,omitempty"`
	Quantity      int64          `json:"quantity"`
	// DurationDays multiplies the daily rate. Required for LEASE.
	DurationDays int64 `json:"duration_days,omitempty"`
	// GasKg is the refill volume in kilograms. Required for REFILL.
	GasKg float64 `json:"gas_kg,omitempty"`
	// Conditions are surcharge triggers, e.g. a swap returned damaged.
	Conditions []string `json:"conditions,omitempty"`
}

// DiscountLine itemizes one triggered discount rule.
type DiscountLine struct {
	Description string `json:"description"`
	Percent     string `json:"percent"`
	Amount      int64  `json:"amount_units"`
	Display     string `json:"amount"`
}

// SurchargeLine itemizes one condition surcharge.
type SurchargeLine struct {
	Condition string `json:"condition"`
	Percent   string `json:"percent"`
	Amount    int64  `json:"amount_units"`
	Display   string `json:"amount"`
}

// Breakdown reports the per-stage aggregates in minor currency units.
type Breakdown struct {
	Subtotal        int64 `json:"subtotal_units"`
	TotalDiscounts  int64 `json:"total_discounts_units"`
	TotalSurcharges int64 `json:"total_surcharges_units"`
	TotalTaxes      int64 `json:"total_taxes_units"`
}

// PricingResult is the calculation output. TotalPrice always satisfies
// subtotal - discounts + surcharges + exclusive taxes, clamped at zero.
type PricingResult struct {
	OperationType string          `json:"operation_type"`
	BasePrice     int64           `json:"base_price_units"`
	TotalPrice    int64           `json:"total_price_units"`
	Display       string          `json:"total_price"`
	Breakdown     Breakdown       `json:"breakdown"`
	Discounts     []DiscountLine  `json:"discounts,omitempty"`
	Surcharges    []SurchargeLine `json:"surcharges,omitempty"`
	TaxType       string          `json:"tax_type,omitempty"`
	AppliedRules  []string        `json:"applied_rules,omitempty"`
}

// BulkItem is one outcome from CalculateBulk; bulk is always best-effort.
type BulkItem struct {
	Index  int            `json:"index"`
	Result *PricingResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// RefundResult is the deposit-refund calculation output.
type RefundResult struct {
	Deposit      int64    `json:"deposit_units"`
	Penalty      int64    `json:"penalty_units"`
	Refund       int64    `json:"refund_units"`
	Display      string   `json:"refund"`
	Condition    string   `json:"condition"`
	AppliedRules []string `json:"applied_rules,omitempty"`
}

// VolumeDiscountRule is the JSON payload of a volume discount setting.
type VolumeDiscountRule struct {
	MinQuantity int64  `json:"min_quantity"`
	Percent     string `json:"percent"`
	// Compounding applies the percentage to the running subtotal instead
	// of the original one.
	Compounding bool   `json:"compounding,omitempty"`
	Label       string `json:"label,omitempty"`
}
