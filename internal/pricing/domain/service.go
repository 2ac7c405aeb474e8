package domain

import "context"

type RefundRequest struct {
	OutletID     *string `json:"outlet_id,omitempty"`
	CustomerTier string  `json:"customer_tier,omitempty"`
	CylinderType string  `json:"cylinder_type,omitempty"`
	// Condition is the cylinder return condition, e.g. "good" or "damaged".
	Condition string `json:"condition"`
}

type Service interface {
	Calculate(ctx context.Context, pctx PricingContext) (*PricingResult, error)
	// CalculateBulk evaluates each context independently and reports
	// per-item outcomes. Calculation is read-only, so partial success is
	// always safe.
	CalculateBulk(ctx context.Context, contexts []PricingContext) []BulkItem
	CalculateDepositRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
