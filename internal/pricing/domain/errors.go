package domain

import "errors"

var (
	// ErrMissingSetting means a required setting could not be resolved
	// even at global scope. Never defaulted inside the evaluator.
	ErrMissingSetting = errors.New("missing_setting")
	// ErrInvalidContext covers quantity < 1 and absent operation fields.
	ErrInvalidContext = errors.New("invalid_pricing_context")
)
