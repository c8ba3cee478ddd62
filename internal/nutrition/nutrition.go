// Package nutrition estimates the macro content of meals inferred from
// food purchases.
package nutrition

import "context"

// Confidence levels an estimate can carry. Anything else collapses to
// ConfidenceLow during parsing.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Estimate is the macro breakdown guessed for one meal description.
type Estimate struct {
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	Confidence string  `json:"confidence"`
	Source     string  `json:"source"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Estimator produces nutrition estimates for meal descriptions. Batch
// results come back in input order, one estimate per description.
type Estimator interface {
	Estimate(ctx context.Context, description, hint string) (*Estimate, error)
	EstimateBatch(ctx context.Context, descriptions []string, hint string) ([]*Estimate, error)
}
