package domain

import "time"

// OpportunityLeg is the per-outcome price snapshot inside an opportunity.
type OpportunityLeg struct {
	TokenID string  `json:"token_id"`
	Label   string  `json:"label"`
	BestAsk float64 `json:"best_ask"`
}

// Opportunity is emitted by the detector when the sum of best asks across an
// outcome set drops below the profit threshold. It is immutable once created:
// sinks consume and discard it, the audit store appends it, nothing updates it.
type Opportunity struct {
	ID         string           `json:"id"`
	SetID      string           `json:"set_id"`
	EventID    string           `json:"event_id"`
	EventTitle string           `json:"event_title"`
	SetLabel   string           `json:"set_label"`
	Legs       []OpportunityLeg `json:"legs"`
	Sum        float64          `json:"sum"`
	Threshold  float64          `json:"threshold"`
	Margin     float64          `json:"margin"` // threshold - sum
	DetectedAt time.Time        `json:"detected_at"`
}
