package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

func TestFormatOpportunity(t *testing.T) {
	opp := domain.Opportunity{
		ID:         "8b2d",
		SetID:      "ev1:m1",
		EventID:    "ev1",
		EventTitle: "Lakers vs. Celtics",
		SetLabel:   "Lakers vs. Celtics",
		Legs: []domain.OpportunityLeg{
			{TokenID: "tok-a", Label: "Lakers", BestAsk: 0.48},
			{TokenID: "tok-b", Label: "Celtics", BestAsk: 0.49},
		},
		Sum:        0.97,
		Threshold:  0.98,
		Margin:     0.01,
		DetectedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}

	title, message := FormatOpportunity(opp)

	if title != "Arb: Lakers vs. Celtics" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"Lakers @ 0.480",
		"Celtics @ 0.490",
		"cost 0.9700",
		"margin 0.0100",
		"2026-08-28 12:00:00",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}
}
