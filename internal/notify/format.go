package notify

import (
	"fmt"
	"strings"

	"github.com/rmarchant/polyscout/internal/domain"
)

// EventOpportunity is the event type under which detected arbitrage
// opportunities are dispatched.
const EventOpportunity = "opportunity"

// FormatOpportunity renders an opportunity as a notification title and body.
// The body lists one line per leg plus the basket cost and locked-in margin.
func FormatOpportunity(opp domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Arb: %s", opp.EventTitle)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", opp.SetLabel)
	for _, leg := range opp.Legs {
		fmt.Fprintf(&b, "  %s @ %.3f\n", leg.Label, leg.BestAsk)
	}
	fmt.Fprintf(&b, "cost %.4f | threshold %.4f | margin %.4f\n", opp.Sum, opp.Threshold, opp.Margin)
	fmt.Fprintf(&b, "detected %s", opp.DetectedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	return title, b.String()
}
