package domain

// OutcomeSet is the unit the arb detector watches: an ordered set of outcomes
// belonging to one event that are jointly exhaustive and mutually exclusive.
// The invariant comes from market metadata (kind, neg-risk partition roles),
// never from inference over labels. Every set has at least two members.
type OutcomeSet struct {
	// ID is stable across discovery cycles for the same logical grouping so
	// the watch-set diff can tell new sets from already-subscribed ones.
	ID         string
	EventID    string
	EventTitle string
	// Label describes the grouping for logs and notifications, e.g. the
	// market question for a single-market set or "<event>: moneyline" for a
	// paired sibling partition.
	Label    string
	Outcomes []Outcome
}

// TokenIDs returns the set's token ids in outcome order.
func (s OutcomeSet) TokenIDs() []string {
	ids := make([]string, len(s.Outcomes))
	for i, o := range s.Outcomes {
		ids[i] = o.TokenID
	}
	return ids
}
