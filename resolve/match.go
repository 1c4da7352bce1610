package resolve

// Decision is the per-entity outcome of matching an extracted entity
// against the resolver.
type Decision string

const (
	// DecisionLinkExisting attaches the extracted entity to the
	// resolved canonical record.
	DecisionLinkExisting Decision = "link_existing"
	// DecisionCreateNew inserts a fresh canonical record.
	DecisionCreateNew Decision = "create_new"
	// DecisionNeedsReview creates a record but flags it for human
	// confirmation before the link is trusted.
	DecisionNeedsReview Decision = "needs_review"
)

// reviewThreshold is the confidence floor for a match that is worth
// surfacing to a human instead of being discarded.
const reviewThreshold = 0.8

// Decide maps a resolver result to a decision. Exact matches
// (confidence 1.0) link automatically. Moderate matches (partial name,
// address, or street) still create a record so nothing is lost, but
// flag it: auto-linking on weak evidence silently merges unrelated
// real-world entities, while never linking duplicates records on every
// re-ingestion. A miss creates a new record.
func Decide(m *Match) Decision {
	switch {
	case m == nil:
		return DecisionCreateNew
	case m.Confidence >= 1.0:
		return DecisionLinkExisting
	case m.Confidence >= reviewThreshold:
		return DecisionNeedsReview
	default:
		return DecisionCreateNew
	}
}
