package resolve

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		match *Match
		want  Decision
	}{
		{"no match creates new", nil, DecisionCreateNew},
		{"alias links", &Match{MatchedVia: ViaAlias, Confidence: 1.0}, DecisionLinkExisting},
		{"shorthand links", &Match{MatchedVia: ViaShorthand, Confidence: 1.0}, DecisionLinkExisting},
		{"exact name links", &Match{MatchedVia: ViaName, Confidence: 1.0}, DecisionLinkExisting},
		{"partial name needs review", &Match{MatchedVia: ViaPartialName, Confidence: 0.9}, DecisionNeedsReview},
		{"address needs review", &Match{MatchedVia: ViaPartialAddress, Confidence: 0.9}, DecisionNeedsReview},
		{"street at threshold needs review", &Match{MatchedVia: ViaStreet, Confidence: 0.8}, DecisionNeedsReview},
		{"below threshold creates new", &Match{Confidence: 0.5}, DecisionCreateNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.match); got != tt.want {
				t.Errorf("Decide(%+v) = %s, want %s", tt.match, got, tt.want)
			}
		})
	}
}
