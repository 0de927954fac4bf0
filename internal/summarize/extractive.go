package summarize

import (
	"math"
	"sort"
	"strings"
)

// keyBoosts raises the rank of sentences mentioning significant findings in
// the extractive fallback.
var keyBoosts = map[string]float64{
	"pneumonia":     1.6,
	"hemorrhage":    1.8,
	"malignant":     1.7,
	"mass":          1.5,
	"effusion":      1.4,
	"cardiomegaly":  1.4,
	"consolidation": 1.5,
	"fracture":      1.6,
	"ischemia":      1.7,
	"embolism":      1.8,
}

// extractiveSummary selects the top sentences by a position-decayed length
// score with keyword boosts, preserving none of the model dependencies.
func extractiveSummary(text string, maxSents int) string {
	sents := splitSentences(text)
	kept := sents[:0]
	for _, s := range sents {
		if len(s) > 3 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return text
	}

	type scored struct {
		score float64
		text  string
	}
	ranked := make([]scored, 0, len(kept))
	for i, s := range kept {
		base := math.Log(float64(len(strings.Fields(s))) + 1)
		pos := 1.0 / (1.0 + float64(i)*0.15)
		boost := 1.0
		lower := strings.ToLower(s)
		for k, wt := range keyBoosts {
			if strings.Contains(lower, k) {
				boost += wt * 0.15
			}
		}
		ranked = append(ranked, scored{score: base * pos * boost, text: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxSents {
		ranked = ranked[:maxSents]
	}

	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.text)
	}
	return strings.Join(out, " ")
}
