// Package scoring holds the one overall-score aggregation every call site
// depends on. Handlers and the analysis pipeline must not reimplement it.
package scoring

import (
	"fmt"

	"github.com/mindmate-health/mindmate/internal/store"
)

// Overall returns the arithmetic mean of score/max_score*100 across the
// sequence. The boolean is false for an empty sequence: no score is not a
// zero score. The result is not clamped to [0,100]; callers enforce
// score <= max_score through Validate if they need that range.
func Overall(scores []store.CognitiveTestScore) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	var sum float64
	for _, t := range scores {
		sum += t.Score / t.MaxScore * 100
	}
	return sum / float64(len(scores)), true
}

// Validate rejects score lists that must never reach Overall: a zero or
// negative max_score would divide by zero there.
func Validate(scores []store.CognitiveTestScore) error {
	for i, t := range scores {
		if t.MaxScore <= 0 {
			return fmt.Errorf("cognitive_test_scores[%d] (%q): max_score must be positive, got %v", i, t.Test, t.MaxScore)
		}
		if t.Score < 0 {
			return fmt.Errorf("cognitive_test_scores[%d] (%q): score must not be negative, got %v", i, t.Test, t.Score)
		}
	}
	return nil
}
