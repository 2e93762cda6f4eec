package scoring

import (
	"math"
	"testing"

	"github.com/mindmate-health/mindmate/internal/store"
)

func TestOverall(t *testing.T) {
	cases := []struct {
		name   string
		scores []store.CognitiveTestScore
		want   float64
		wantOK bool
	}{
		{
			name: "two tests",
			scores: []store.CognitiveTestScore{
				{Test: "recall", Score: 8, MaxScore: 10},
				{Test: "naming", Score: 5, MaxScore: 10},
			},
			want:   65.0,
			wantOK: true,
		},
		{
			name: "single perfect",
			scores: []store.CognitiveTestScore{
				{Test: "recall", Score: 10, MaxScore: 10},
			},
			want:   100.0,
			wantOK: true,
		},
		{
			name: "mixed max scores",
			scores: []store.CognitiveTestScore{
				{Test: "recall", Score: 3, MaxScore: 4},
				{Test: "orientation", Score: 1, MaxScore: 2},
			},
			want:   62.5,
			wantOK: true,
		},
		{
			name:   "empty yields no value",
			scores: nil,
			wantOK: false,
		},
		{
			// Unclamped by contract: callers keep scores within max via Validate.
			name: "above max is not clamped",
			scores: []store.CognitiveTestScore{
				{Test: "bonus", Score: 12, MaxScore: 10},
			},
			want:   120.0,
			wantOK: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Overall(tc.scores)
			if ok != tc.wantOK {
				t.Fatalf("Overall() ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Overall() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	err := Validate([]store.CognitiveTestScore{{Test: "recall", Score: 5, MaxScore: 0}})
	if err == nil {
		t.Fatalf("Validate() accepted zero max_score")
	}

	err = Validate([]store.CognitiveTestScore{{Test: "recall", Score: -1, MaxScore: 10}})
	if err == nil {
		t.Fatalf("Validate() accepted negative score")
	}

	err = Validate([]store.CognitiveTestScore{{Test: "recall", Score: 5, MaxScore: 10}})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	if err := Validate(nil); err != nil {
		t.Fatalf("Validate(nil) error = %v, want nil", err)
	}
}
