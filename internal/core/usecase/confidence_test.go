package usecase

import (
	"testing"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

func TestScoreExactHitLongText(t *testing.T) {
	cfg := DefaultScorerConfig()

	got := cfg.Score(domain.Classification{Category: domain.CategoryDiplom}, 500)
	if got != 0.95 {
		t.Fatalf("score = %v, want 0.95", got)
	}
}

func TestScoreFuzzyHitScalesWithRatio(t *testing.T) {
	cfg := DefaultScorerConfig()

	score := func(ratio float64) float64 {
		return cfg.Score(domain.Classification{
			Category:   domain.CategoryENT,
			FuzzyScore: &ratio,
		}, 500)
	}

	if got := score(100); got != 0.9 {
		t.Fatalf("perfect fuzzy score = %v, want 0.9", got)
	}
	if got := score(60); got != 0.78 {
		t.Fatalf("minimum fuzzy score = %v, want 0.78", got)
	}
	if score(80) <= score(60) {
		t.Fatal("higher ratio must not score lower")
	}
}

func TestScoreShortTextPenalties(t *testing.T) {
	cfg := DefaultScorerConfig()
	cls := domain.Classification{Category: domain.CategoryUdostoverenie}

	cases := []struct {
		textLen int
		want    float64
	}{
		{10, 0.475},  // below 50 runes, halved
		{100, 0.713}, // below 150 runes
		{200, 0.855}, // below 300 runes
		{300, 0.95},  // full score from 300 runes on
	}
	for _, tc := range cases {
		if got := cfg.Score(cls, tc.textLen); got != tc.want {
			t.Errorf("Score(len=%d) = %v, want %v", tc.textLen, got, tc.want)
		}
	}
}

func TestScoreUnclassifiedIsZero(t *testing.T) {
	cfg := DefaultScorerConfig()

	if got := cfg.Score(domain.Classification{Category: domain.CategoryUnclassified}, 1000); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestRouteStatusThresholdBoundary(t *testing.T) {
	cfg := DefaultScorerConfig()

	if got := cfg.RouteStatus(0.9); got != domain.StatusUploaded {
		t.Fatalf("at threshold: %q, want uploaded", got)
	}
	if got := cfg.RouteStatus(0.899); got != domain.StatusQueued {
		t.Fatalf("below threshold: %q, want queued", got)
	}
	if got := cfg.RouteStatus(0); got != domain.StatusQueued {
		t.Fatalf("zero confidence: %q, want queued", got)
	}
}
