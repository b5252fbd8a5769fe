package usecase

import (
	"math"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

// ScorerConfig controls how a classifier verdict becomes a confidence
// value and where the auto-accept line sits.
type ScorerConfig struct {
	ExactBase float64
	FuzzyBase float64
	FuzzySpan float64
	Threshold float64
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ExactBase: 0.95,
		FuzzyBase: 0.6,
		FuzzySpan: 0.3,
		Threshold: 0.9,
	}
}

// Text shorter than these rune counts gives the classifier less to work
// with, so the score is discounted in steps.
const (
	shortTextLimit  = 50
	mediumTextLimit = 150
	longTextLimit   = 300
)

// Score converts a classification into a confidence in [0,1], rounded to
// three decimals. Exact keyword hits score higher than fuzzy ones, and
// short extracted text drags the score down.
func (c ScorerConfig) Score(cls domain.Classification, textLen int) float64 {
	if cls.Category == domain.CategoryUnclassified {
		return 0
	}

	base := c.ExactBase
	if cls.FuzzyScore != nil {
		base = c.FuzzyBase + (*cls.FuzzyScore/100)*c.FuzzySpan
	}

	switch {
	case textLen < shortTextLimit:
		base *= 0.5
	case textLen < mediumTextLimit:
		base *= 0.75
	case textLen < longTextLimit:
		base *= 0.9
	}

	return math.Round(base*1000) / 1000
}

// RouteStatus decides whether a scored document is accepted outright or
// queued for human review.
func (c ScorerConfig) RouteStatus(confidence float64) domain.DocumentStatus {
	if confidence >= c.Threshold {
		return domain.StatusUploaded
	}
	return domain.StatusQueued
}
