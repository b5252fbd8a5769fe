package keyword

import (
	"strings"
	"testing"

	"github.com/Meirbek-dev/ai-reception/internal/config"
	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	keywords, err := config.LoadKeywords("")
	if err != nil {
		t.Fatalf("load default keywords: %v", err)
	}
	return New(keywords, 60)
}

func TestExactKeywordHitWinsWithoutFuzzyScore(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("Служебное УДОСТОВЕРЕНИЕ гражданина номер 123")
	if got.Category != domain.CategoryUdostoverenie {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryUdostoverenie)
	}
	if got.FuzzyScore != nil {
		t.Fatalf("exact match must carry nil fuzzy score, got %v", *got.FuzzyScore)
	}
}

func TestExactMatchIsCaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("ДИПЛОМ о высшем образовании")
	if got.Category != domain.CategoryDiplom {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryDiplom)
	}
}

func TestFirstCategoryInOrderWinsContainmentTies(t *testing.T) {
	c := newTestClassifier(t)

	// Both Udostoverenie ("удостоверение") and MedSpravka ("справка")
	// keywords appear; the fixed iteration order decides.
	got := c.Classify("удостоверение и медицинская справка")
	if got.Category != domain.CategoryUdostoverenie {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryUdostoverenie)
	}
}

func TestFuzzyFallbackCarriesScore(t *testing.T) {
	c := newTestClassifier(t)

	// Token overlap without an exact substring hit.
	got := c.Classify("баллы набранные тестируемым лицом итого 87")
	if got.Category != domain.CategoryENT {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryENT)
	}
	if got.FuzzyScore == nil {
		t.Fatal("fuzzy match must carry a score")
	}
	if *got.FuzzyScore < 60 || *got.FuzzyScore > 100 {
		t.Fatalf("fuzzy score out of range: %v", *got.FuzzyScore)
	}
}

func TestLowScoreFallsBackToUnclassified(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("quarterly revenue projections fiscal year twenty")
	if got.Category != domain.CategoryUnclassified {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryUnclassified)
	}
	if got.FuzzyScore != nil {
		t.Fatal("unclassified result must carry nil fuzzy score")
	}
}

func TestEmptyTextIsUnclassified(t *testing.T) {
	c := newTestClassifier(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		if got := c.Classify(text); got.Category != domain.CategoryUnclassified {
			t.Fatalf("Classify(%q) = %s, want Unclassified", text, got.Category)
		}
	}
}

func TestMatchWindowCountsRunesNotBytes(t *testing.T) {
	c := newTestClassifier(t)

	// 1500 Cyrillic filler runes are ~3000 bytes; a byte-sliced window would
	// cut before the keyword ever appears.
	filler := strings.Repeat("ы", 1500)
	got := c.Classify(filler + " диплом бакалавра")
	if got.Category != domain.CategoryDiplom {
		t.Fatalf("category = %s, want %s", got.Category, domain.CategoryDiplom)
	}

	// A keyword past the rune window is out of scope.
	far := strings.Repeat("ы", matchTextLimit) + " диплом"
	if got := c.Classify(far); got.Category == domain.CategoryDiplom {
		t.Fatal("keyword beyond the match window must not hit exactly")
	}
}

func TestClassifyIsDeterministicAndMemoized(t *testing.T) {
	c := newTestClassifier(t)

	text := "сертификат о результатах тестирования"
	first := c.Classify(text)
	second := c.Classify(text)
	if first.Category != second.Category {
		t.Fatalf("verdict changed between calls: %s vs %s", first.Category, second.Category)
	}

	c.mu.Lock()
	_, cached := c.memo[text]
	c.mu.Unlock()
	if !cached {
		t.Fatal("expected verdict to be memoized")
	}
}

func TestMemoStaysBounded(t *testing.T) {
	c := newTestClassifier(t)
	c.cap = 8

	for i := 0; i < 50; i++ {
		c.Classify("перебор текстов номер " + strings.Repeat("x", i+1))
	}

	c.mu.Lock()
	size := len(c.memo)
	c.mu.Unlock()
	if size > 8 {
		t.Fatalf("memo grew past cap: %d", size)
	}
}
