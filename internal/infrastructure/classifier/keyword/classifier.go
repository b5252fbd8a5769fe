// Package keyword classifies extracted text against the category taxonomy
// using exact keyword containment first and token-set fuzzy matching as a
// fallback. Identical OCR output recurs across retries, so verdicts are
// memoized keyed on the text itself.
package keyword

import (
	"container/list"
	"strings"
	"sync"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

const (
	// Matching beyond this many characters adds noise, not signal.
	matchTextLimit = 2000

	defaultMemoSize = 512
)

type Classifier struct {
	order    []domain.Category
	keywords map[domain.Category][]string
	minScore float64

	mu    sync.Mutex
	memo  map[string]*list.Element
	evict *list.List
	cap   int
}

type memoEntry struct {
	text   string
	result domain.Classification
}

// New builds a classifier over the given keyword table. Keywords are
// expected lowercase (config.LoadKeywords normalizes). minScore is the
// fuzzy acceptance floor on the 0-100 scale.
func New(keywords map[domain.Category][]string, minScore float64) *Classifier {
	return &Classifier{
		order:    domain.Categories(),
		keywords: keywords,
		minScore: minScore,
		memo:     make(map[string]*list.Element, defaultMemoSize),
		evict:    list.New(),
		cap:      defaultMemoSize,
	}
}

func (c *Classifier) Classify(text string) domain.Classification {
	if strings.TrimSpace(text) == "" {
		return domain.Classification{Category: domain.CategoryUnclassified}
	}

	c.mu.Lock()
	if el, ok := c.memo[text]; ok {
		c.evict.MoveToFront(el)
		result := el.Value.(*memoEntry).result
		c.mu.Unlock()
		return result
	}
	c.mu.Unlock()

	result := c.classify(text)

	c.mu.Lock()
	if _, ok := c.memo[text]; !ok {
		if c.evict.Len() >= c.cap {
			oldest := c.evict.Back()
			delete(c.memo, oldest.Value.(*memoEntry).text)
			c.evict.Remove(oldest)
		}
		c.memo[text] = c.evict.PushFront(&memoEntry{text: text, result: result})
	}
	c.mu.Unlock()

	return result
}

func (c *Classifier) classify(text string) domain.Classification {
	normalized := strings.ToLower(text)
	// Cut by runes, not bytes; Cyrillic text would otherwise lose half the
	// window and could end in a split code point.
	if runes := []rune(normalized); len(runes) > matchTextLimit {
		normalized = string(runes[:matchTextLimit])
	}

	// Phase 1: exact containment in fixed category order, first hit wins.
	for _, category := range c.order {
		for _, kw := range c.keywords[category] {
			if strings.Contains(normalized, kw) {
				return domain.Classification{Category: category}
			}
		}
	}

	// Phase 2: global best token-set ratio, ties broken by category order.
	best := domain.CategoryUnclassified
	bestScore := 0.0
	for _, category := range c.order {
		for _, kw := range c.keywords[category] {
			score := float64(fuzzy.TokenSetRatio(kw, normalized))
			if score > bestScore {
				bestScore = score
				best = category
			}
		}
	}

	if bestScore < c.minScore {
		return domain.Classification{Category: domain.CategoryUnclassified}
	}
	return domain.Classification{Category: best, FuzzyScore: &bestScore}
}
