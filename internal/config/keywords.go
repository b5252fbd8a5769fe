package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

// LoadKeywords returns the keyword table for the classifier. With an empty
// path the built-in table is used; otherwise the YAML file fully replaces
// the defaults for the categories it names. Keywords are lowercased here so
// the classifier can compare without re-normalizing.
func LoadKeywords(path string) (map[domain.Category][]string, error) {
	table := domain.DefaultKeywords()
	if path == "" {
		return lowered(table), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}

	var parsed map[string][]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse keywords file: %w", err)
	}

	for name, keywords := range parsed {
		category, ok := domain.ParseCategory(name)
		if !ok || category == domain.CategoryUnclassified {
			return nil, fmt.Errorf("keywords file: unknown category %q", name)
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("keywords file: category %q has no keywords", name)
		}
		table[category] = keywords
	}

	return lowered(table), nil
}

func lowered(table map[domain.Category][]string) map[domain.Category][]string {
	out := make(map[domain.Category][]string, len(table))
	for category, keywords := range table {
		lc := make([]string, len(keywords))
		for i, kw := range keywords {
			lc[i] = strings.ToLower(kw)
		}
		out[category] = lc
	}
	return out
}
