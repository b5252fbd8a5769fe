package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const maxNameComponent = 50

// StoredName is the metadata a stored filename encodes:
// {sanitizedName}_{sanitizedLastname}_{Category}_{index}_{uuid}.{ext}
// Other tooling relies on this shape; anything that does not parse is
// foreign and ignored by listing and lookup.
type StoredName struct {
	ID       string
	Category Category
	Name     string
	Index    int
}

// SanitizeName reduces an applicant-supplied component to filename-safe
// characters, bounded in length. Empty results fall back to "anon".
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё',
			r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	safe := b.String()
	for strings.Contains(safe, "__") {
		safe = strings.ReplaceAll(safe, "__", "_")
	}
	safe = strings.Trim(safe, "_")
	if runes := []rune(safe); len(runes) > maxNameComponent {
		safe = string(runes[:maxNameComponent])
	}
	if safe == "" {
		return "anon"
	}
	return safe
}

func BuildStoredName(name, lastname string, category Category, index int, id, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%d_%s%s",
		SanitizeName(name), SanitizeName(lastname), category, index, id, ext)
}

// ParseStoredName is the strict reverse parser. It anchors on the trailing
// uuid and index and the category against the closed taxonomy; the
// remaining prefix is the sanitized applicant name, which may itself
// contain underscores.
func ParseStoredName(filename string) (*StoredName, bool) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	parts := strings.Split(stem, "_")
	if len(parts) < 5 {
		return nil, false
	}

	rawID := parts[len(parts)-1]
	if _, err := uuid.Parse(rawID); err != nil {
		return nil, false
	}

	index, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || index < 1 {
		return nil, false
	}

	category, ok := ParseCategory(parts[len(parts)-3])
	if !ok || category == CategoryUnclassified {
		return nil, false
	}

	name := strings.Join(parts[:len(parts)-3], "_")
	if name == "" {
		return nil, false
	}

	return &StoredName{ID: rawID, Category: category, Name: name, Index: index}, true
}
