package waste

import (
	"fmt"
	"strings"
)

// Category identifies one kind of collected material.
type Category string

const (
	CategoryBurnable       Category = "burnable"
	CategoryBottlesPlastic Category = "bottles-plastic"
	CategoryCansMetal      Category = "cans-metal"
	CategoryPETBottles     Category = "pet-bottles"
)

// AllCategories lists every category in canonical display order. Evaluation
// results and normalized collection sets follow this order.
var AllCategories = []Category{
	CategoryBurnable,
	CategoryBottlesPlastic,
	CategoryCansMetal,
	CategoryPETBottles,
}

var categoryLabels = map[Category]string{
	CategoryBurnable:       "可燃ごみ",
	CategoryBottlesPlastic: "びん類・プラスチック類",
	CategoryCansMetal:      "缶・金属類・その他",
	CategoryPETBottles:     "ペットボトル",
}

// Label returns the human-readable display name of the category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// IsValid reports whether c is one of the defined categories.
func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory converts a stable identifier into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown waste category: %q", s)
	}
	return c, nil
}

// NormalizeSet removes duplicates from a collection set, preserving the order
// of first occurrence.
func NormalizeSet(categories []Category) []Category {
	seen := make(map[Category]bool, len(categories))
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// JoinLabels renders a collection set for display, e.g. in a reminder body.
func JoinLabels(categories []Category) string {
	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, c.Label())
	}
	return strings.Join(labels, "、")
}
