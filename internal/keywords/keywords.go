// Package keywords holds the static product/flavor keyword configuration the
// aggregator matches against. A Set is loaded once at startup and read-only
// afterwards.
package keywords

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kswift/oreotrends/internal/models"
)

// Keyword is one tracked term: the canonical display name plus any aliases
// that resolve to it. Matching is case-insensitive, so casing here is only
// cosmetic.
type Keyword struct {
	Canonical string   `yaml:"name" json:"name"`
	Aliases   []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Terms returns the canonical name and all aliases, lowercased.
func (k Keyword) Terms() []string {
	terms := make([]string, 0, len(k.Aliases)+1)
	terms = append(terms, strings.ToLower(k.Canonical))
	for _, a := range k.Aliases {
		terms = append(terms, strings.ToLower(a))
	}
	return terms
}

// Set is the immutable keyword configuration: per-category keyword lists plus
// the alias table version they were loaded from.
type Set struct {
	version    int
	byCategory map[models.Category][]Keyword
}

type fileSchema struct {
	Version  int       `yaml:"version"`
	Products []Keyword `yaml:"products"`
	Flavors  []Keyword `yaml:"flavors"`
}

// New builds and validates a Set.
func New(version int, products, flavors []Keyword) (*Set, error) {
	s := &Set{
		version: version,
		byCategory: map[models.Category][]Keyword{
			models.CategoryProduct: products,
			models.CategoryFlavor:  flavors,
		},
	}
	for _, cat := range models.Categories() {
		if len(s.byCategory[cat]) == 0 {
			return nil, fmt.Errorf("keywords: category %q is empty", cat)
		}
		seen := make(map[string]string)
		for _, kw := range s.byCategory[cat] {
			if strings.TrimSpace(kw.Canonical) == "" {
				return nil, fmt.Errorf("keywords: category %q has a keyword with an empty name", cat)
			}
			for _, term := range kw.Terms() {
				if prev, dup := seen[term]; dup && prev != kw.Canonical {
					return nil, fmt.Errorf("keywords: alias %q in category %q maps to both %q and %q", term, cat, prev, kw.Canonical)
				}
				seen[term] = kw.Canonical
			}
		}
	}
	return s, nil
}

// Load reads a Set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keywords: read %s: %w", path, err)
	}
	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keywords: parse %s: %w", path, err)
	}
	return New(f.Version, f.Products, f.Flavors)
}

// Version reports the alias table version the set was loaded from.
func (s *Set) Version() int {
	return s.version
}

// Category returns the keywords tracked under the given category.
func (s *Set) Category(cat models.Category) []Keyword {
	return s.byCategory[cat]
}

// Canonicals returns the sorted canonical names of a category.
func (s *Set) Canonicals(cat models.Category) []string {
	names := make([]string, 0, len(s.byCategory[cat]))
	for _, kw := range s.byCategory[cat] {
		names = append(names, kw.Canonical)
	}
	sort.Strings(names)
	return names
}

// SearchQuery derives the platform search query from the product list:
// every product name and alias, OR-joined, multi-word terms quoted.
func (s *Set) SearchQuery() string {
	seen := make(map[string]bool)
	var terms []string
	for _, kw := range s.byCategory[models.CategoryProduct] {
		for _, term := range kw.Terms() {
			if seen[term] {
				continue
			}
			seen[term] = true
			if strings.ContainsRune(term, ' ') {
				term = `"` + term + `"`
			}
			terms = append(terms, term)
		}
	}
	return strings.Join(terms, " OR ")
}
