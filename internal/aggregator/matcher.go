package aggregator

import (
	"sort"
	"strings"

	"github.com/kswift/oreotrends/internal/keywords"
	"github.com/kswift/oreotrends/internal/models"
)

// Matcher scans item text for keyword mentions. Matching is case-insensitive
// substring search over canonical names and aliases. Within a category,
// overlapping occurrences resolve longest-alias-wins ("Oreo Double Stuf" does
// not also count as "Oreo Original" via the bare "oreo" alias), and each
// canonical keyword fires at most once per item. Categories are matched
// independently, so "Oreo Golden" can produce both a product and a flavor
// mention from the same span.
type Matcher struct {
	terms map[models.Category][]term
}

type term struct {
	text      string // lowercased
	canonical string
}

// Mention is one matched canonical keyword in one text.
type Mention struct {
	Category models.Category
	Keyword  string
}

// NewMatcher precomputes the lowercased term table from the keyword set.
func NewMatcher(set *keywords.Set) *Matcher {
	m := &Matcher{terms: make(map[models.Category][]term)}
	for _, cat := range models.Categories() {
		for _, kw := range set.Category(cat) {
			for _, t := range kw.Terms() {
				m.terms[cat] = append(m.terms[cat], term{text: t, canonical: kw.Canonical})
			}
		}
		// Longer terms first so the overlap sweep prefers them.
		sort.SliceStable(m.terms[cat], func(i, j int) bool {
			return len(m.terms[cat][i].text) > len(m.terms[cat][j].text)
		})
	}
	return m
}

type span struct {
	start, end int
	canonical  string
}

// Match returns the mentions found in text, at most one per canonical
// keyword per category, in deterministic order.
func (m *Matcher) Match(text string) []Mention {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var mentions []Mention
	for _, cat := range models.Categories() {
		var kept []span
		for _, t := range m.terms[cat] {
			for _, s := range occurrences(lower, t.text) {
				if overlapsAny(s, kept) {
					continue
				}
				kept = append(kept, span{start: s.start, end: s.end, canonical: t.canonical})
			}
		}

		seen := make(map[string]bool, len(kept))
		var names []string
		for _, s := range kept {
			if !seen[s.canonical] {
				seen[s.canonical] = true
				names = append(names, s.canonical)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			mentions = append(mentions, Mention{Category: cat, Keyword: name})
		}
	}
	return mentions
}

func occurrences(text, sub string) []span {
	var spans []span
	for from := 0; ; {
		i := strings.Index(text[from:], sub)
		if i < 0 {
			break
		}
		start := from + i
		spans = append(spans, span{start: start, end: start + len(sub)})
		from = start + len(sub)
	}
	return spans
}

func overlapsAny(s span, kept []span) bool {
	for _, k := range kept {
		if s.start < k.end && k.start < s.end {
			return true
		}
	}
	return false
}
