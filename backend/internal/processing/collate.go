package processing

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// Collator compares strings in locale order.
type Collator interface {
	Compare(a, b string) int
}

// PrimaryCollator ignores case and diacritics. It is safe for concurrent use.
type PrimaryCollator struct {
	mu sync.Mutex
	c  *collate.Collator
}

// NewPrimaryCollator builds a collator for the given BCP 47 language; unknown tags fall back to root order.
func NewPrimaryCollator(lang string) *PrimaryCollator {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return &PrimaryCollator{c: collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics)}
}

// Compare implements Collator.
func (p *PrimaryCollator) Compare(a, b string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.CompareString(a, b)
}

// Matcher decides whether a name matches the user query.
type Matcher interface {
	Matches(name string) bool
}

// MatcherFactory builds a Matcher for one query.
type MatcherFactory func(query string) Matcher

// StartsFromSpace matches names where the query begins the name or any of its words,
// ignoring case and diacritics.
type StartsFromSpace struct {
	query string
	m     *search.Matcher
}

// NewStartsFromSpace creates the matcher for query.
func NewStartsFromSpace(query string) Matcher {
	return &StartsFromSpace{
		query: strings.TrimSpace(query),
		m:     search.New(language.Und, search.IgnoreCase, search.IgnoreDiacritics),
	}
}

// Matches implements Matcher.
func (s *StartsFromSpace) Matches(name string) bool {
	if s.query == "" {
		return true
	}
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if i > 0 && name[i-1] != ' ' {
			continue
		}
		if start, _ := s.m.IndexString(name[i:], s.query, search.Anchor); start == 0 {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any of the names match.
func MatchesAny(m Matcher, names ...string) bool {
	for _, n := range names {
		if m.Matches(n) {
			return true
		}
	}
	return false
}
