package travel

import (
	"context"
	"slices"

	"github.com/DeafMist/travel-guide/backend/internal/processing"
)

const (
	partOfSeparator   = ","
	parentOfSeparator = ";"
)

// PartOfChain parses the part-of relation of a into the header chain,
// outermost region first. The aggregated relation is preferred.
func PartOfChain(a *Article) []string {
	raw := a.AggregatedPartOf
	if raw == "" {
		raw = a.IsPartOf
	}
	parts := processing.SplitRelation(raw, partOfSeparator)
	if len(parts) > 1 {
		slices.Reverse(parts)
	}
	return parts
}

// BuildNavigationTree returns one entry per resolvable header of a: its
// part-of chain followed by a itself when it has children. Children are
// ordered by title.
func (r *Repository) BuildNavigationTree(ctx context.Context, a *Article) []NavigationEntry {
	if a == nil || a.Lang == "" || a.Title == "" {
		return nil
	}

	var headers []string
	if parts := PartOfChain(a); len(parts) > 0 {
		for _, p := range parts {
			if !slices.Contains(headers, p) {
				headers = append(headers, p)
			}
		}
		if a.IsParentOf != "" && !slices.Contains(headers, a.Title) {
			headers = append(headers, a.Title)
		}
	}
	if len(headers) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	children := make(map[string][]SearchResult, len(headers))
	headerObjs := make(map[string]SearchResult, len(headers))
	for _, header := range headers {
		parent := r.parentByTitle(ctx, header, a.Lang)
		if parent == nil {
			continue
		}
		list := []SearchResult{}
		for _, child := range processing.SplitRelation(parent.IsParentOf, parentOfSeparator) {
			res := SearchResult{Title: child, Langs: []string{a.Lang}}
			list = append(list, res)
			if slices.Contains(headers, child) {
				headerObjs[child] = res
			}
		}
		children[header] = list
	}

	out := make([]NavigationEntry, 0, len(children))
	for _, header := range headers {
		list, ok := children[header]
		if !ok {
			continue
		}
		r.sortResults(list)
		h, ok := headerObjs[header]
		if !ok {
			h = SearchResult{Title: header}
		}
		out = append(out, NavigationEntry{Header: h, Children: list})
	}
	return out
}

// parentByTitle reads the article titled title without caching it.
// Callers hold r.mu.
func (r *Repository) parentByTitle(ctx context.Context, title, lang string) *Article {
	for _, src := range r.provider.Sources() {
		if hit := r.exactTitle(ctx, src, title, lang, nil, "navigation"); hit != nil {
			return r.reader.ReadArticle(src.File(), hit, lang)
		}
	}
	return nil
}
