package travel

import (
	"sort"
	"sync"

	"github.com/DeafMist/travel-guide/backend/internal/metrics"
)

// Cache holds every article seen so far, grouped by identifier and keyed by
// language. Entries are never evicted.
type Cache struct {
	mu    sync.RWMutex
	items map[cacheKey]map[string]*Article
}

// NewCache creates an empty article cache.
func NewCache() *Cache {
	return &Cache{items: make(map[cacheKey]map[string]*Article)}
}

// Put stores the language versions of one article. Versions already cached
// are kept so that attached geometry survives repeated reads. It returns the
// identifier the entry is stored under.
func (c *Cache) Put(articles map[string]*Article) (Identifier, bool) {
	var id Identifier
	found := false
	for _, lang := range sortedLangs(articles) {
		id = articles[lang].Identifier()
		found = true
		break
	}
	if !found {
		return Identifier{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := id.key()
	entry, ok := c.items[k]
	if !ok {
		entry = make(map[string]*Article, len(articles))
		c.items[k] = entry
	}
	for lang, a := range articles {
		if _, exists := entry[lang]; !exists {
			entry[lang] = a
		}
	}
	return id, true
}

// Get returns the cached article for id in lang and whether any language
// version of id is cached at all. An empty lang selects "en" when present,
// else the first language in sort order. A missing lang falls back to the
// language-less version.
func (c *Cache) Get(id Identifier, lang string) (*Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[id.key()]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()

	if lang == "" {
		if a, ok := entry[routeLang]; ok {
			return a, true
		}
		for _, l := range sortedLangs(entry) {
			return entry[l], true
		}
		return nil, true
	}
	if a, ok := entry[lang]; ok {
		return a, true
	}
	return entry[""], true
}

// Langs lists the cached languages of id, sorted.
func (c *Cache) Langs(id Identifier) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedLangs(c.items[id.key()])
}

// FindByTitle returns the identifier of any cached article titled title.
func (c *Cache) FindByTitle(title string) (Identifier, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.items {
		for _, a := range entry {
			if a.Title == title {
				return a.Identifier(), true
			}
		}
	}
	return Identifier{}, false
}

// Len returns the number of cached articles, counting every language.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.items {
		n += len(entry)
	}
	return n
}

func sortedLangs(m map[string]*Article) []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
