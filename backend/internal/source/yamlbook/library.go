package yamlbook

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DeafMist/travel-guide/backend/internal/source"
)

// Library is a source.Provider over the travel books found in a directory.
// Books that fail to parse are logged and skipped.
type Library struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	books []source.Source
}

// NewLibrary creates a library rooted at dir. Call Reload to load books.
func NewLibrary(dir string, log *slog.Logger) *Library {
	if log == nil {
		log = slog.Default()
	}
	return &Library{dir: dir, log: log}
}

// Reload rescans the directory and replaces the available books.
// It returns the number of books loaded.
func (l *Library) Reload() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.swap(nil)
			return 0, nil
		}
		return 0, fmt.Errorf("scan travel books: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	books := make([]source.Source, 0, len(names))
	for _, name := range names {
		b, err := Open(filepath.Join(l.dir, name))
		if err != nil {
			l.log.Warn("skip travel book", "file", name, "err", err)
			continue
		}
		books = append(books, b)
	}
	l.swap(books)
	l.log.Info("travel books loaded", "dir", l.dir, "count", len(books))
	return len(books), nil
}

func (l *Library) swap(books []source.Source) {
	l.mu.Lock()
	l.books = books
	l.mu.Unlock()
}

// Sources implements source.Provider.
func (l *Library) Sources() []source.Source {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]source.Source(nil), l.books...)
}
