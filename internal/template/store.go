package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/searchwise/search-gateway/config"
)

// Store caches the summary widget templates loaded from disk. Templates are
// opaque strings with recognized placeholders; the store never validates
// their structure. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, templates: make(map[string]string)}
}

// Load reads both engine templates from disk, replacing the cache.
func (s *Store) Load() error {
	loaded := make(map[string]string, 2)
	for _, engine := range []string{config.EngineSearXNG, config.Engine4get} {
		path := filepath.Join(s.dir, fmt.Sprintf("summary-template-%s.html", engine))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("loading template for %s: %w", engine, err)
		}
		loaded[engine] = string(data)
	}

	s.mu.Lock()
	s.templates = loaded
	s.mu.Unlock()
	return nil
}

// Active returns the cached template for the engine, loading lazily if the
// cache is empty. A load failure degrades to a visible placeholder rather
// than failing the page.
func (s *Store) Active(engine string) string {
	s.mu.RLock()
	tmpl, ok := s.templates[engine]
	s.mu.RUnlock()
	if ok {
		return tmpl
	}

	if err := s.Load(); err != nil {
		return "<div>Template loading error</div>"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[engine]
}

// Set replaces one engine's cached template. Used by tests to inject
// fixtures without touching disk.
func (s *Store) Set(engine, tmpl string) {
	s.mu.Lock()
	s.templates[engine] = tmpl
	s.mu.Unlock()
}
