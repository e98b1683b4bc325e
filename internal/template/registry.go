package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry holds the templates available to a grading run, keyed by the
// stem of the file they were loaded from.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	names     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// IsAnswerKeyFile reports whether a file name follows the answers_<version>.json
// convention and therefore is not a template.
func IsAnswerKeyFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "answers_")
}

// LoadDir loads every *.json template in dir, skipping answer key files.
//
// Templates that fail to load are skipped; their errors are joined into the
// returned error while the registry still holds every template that loaded.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	r := NewRegistry()
	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || IsAnswerKeyFile(e.Name()) {
			continue
		}
		t, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.Add(e.Name(), t)
	}
	return r, errors.Join(errs...)
}

// Add registers a template under name. A ".json" suffix is dropped.
func (r *Registry) Add(name string, t *Template) {
	name = strings.TrimSuffix(name, ".json")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[name]; !exists {
		r.names = append(r.names, name)
		sort.Strings(r.names)
	}
	r.templates[name] = t
}

// Get returns the template registered under name, with or without ".json".
func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[strings.TrimSuffix(name, ".json")]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// ForVersion finds the template for a decoded version marker.
//
// A template whose Version equals version wins; otherwise the first name (in
// sorted order) that contains version is used.
func (r *Registry) ForVersion(version string) (*Template, string, bool) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.names {
		if t := r.templates[name]; t.Version == version {
			return t, name, true
		}
	}
	for _, name := range r.names {
		if strings.Contains(name, version) {
			return r.templates[name], name, true
		}
	}
	return nil, "", false
}
