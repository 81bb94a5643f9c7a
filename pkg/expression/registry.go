package expression

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds named expression templates. Callers instantiate a fresh
// Definition per request so per-request overrides never leak into the
// template.
type Registry struct {
	mu          sync.RWMutex
	expressions map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		expressions: make(map[string]*Definition),
	}
}

// LoadBuiltIn registers every embedded expression.
func (r *Registry) LoadBuiltIn() error {
	ids, err := ListEmbedded()
	if err != nil {
		return err
	}
	for _, id := range ids {
		def, err := Preset(id)
		if err != nil {
			return fmt.Errorf("failed to load expression %q: %w", id, err)
		}
		r.Register(def)
	}
	return nil
}

// LoadDirectory registers every expression file in dir, replacing entries
// with the same id.
func (r *Registry) LoadDirectory(dir string) (int, error) {
	defs, err := LoadDirectory(dir)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		r.Register(def)
	}
	return len(defs), nil
}

// Register adds or replaces a template.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expressions[def.ID()] = def
}

// Unregister removes a template.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.expressions, id)
}

// Get returns the template registered under id.
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.expressions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def, nil
}

// Instantiate returns a copy of the template with opts applied.
func (r *Registry) Instantiate(id string, opts ...Option) (*Definition, error) {
	def, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return def.With(opts...)
}

// List returns all registered ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.expressions))
	for id := range r.expressions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListWithLabels returns a map of id to display label.
func (r *Registry) ListWithLabels() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]string, len(r.expressions))
	for id, def := range r.expressions {
		result[id] = def.Label()
	}
	return result
}

// Infos returns the summary of every template, sorted by id.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.expressions))
	for _, def := range r.expressions {
		infos = append(infos, def.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count returns the number of templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.expressions)
}

// Search finds templates whose id, label or description contains query,
// ignoring case.
func (r *Registry) Search(query string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var matches []string
	for id, def := range r.expressions {
		if strings.Contains(strings.ToLower(id), q) ||
			strings.Contains(strings.ToLower(def.Label()), q) ||
			strings.Contains(strings.ToLower(def.Description()), q) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	return matches
}
