package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

// Site is the set of registered indexes. It is safe for concurrent use.
type Site struct {
	mu      sync.Mutex
	indexes map[string]*Index
	order   []string
	schema  *schema.Schema
}

// NewSite creates an empty Site.
func NewSite() *Site {
	return &Site{indexes: make(map[string]*Index)}
}

// Register adds idx. A type may be registered only once.
func (s *Site) Register(idx *Index) error {
	if idx == nil {
		return fmt.Errorf("%w: nil index", domain.ErrConfiguration)
	}
	key := idx.ObjectType().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[key]; ok {
		return fmt.Errorf("%w: %s is already registered", domain.ErrConfiguration, key)
	}
	s.indexes[key] = idx
	s.order = append(s.order, key)
	s.schema = nil
	return nil
}

// Get returns the index registered for t.
func (s *Site) Get(t model.Type) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[t.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRegistered, t)
	}
	return idx, nil
}

// Lookup resolves an "app.name" label to its registered type.
func (s *Site) Lookup(label string) (model.Type, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[label]
	if !ok {
		return model.Type{}, fmt.Errorf("%w: %s", domain.ErrNotRegistered, label)
	}
	return idx.ObjectType(), nil
}

// Types returns the registered types in registration order.
func (s *Site) Types() []model.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Type, len(s.order))
	for i, key := range s.order {
		out[i] = s.indexes[key].ObjectType()
	}
	return out
}

// Indexes returns the registered indexes in registration order.
func (s *Site) Indexes() []*Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexesLocked()
}

func (s *Site) indexesLocked() []*Index {
	out := make([]*Index, len(s.order))
	for i, key := range s.order {
		out[i] = s.indexes[key]
	}
	return out
}

// Schema returns the unified schema, building it on first use.
// Build failures are not cached.
func (s *Site) Schema() (*schema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema != nil {
		return s.schema, nil
	}

	idxs := s.indexesLocked()
	sources := make([]schema.Source, len(idxs))
	for i, idx := range idxs {
		sources[i] = idx
	}
	built, err := schema.Build(sources)
	if err != nil {
		return nil, err
	}
	s.schema = built
	return built, nil
}

// Check reports whether the registered types merge into one schema.
func (s *Site) Check() error {
	_, err := s.Schema()
	return err
}

// Choice is a selectable model for search forms.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ModelChoices lists the registered types sorted by verbose plural name.
func (s *Site) ModelChoices() []Choice {
	types := s.Types()
	sort.SliceStable(types, func(i, j int) bool {
		return strings.ToLower(types[i].VerboseNamePlural) < strings.ToLower(types[j].VerboseNamePlural)
	})

	out := make([]Choice, len(types))
	for i, t := range types {
		out[i] = Choice{Value: t.String(), Label: capFirst(t.VerboseNamePlural)}
	}
	return out
}

func capFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
