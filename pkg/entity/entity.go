// Package entity describes application objects that are mirrored into the
// graph as nodes.
//
// A type opts in by implementing Entity. Types that also implement
// Constrained declare which properties carry a uniqueness constraint; the
// schema package reads those through a Registry.
package entity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/cypherkit/pkg/cypher"
)

// Entity is an object mirrored as a graph node.
type Entity interface {
	// GraphLabels returns the node labels, e.g. ["City"] or ["City", "Town"].
	GraphLabels() []string
	// GraphProperties returns the properties written on create and on match.
	GraphProperties() cypher.Properties
	// GraphMergeKey returns the property that identifies the node.
	GraphMergeKey() cypher.Property
}

// Constrained is implemented by entities whose properties are unique.
type Constrained interface {
	// GraphConstraints returns the unique property names.
	GraphConstraints() []string
}

// Indexed is implemented by entities whose properties should be indexed.
type Indexed interface {
	// GraphIndexes returns the indexed property names.
	GraphIndexes() []string
}

var (
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("entity already registered")
	// ErrInvalid is returned for entities that cannot be rendered.
	ErrInvalid = errors.New("invalid entity")
)

// Registration pairs a registered name with its prototype.
type Registration struct {
	Name      string
	Prototype Entity
}

// Registry lists the entity types known to the application.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []Registration
	byName  map[string]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a prototype under name.
func (r *Registry) Register(name string, prototype Entity) error {
	if name == "" || prototype == nil {
		return fmt.Errorf("register %q: %w", name, ErrInvalid)
	}
	if len(prototype.GraphLabels()) == 0 {
		return fmt.Errorf("register %q: no labels: %w", name, ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicate)
	}
	r.byName[name] = len(r.entries)
	r.entries = append(r.entries, Registration{Name: name, Prototype: prototype})
	return nil
}

// MustRegister is Register that panics on error, for package init.
func (r *Registry) MustRegister(name string, prototype Entity) {
	if err := r.Register(name, prototype); err != nil {
		panic(err)
	}
}

// Lookup returns the prototype registered under name.
func (r *Registry) Lookup(name string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].Prototype, true
}

// All returns every registration in registration order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, len(r.entries))
	copy(out, r.entries)
	return out
}

// MergeStatement builds the upsert for e:
//
//	MERGE (a:Labels {key: value}) ON CREATE SET a.k = v, ... ON MATCH SET a.k = v, ...
func MergeStatement(alias string, e Entity) (*cypher.Statement, error) {
	if e == nil {
		return nil, fmt.Errorf("merge: nil entity: %w", ErrInvalid)
	}
	labels := cypher.LabelsToString(e.GraphLabels())
	if labels == "" {
		return nil, fmt.Errorf("merge: no labels: %w", ErrInvalid)
	}
	key := e.GraphMergeKey()
	if key.Key == "" {
		return nil, fmt.Errorf("merge %s: no merge key: %w", labels, ErrInvalid)
	}

	b := cypher.New().Merge(alias, labels, key)
	if props := e.GraphProperties(); len(props) > 0 {
		b.OnCreateSet(alias, props...).OnMatchSet(alias, props...)
	}
	return b.Build()
}
