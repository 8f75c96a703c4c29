package model

import (
	"fmt"
	"slices"
)

// Graph is an in-memory arena of entities keyed by kind and ID. Relations are
// stored as IDs on the entities themselves, never as pointers, so traversals
// only need plain visited sets. Iteration follows insertion order.
type Graph struct {
	entities map[Kind]map[string]Entity
	order    map[Kind][]string
}

func NewGraph() *Graph {
	g := &Graph{
		entities: make(map[Kind]map[string]Entity, len(Kinds)),
		order:    make(map[Kind][]string, len(Kinds)),
	}
	for _, kind := range Kinds {
		g.entities[kind] = make(map[string]Entity)
	}
	return g
}

// Add inserts a new entity, assigning an ID when it has none.
func (g *Graph) Add(e Entity) error {
	base := e.Base()
	if base.ID == "" {
		base.ID = NewID()
	}
	byID, ok := g.entities[e.Kind()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, e.Kind())
	}
	if _, exists := byID[base.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, RefOf(e))
	}
	byID[base.ID] = e
	g.order[e.Kind()] = append(g.order[e.Kind()], base.ID)
	return nil
}

// Put inserts or replaces an entity, keeping its original position.
func (g *Graph) Put(e Entity) error {
	byID, ok := g.entities[e.Kind()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, e.Kind())
	}
	id := e.Base().ID
	if id == "" {
		return fmt.Errorf("put %s: empty id", e.Kind())
	}
	if _, exists := byID[id]; !exists {
		g.order[e.Kind()] = append(g.order[e.Kind()], id)
	}
	byID[id] = e
	return nil
}

// Remove drops one entity. References held by other entities are left
// alone; callers detach them first.
func (g *Graph) Remove(ref Ref) bool {
	byID, ok := g.entities[ref.Kind]
	if !ok {
		return false
	}
	if _, exists := byID[ref.ID]; !exists {
		return false
	}
	delete(byID, ref.ID)
	g.order[ref.Kind] = slices.DeleteFunc(g.order[ref.Kind], func(id string) bool { return id == ref.ID })
	return true
}

func (g *Graph) Get(ref Ref) (Entity, bool) {
	e, ok := g.entities[ref.Kind][ref.ID]
	return e, ok
}

// MustGet returns the entity or ErrNotFound.
func (g *Graph) MustGet(ref Ref) (Entity, error) {
	e, ok := g.Get(ref)
	if !ok {
		if _, known := g.entities[ref.Kind]; !known {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, ref.Kind)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return e, nil
}

func (g *Graph) Len(kind Kind) int {
	return len(g.order[kind])
}

// Entities returns every entity of one kind in insertion order.
func (g *Graph) Entities(kind Kind) []Entity {
	ids := g.order[kind]
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.entities[kind][id])
	}
	return out
}

// All returns every entity, grouped in dependency order of kinds.
func (g *Graph) All() []Entity {
	var out []Entity
	for _, kind := range Kinds {
		out = append(out, g.Entities(kind)...)
	}
	return out
}

// Clone returns an independent deep copy of the arena.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, kind := range Kinds {
		out.order[kind] = append([]string(nil), g.order[kind]...)
		for id, e := range g.entities[kind] {
			out.entities[kind][id] = e.Clone()
		}
	}
	return out
}

func (g *Graph) Model(id string) (*Model, bool)       { return typed[*Model](g, KindModel, id) }
func (g *Graph) Component(id string) (*Component, bool) { return typed[*Component](g, KindComponent, id) }
func (g *Graph) Variable(id string) (*Variable, bool) { return typed[*Variable](g, KindVariable, id) }
func (g *Graph) CompoundUnit(id string) (*CompoundUnit, bool) {
	return typed[*CompoundUnit](g, KindCompoundUnit, id)
}
func (g *Graph) Unit(id string) (*Unit, bool)   { return typed[*Unit](g, KindUnit, id) }
func (g *Graph) Reset(id string) (*Reset, bool) { return typed[*Reset](g, KindReset, id) }
func (g *Graph) Math(id string) (*Math, bool)   { return typed[*Math](g, KindMath, id) }

func (g *Graph) Models() []*Model             { return typedAll[*Model](g, KindModel) }
func (g *Graph) Components() []*Component     { return typedAll[*Component](g, KindComponent) }
func (g *Graph) Variables() []*Variable       { return typedAll[*Variable](g, KindVariable) }
func (g *Graph) CompoundUnits() []*CompoundUnit { return typedAll[*CompoundUnit](g, KindCompoundUnit) }
func (g *Graph) Units() []*Unit               { return typedAll[*Unit](g, KindUnit) }
func (g *Graph) Resets() []*Reset             { return typedAll[*Reset](g, KindReset) }
func (g *Graph) Maths() []*Math               { return typedAll[*Math](g, KindMath) }

func typed[T Entity](g *Graph, kind Kind, id string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}
	e, ok := g.entities[kind][id]
	if !ok {
		return zero, false
	}
	out, ok := e.(T)
	return out, ok
}

func typedAll[T Entity](g *Graph, kind Kind) []T {
	ids := g.order[kind]
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.entities[kind][id].(T); ok {
			out = append(out, e)
		}
	}
	return out
}

// Connect records a symmetric equivalence between two variables.
func (g *Graph) Connect(a, b string) error {
	va, ok := g.Variable(a)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, Ref{Kind: KindVariable, ID: a})
	}
	vb, ok := g.Variable(b)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, Ref{Kind: KindVariable, ID: b})
	}
	if !slices.Contains(va.EquivalentIDs, b) {
		va.EquivalentIDs = append(va.EquivalentIDs, b)
	}
	if !slices.Contains(vb.EquivalentIDs, a) {
		vb.EquivalentIDs = append(vb.EquivalentIDs, a)
	}
	return nil
}

// Disconnect removes an equivalence in both directions. Missing variables are ignored.
func (g *Graph) Disconnect(a, b string) {
	if va, ok := g.Variable(a); ok {
		va.EquivalentIDs = removeID(va.EquivalentIDs, b)
	}
	if vb, ok := g.Variable(b); ok {
		vb.EquivalentIDs = removeID(vb.EquivalentIDs, a)
	}
}

func removeID(ids []string, id string) []string {
	if !slices.Contains(ids, id) {
		return ids
	}
	out := make([]string, 0, len(ids)-1)
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
