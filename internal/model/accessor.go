package model

import "slices"

// ModelComponents returns the flat component membership of a model,
// regardless of nesting depth.
func (g *Graph) ModelComponents(modelID string) []*Component {
	m, ok := g.Model(modelID)
	if !ok {
		return nil
	}
	out := make([]*Component, 0, len(m.ComponentIDs))
	for _, id := range m.ComponentIDs {
		if c, ok := g.Component(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// EncapsulatedComponents returns the roots of a model's encapsulation forest.
func (g *Graph) EncapsulatedComponents(modelID string) []*Component {
	var out []*Component
	for _, c := range g.ModelComponents(modelID) {
		if c.ParentID == "" {
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) ChildComponents(componentID string) []*Component {
	var out []*Component
	for _, c := range g.Components() {
		if c.ParentID == componentID && componentID != "" {
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) ComponentVariables(componentID string) []*Variable {
	var out []*Variable
	for _, v := range g.Variables() {
		if v.ComponentID == componentID && componentID != "" {
			out = append(out, v)
		}
	}
	return out
}

func (g *Graph) ComponentResets(componentID string) []*Reset {
	var out []*Reset
	for _, r := range g.Resets() {
		if r.ComponentID == componentID && componentID != "" {
			out = append(out, r)
		}
	}
	return out
}

func (g *Graph) ComponentMaths(componentID string) []*Math {
	var out []*Math
	for _, m := range g.Maths() {
		if m.ComponentID == componentID && componentID != "" {
			out = append(out, m)
		}
	}
	return out
}

// Factors returns the product_of units of a compound unit.
func (g *Graph) Factors(compoundUnitID string) []*Unit {
	var out []*Unit
	for _, u := range g.Units() {
		if u.ParentID == compoundUnitID && compoundUnitID != "" {
			out = append(out, u)
		}
	}
	return out
}

func (g *Graph) Equivalents(variableID string) []*Variable {
	v, ok := g.Variable(variableID)
	if !ok {
		return nil
	}
	out := make([]*Variable, 0, len(v.EquivalentIDs))
	for _, id := range v.EquivalentIDs {
		if eq, ok := g.Variable(id); ok {
			out = append(out, eq)
		}
	}
	return out
}

// ModelUnits returns the compound units a model references, standard ones included.
func (g *Graph) ModelUnits(modelID string) []*CompoundUnit {
	m, ok := g.Model(modelID)
	if !ok {
		return nil
	}
	out := make([]*CompoundUnit, 0, len(m.CompoundUnitIDs))
	for _, id := range m.CompoundUnitIDs {
		if cu, ok := g.CompoundUnit(id); ok {
			out = append(out, cu)
		}
	}
	return out
}

func (g *Graph) ModelsOfComponent(componentID string) []*Model {
	var out []*Model
	for _, m := range g.Models() {
		if slices.Contains(m.ComponentIDs, componentID) {
			out = append(out, m)
		}
	}
	return out
}

func (g *Graph) ModelsOfUnit(compoundUnitID string) []*Model {
	var out []*Model
	for _, m := range g.Models() {
		if slices.Contains(m.CompoundUnitIDs, compoundUnitID) {
			out = append(out, m)
		}
	}
	return out
}

func (g *Graph) StandardUnits() []*CompoundUnit {
	var out []*CompoundUnit
	for _, cu := range g.CompoundUnits() {
		if cu.IsStandard {
			out = append(out, cu)
		}
	}
	return out
}

func (g *Graph) StandardUnitByName(name string) (*CompoundUnit, bool) {
	for _, cu := range g.CompoundUnits() {
		if cu.IsStandard && cu.Name == name {
			return cu, true
		}
	}
	return nil, false
}

// ModelUnitByName finds a model-local (non-standard) unit by name.
func (g *Graph) ModelUnitByName(modelID, name string) (*CompoundUnit, bool) {
	for _, cu := range g.ModelUnits(modelID) {
		if !cu.IsStandard && cu.Name == name {
			return cu, true
		}
	}
	return nil, false
}

// ResolveUnit looks a unit name up in the model first, then among standard units.
func (g *Graph) ResolveUnit(modelID, name string) (*CompoundUnit, bool) {
	if cu, ok := g.ModelUnitByName(modelID, name); ok {
		return cu, true
	}
	return g.StandardUnitByName(name)
}

func (g *Graph) ModelComponentByName(modelID, name string) (*Component, bool) {
	for _, c := range g.ModelComponents(modelID) {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (g *Graph) ComponentVariableByName(componentID, name string) (*Variable, bool) {
	for _, v := range g.ComponentVariables(componentID) {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Downstream returns the entities owned by ref: the ones a deep copy
// duplicates and a deep delete removes. Standard units are never owned.
func (g *Graph) Downstream(ref Ref) []Ref {
	return g.related(ref, func(f Field) bool { return f.Ownership == Owned })
}

// Upstream returns the containers of ref.
func (g *Graph) Upstream(ref Ref) []Ref {
	return g.related(ref, func(f Field) bool { return f.Ownership == Upstream })
}

func (g *Graph) related(ref Ref, keep func(Field) bool) []Ref {
	fields, err := Schema(ref.Kind)
	if err != nil {
		return nil
	}
	var out []Ref
	for _, f := range fields {
		if !keep(f) {
			continue
		}
		for _, id := range g.Refs(ref, f) {
			if cu, ok := g.CompoundUnit(id); ok && f.Target == KindCompoundUnit && cu.IsStandard {
				continue
			}
			out = append(out, Ref{Kind: f.Target, ID: id})
		}
	}
	return out
}
