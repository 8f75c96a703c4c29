package model

import (
	"fmt"
	"slices"
)

// Relation describes how a field stores its references.
type Relation int

const (
	// RelSingle is a forward reference held on this entity.
	RelSingle Relation = iota
	// RelMulti is a forward list of references held on this entity.
	RelMulti
	// RelSymmetric is a self-referential list kept in sync on both ends.
	RelSymmetric
	// RelReverse lists the entities whose Inverse single field points here.
	RelReverse
	// RelReverseMulti lists the entities whose Inverse list contains this entity.
	RelReverseMulti
)

// Ownership tells copy and delete whether a relation crosses an ownership boundary.
type Ownership int

const (
	// Shared targets are referenced by, not owned by, the holder.
	Shared Ownership = iota
	// Owned targets belong to the holder and follow it through deep copies and deletes.
	Owned
	// Upstream targets are the holder's own container.
	Upstream
)

type Field struct {
	Name      string
	Relation  Relation
	Ownership Ownership
	Target    Kind
	Inverse   string
}

func (f Field) Forward() bool {
	return f.Relation == RelSingle || f.Relation == RelMulti || f.Relation == RelSymmetric
}

var schema = map[Kind][]Field{
	KindModel: {
		{Name: "components", Relation: RelMulti, Ownership: Owned, Target: KindComponent},
		{Name: "compound_units", Relation: RelMulti, Ownership: Owned, Target: KindCompoundUnit},
	},
	KindComponent: {
		{Name: "parent_component", Relation: RelSingle, Ownership: Upstream, Target: KindComponent},
		{Name: "child_components", Relation: RelReverse, Ownership: Owned, Target: KindComponent, Inverse: "parent_component"},
		{Name: "variables", Relation: RelReverse, Ownership: Owned, Target: KindVariable, Inverse: "component"},
		{Name: "resets", Relation: RelReverse, Ownership: Owned, Target: KindReset, Inverse: "component"},
		{Name: "maths", Relation: RelReverse, Ownership: Owned, Target: KindMath, Inverse: "component"},
		{Name: "models", Relation: RelReverseMulti, Ownership: Upstream, Target: KindModel, Inverse: "components"},
	},
	KindVariable: {
		{Name: "component", Relation: RelSingle, Ownership: Upstream, Target: KindComponent},
		{Name: "compound_unit", Relation: RelSingle, Ownership: Shared, Target: KindCompoundUnit},
		{Name: "initial_value_variable", Relation: RelSingle, Ownership: Shared, Target: KindVariable},
		{Name: "equivalent_variables", Relation: RelSymmetric, Ownership: Shared, Target: KindVariable},
	},
	KindCompoundUnit: {
		{Name: "product_of", Relation: RelReverse, Ownership: Owned, Target: KindUnit, Inverse: "parent"},
		{Name: "models", Relation: RelReverseMulti, Ownership: Upstream, Target: KindModel, Inverse: "compound_units"},
	},
	KindUnit: {
		{Name: "parent", Relation: RelSingle, Ownership: Upstream, Target: KindCompoundUnit},
		{Name: "child", Relation: RelSingle, Ownership: Shared, Target: KindCompoundUnit},
	},
	KindReset: {
		{Name: "component", Relation: RelSingle, Ownership: Upstream, Target: KindComponent},
		{Name: "variable", Relation: RelSingle, Ownership: Shared, Target: KindVariable},
		{Name: "test_variable", Relation: RelSingle, Ownership: Shared, Target: KindVariable},
		{Name: "test_value", Relation: RelSingle, Ownership: Shared, Target: KindMath},
		{Name: "reset_value", Relation: RelSingle, Ownership: Shared, Target: KindMath},
	},
	KindMath: {
		{Name: "component", Relation: RelSingle, Ownership: Upstream, Target: KindComponent},
	},
}

// Schema returns the relation descriptors of one entity kind.
func Schema(kind Kind) ([]Field, error) {
	fields, ok := schema[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return fields, nil
}

func FieldOf(kind Kind, name string) (Field, error) {
	fields, err := Schema(kind)
	if err != nil {
		return Field{}, err
	}
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%s has no field %q", kind, name)
}

// singleField exposes a forward single reference for generic access.
func singleField(e Entity, name string) *string {
	switch x := e.(type) {
	case *Component:
		if name == "parent_component" {
			return &x.ParentID
		}
	case *Variable:
		switch name {
		case "component":
			return &x.ComponentID
		case "compound_unit":
			return &x.CompoundUnitID
		case "initial_value_variable":
			return &x.InitialVariableID
		}
	case *Unit:
		switch name {
		case "parent":
			return &x.ParentID
		case "child":
			return &x.ChildID
		}
	case *Reset:
		switch name {
		case "component":
			return &x.ComponentID
		case "variable":
			return &x.VariableID
		case "test_variable":
			return &x.TestVariableID
		case "test_value":
			return &x.TestValueID
		case "reset_value":
			return &x.ResetValueID
		}
	case *Math:
		if name == "component" {
			return &x.ComponentID
		}
	}
	return nil
}

// multiField exposes a forward list of references for generic access.
func multiField(e Entity, name string) *[]string {
	switch x := e.(type) {
	case *Model:
		switch name {
		case "components":
			return &x.ComponentIDs
		case "compound_units":
			return &x.CompoundUnitIDs
		}
	case *Variable:
		if name == "equivalent_variables" {
			return &x.EquivalentIDs
		}
	}
	return nil
}

// Refs returns the IDs the given field of an entity points at.
func (g *Graph) Refs(ref Ref, f Field) []string {
	e, ok := g.Get(ref)
	if !ok {
		return nil
	}
	switch f.Relation {
	case RelSingle:
		if p := singleField(e, f.Name); p != nil && *p != "" {
			return []string{*p}
		}
		return nil
	case RelMulti, RelSymmetric:
		if p := multiField(e, f.Name); p != nil {
			return append([]string(nil), *p...)
		}
		return nil
	case RelReverse:
		var out []string
		for _, target := range g.Entities(f.Target) {
			if p := singleField(target, f.Inverse); p != nil && *p == ref.ID {
				out = append(out, target.Base().ID)
			}
		}
		return out
	case RelReverseMulti:
		var out []string
		for _, target := range g.Entities(f.Target) {
			if p := multiField(target, f.Inverse); p != nil && slices.Contains(*p, ref.ID) {
				out = append(out, target.Base().ID)
			}
		}
		return out
	}
	return nil
}

// Attach adds targetID to the field, updating whichever side stores the link.
func (g *Graph) Attach(ref Ref, f Field, targetID string) error {
	e, err := g.MustGet(ref)
	if err != nil {
		return err
	}
	switch f.Relation {
	case RelSingle:
		p := singleField(e, f.Name)
		if p == nil {
			return fmt.Errorf("%s has no single field %q", ref.Kind, f.Name)
		}
		*p = targetID
	case RelMulti:
		p := multiField(e, f.Name)
		if p == nil {
			return fmt.Errorf("%s has no list field %q", ref.Kind, f.Name)
		}
		if !slices.Contains(*p, targetID) {
			*p = append(*p, targetID)
		}
	case RelSymmetric:
		return g.Connect(ref.ID, targetID)
	case RelReverse:
		target, err := g.MustGet(Ref{Kind: f.Target, ID: targetID})
		if err != nil {
			return err
		}
		p := singleField(target, f.Inverse)
		if p == nil {
			return fmt.Errorf("%s has no single field %q", f.Target, f.Inverse)
		}
		*p = ref.ID
	case RelReverseMulti:
		target, err := g.MustGet(Ref{Kind: f.Target, ID: targetID})
		if err != nil {
			return err
		}
		p := multiField(target, f.Inverse)
		if p == nil {
			return fmt.Errorf("%s has no list field %q", f.Target, f.Inverse)
		}
		if !slices.Contains(*p, ref.ID) {
			*p = append(*p, ref.ID)
		}
	}
	return nil
}

// Detach removes targetID from the field. Missing links are ignored.
func (g *Graph) Detach(ref Ref, f Field, targetID string) {
	e, ok := g.Get(ref)
	if !ok {
		return
	}
	switch f.Relation {
	case RelSingle:
		if p := singleField(e, f.Name); p != nil && *p == targetID {
			*p = ""
		}
	case RelMulti:
		if p := multiField(e, f.Name); p != nil {
			*p = removeID(*p, targetID)
		}
	case RelSymmetric:
		g.Disconnect(ref.ID, targetID)
	case RelReverse:
		if target, ok := g.Get(Ref{Kind: f.Target, ID: targetID}); ok {
			if p := singleField(target, f.Inverse); p != nil && *p == ref.ID {
				*p = ""
			}
		}
	case RelReverseMulti:
		if target, ok := g.Get(Ref{Kind: f.Target, ID: targetID}); ok {
			if p := multiField(target, f.Inverse); p != nil {
				*p = removeID(*p, ref.ID)
			}
		}
	}
}

// Replace rewrites a forward reference from oldID to newID in place.
func (g *Graph) Replace(ref Ref, f Field, oldID, newID string) {
	e, ok := g.Get(ref)
	if !ok {
		return
	}
	switch f.Relation {
	case RelSingle:
		if p := singleField(e, f.Name); p != nil && *p == oldID {
			*p = newID
		}
	case RelMulti, RelSymmetric:
		if p := multiField(e, f.Name); p != nil {
			for i, id := range *p {
				if id == oldID {
					(*p)[i] = newID
				}
			}
		}
	}
}

// ClearRelations blanks every forward reference held on e. Reverse relations
// live on other entities and are untouched.
func ClearRelations(e Entity) {
	fields, err := Schema(e.Kind())
	if err != nil {
		return
	}
	for _, f := range fields {
		switch f.Relation {
		case RelSingle:
			if p := singleField(e, f.Name); p != nil {
				*p = ""
			}
		case RelMulti, RelSymmetric:
			if p := multiField(e, f.Name); p != nil {
				*p = nil
			}
		}
	}
}

// Referrers lists every forward link that points at ref, as the holder and
// the field holding it.
func (g *Graph) Referrers(ref Ref) []Link {
	var out []Link
	for _, kind := range Kinds {
		for _, f := range schema[kind] {
			if !f.Forward() || f.Target != ref.Kind {
				continue
			}
			for _, e := range g.Entities(kind) {
				holder := RefOf(e)
				if slices.Contains(g.Refs(holder, f), ref.ID) {
					out = append(out, Link{Holder: holder, Field: f})
				}
			}
		}
	}
	return out
}

// Link is one forward reference: the entity holding it and the field.
type Link struct {
	Holder Ref
	Field  Field
}
