package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("entity not found")
	ErrUnsupportedKind = errors.New("unsupported entity type")
	ErrDuplicateID     = errors.New("duplicate entity id")
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Actor is the opaque identity of whoever requests a mutation. It is only
// ever compared against an entity's owner.
type Actor string

type Kind string

const (
	KindModel        Kind = "model"
	KindComponent    Kind = "component"
	KindVariable     Kind = "variable"
	KindCompoundUnit Kind = "compoundunit"
	KindUnit         Kind = "unit"
	KindReset        Kind = "reset"
	KindMath         Kind = "math"
)

// Kinds lists every entity kind in dependency order: units before the
// components that use them, components before their contents.
var Kinds = []Kind{
	KindCompoundUnit,
	KindUnit,
	KindModel,
	KindComponent,
	KindVariable,
	KindMath,
	KindReset,
}

func ParseKind(name string) (Kind, error) {
	for _, kind := range Kinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

// Ref addresses one entity of any kind.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

func NewID() string {
	return uuid.NewString()
}

// Provenance records where an entity was copied or imported from.
type Provenance struct {
	SourceKind      Kind   `json:"source_kind"`
	SourceID        string `json:"source_id"`
	SourceReference string `json:"source_reference,omitempty"`
	Attribution     string `json:"attribution,omitempty"`
}

// Issue is one structured validation finding.
type Issue struct {
	Hint    string   `json:"hint"`
	SpecRef string   `json:"spec_ref"`
	Fields  []string `json:"fields,omitempty"`
}

type Validity struct {
	Valid      bool      `json:"valid"`
	CheckedAt  time.Time `json:"checked_at"`
	Issues     []Issue   `json:"issues,omitempty"`
	ErrorCount int       `json:"error_count"`
}

// Named holds the fields shared by every entity kind.
type Named struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Owner        Actor       `json:"owner,omitempty"`
	Private      bool        `json:"private,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	CellMLID     string      `json:"cellml_id,omitempty"`
	CellMLIndex  int         `json:"cellml_index,omitempty"`
	ImportedFrom *Provenance `json:"imported_from,omitempty"`
	Validity     *Validity   `json:"validity,omitempty"`
}

// Entity is implemented by the closed set of entity kinds in this package.
type Entity interface {
	Kind() Kind
	Base() *Named
	Clone() Entity
}

type Model struct {
	Named
	ComponentIDs    []string `json:"component_ids"`
	CompoundUnitIDs []string `json:"compound_unit_ids"`
}

type Component struct {
	Named
	ParentID string `json:"parent_id,omitempty"`
}

type Variable struct {
	Named
	ComponentID       string   `json:"component_id"`
	CompoundUnitID    string   `json:"compound_unit_id,omitempty"`
	InitialConstant   *float64 `json:"initial_constant,omitempty"`
	InitialVariableID string   `json:"initial_variable_id,omitempty"`
	InterfaceType     string   `json:"interface_type,omitempty"`
	EquivalentIDs     []string `json:"equivalent_ids,omitempty"`
}

type CompoundUnit struct {
	Named
	IsStandard bool   `json:"is_standard,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
}

// Unit is one multiplicative factor of a compound unit.
type Unit struct {
	Named
	ParentID   string  `json:"parent_id"`
	ChildID    string  `json:"child_id,omitempty"`
	Prefix     string  `json:"prefix,omitempty"`
	Exponent   float64 `json:"exponent"`
	Multiplier float64 `json:"multiplier"`
}

type Reset struct {
	Named
	ComponentID    string `json:"component_id,omitempty"`
	VariableID     string `json:"variable_id,omitempty"`
	TestVariableID string `json:"test_variable_id,omitempty"`
	TestValueID    string `json:"test_value_id,omitempty"`
	ResetValueID   string `json:"reset_value_id,omitempty"`
	// Order is nil when unset; zero is a valid order.
	Order *int `json:"order,omitempty"`
}

type Math struct {
	Named
	ComponentID string `json:"component_id,omitempty"`
	MathML      string `json:"math_ml"`
}

func (m *Model) Kind() Kind        { return KindModel }
func (c *Component) Kind() Kind    { return KindComponent }
func (v *Variable) Kind() Kind     { return KindVariable }
func (c *CompoundUnit) Kind() Kind { return KindCompoundUnit }
func (u *Unit) Kind() Kind         { return KindUnit }
func (r *Reset) Kind() Kind        { return KindReset }
func (m *Math) Kind() Kind         { return KindMath }

func (n *Named) Base() *Named { return n }

func (m *Model) Clone() Entity {
	out := *m
	out.Named = m.Named.clone()
	out.ComponentIDs = cloneStrings(m.ComponentIDs)
	out.CompoundUnitIDs = cloneStrings(m.CompoundUnitIDs)
	return &out
}

func (c *Component) Clone() Entity {
	out := *c
	out.Named = c.Named.clone()
	return &out
}

func (v *Variable) Clone() Entity {
	out := *v
	out.Named = v.Named.clone()
	if v.InitialConstant != nil {
		value := *v.InitialConstant
		out.InitialConstant = &value
	}
	out.EquivalentIDs = cloneStrings(v.EquivalentIDs)
	return &out
}

func (c *CompoundUnit) Clone() Entity {
	out := *c
	out.Named = c.Named.clone()
	return &out
}

func (u *Unit) Clone() Entity {
	out := *u
	out.Named = u.Named.clone()
	return &out
}

func (r *Reset) Clone() Entity {
	out := *r
	out.Named = r.Named.clone()
	if r.Order != nil {
		order := *r.Order
		out.Order = &order
	}
	return &out
}

func (m *Math) Clone() Entity {
	out := *m
	out.Named = m.Named.clone()
	return &out
}

func (n Named) clone() Named {
	out := n
	if n.ImportedFrom != nil {
		p := *n.ImportedFrom
		out.ImportedFrom = &p
	}
	if n.Validity != nil {
		v := *n.Validity
		if n.Validity.Issues != nil {
			v.Issues = make([]Issue, len(n.Validity.Issues))
			for i, issue := range n.Validity.Issues {
				issue.Fields = cloneStrings(issue.Fields)
				v.Issues[i] = issue
			}
		}
		out.Validity = &v
	}
	return out
}

// cloneStrings keeps nil and empty slices distinct so clones compare equal.
func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// RefOf returns the address of an entity.
func RefOf(e Entity) Ref {
	return Ref{Kind: e.Kind(), ID: e.Base().ID}
}

// New returns an empty entity of the given kind.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindModel:
		return &Model{}, nil
	case KindComponent:
		return &Component{}, nil
	case KindVariable:
		return &Variable{}, nil
	case KindCompoundUnit:
		return &CompoundUnit{}, nil
	case KindUnit:
		return &Unit{}, nil
	case KindReset:
		return &Reset{}, nil
	case KindMath:
		return &Math{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}
