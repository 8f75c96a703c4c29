package cellml

import (
	"io"
	"strings"
)

// Parser turns document text into a parsed model with index-based accessors.
type Parser interface {
	Parse(r io.Reader) (ParsedModel, error)
}

// Printer is the inverse serializer. It receives the shape built by
// ConvertModel.
type Printer interface {
	Print(w io.Writer, doc *ModelDoc) error
}

type ParsedModel interface {
	Name() string
	ID() string
	UnitsCount() int
	Units(i int) ParsedUnits
	ComponentCount() int
	Component(i int) ParsedComponent
}

type ParsedUnits interface {
	Name() string
	ID() string
	// IsBaseUnit reports a reference to a built-in unit rather than a definition.
	IsBaseUnit() bool
	UnitCount() int
	UnitAttributes(i int) (reference, prefix string, multiplier, exponent float64, id string)
}

type ParsedComponent interface {
	Name() string
	ID() string
	// Parent is the name of the encapsulating component, empty for a root.
	Parent() string
	Math() string
	VariableCount() int
	Variable(i int) ParsedVariable
	ResetCount() int
	Reset(i int) ParsedReset
}

type ParsedVariable interface {
	Name() string
	ID() string
	Units() string
	// InitialValue is a number or the name of a variable in the same component.
	InitialValue() string
	InterfaceType() string
	EquivalentVariableCount() int
	EquivalentVariable(i int) (component, variable string)
}

type ParsedReset interface {
	ID() string
	Order() (int, bool)
	Variable() string
	TestVariable() string
	TestValue() string
	ResetValue() string
}

// ParseError carries one description per problem the parser found.
type ParseError struct {
	Issues []string
}

func (e *ParseError) Error() string {
	if len(e.Issues) == 0 {
		return "parse failed"
	}
	return "parse failed: " + strings.Join(e.Issues, "; ")
}
