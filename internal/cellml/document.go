package cellml

// ModelDoc is the in-memory model shape exchanged with printers and
// produced by the bundled parser.
type ModelDoc struct {
	Name       string         `yaml:"name"`
	ID         string         `yaml:"id,omitempty"`
	Units      []UnitsDoc     `yaml:"units,omitempty"`
	Components []ComponentDoc `yaml:"components,omitempty"`
}

type UnitsDoc struct {
	Name    string      `yaml:"name"`
	ID      string      `yaml:"id,omitempty"`
	Base    bool        `yaml:"base,omitempty"`
	Factors []FactorDoc `yaml:"factors,omitempty"`
}

type FactorDoc struct {
	Reference  string  `yaml:"reference"`
	Prefix     string  `yaml:"prefix,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
	Exponent   float64 `yaml:"exponent,omitempty"`
	ID         string  `yaml:"id,omitempty"`
}

type ComponentDoc struct {
	Name      string        `yaml:"name"`
	ID        string        `yaml:"id,omitempty"`
	Parent    string        `yaml:"parent,omitempty"`
	Math      string        `yaml:"math,omitempty"`
	Variables []VariableDoc `yaml:"variables,omitempty"`
	Resets    []ResetDoc    `yaml:"resets,omitempty"`
}

type VariableDoc struct {
	Name         string           `yaml:"name"`
	ID           string           `yaml:"id,omitempty"`
	Units        string           `yaml:"units,omitempty"`
	InitialValue string           `yaml:"initial_value,omitempty"`
	Interface    string           `yaml:"interface,omitempty"`
	Equivalent   []EquivalenceDoc `yaml:"equivalent,omitempty"`
}

type EquivalenceDoc struct {
	Component string `yaml:"component"`
	Variable  string `yaml:"variable"`
}

type ResetDoc struct {
	ID           string `yaml:"id,omitempty"`
	Order        *int   `yaml:"order,omitempty"`
	Variable     string `yaml:"variable,omitempty"`
	TestVariable string `yaml:"test_variable,omitempty"`
	TestValue    string `yaml:"test_value,omitempty"`
	ResetValue   string `yaml:"reset_value,omitempty"`
}

// The accessors below let a decoded document stand in for a parser tree.

type docModel struct{ doc *ModelDoc }

func (m docModel) Name() string        { return m.doc.Name }
func (m docModel) ID() string          { return m.doc.ID }
func (m docModel) UnitsCount() int     { return len(m.doc.Units) }
func (m docModel) ComponentCount() int { return len(m.doc.Components) }
func (m docModel) Units(i int) ParsedUnits {
	return docUnits{&m.doc.Units[i]}
}
func (m docModel) Component(i int) ParsedComponent {
	return docComponent{&m.doc.Components[i]}
}

type docUnits struct{ doc *UnitsDoc }

func (u docUnits) Name() string     { return u.doc.Name }
func (u docUnits) ID() string       { return u.doc.ID }
func (u docUnits) IsBaseUnit() bool { return u.doc.Base }
func (u docUnits) UnitCount() int   { return len(u.doc.Factors) }
func (u docUnits) UnitAttributes(i int) (string, string, float64, float64, string) {
	f := u.doc.Factors[i]
	multiplier, exponent := f.Multiplier, f.Exponent
	if multiplier == 0 {
		multiplier = 1
	}
	if exponent == 0 {
		exponent = 1
	}
	return f.Reference, f.Prefix, multiplier, exponent, f.ID
}

type docComponent struct{ doc *ComponentDoc }

func (c docComponent) Name() string       { return c.doc.Name }
func (c docComponent) ID() string         { return c.doc.ID }
func (c docComponent) Parent() string     { return c.doc.Parent }
func (c docComponent) Math() string       { return c.doc.Math }
func (c docComponent) VariableCount() int { return len(c.doc.Variables) }
func (c docComponent) ResetCount() int    { return len(c.doc.Resets) }
func (c docComponent) Variable(i int) ParsedVariable {
	return docVariable{&c.doc.Variables[i]}
}
func (c docComponent) Reset(i int) ParsedReset {
	return docReset{&c.doc.Resets[i]}
}

type docVariable struct{ doc *VariableDoc }

func (v docVariable) Name() string                 { return v.doc.Name }
func (v docVariable) ID() string                   { return v.doc.ID }
func (v docVariable) Units() string                { return v.doc.Units }
func (v docVariable) InitialValue() string         { return v.doc.InitialValue }
func (v docVariable) InterfaceType() string        { return v.doc.Interface }
func (v docVariable) EquivalentVariableCount() int { return len(v.doc.Equivalent) }
func (v docVariable) EquivalentVariable(i int) (string, string) {
	eq := v.doc.Equivalent[i]
	return eq.Component, eq.Variable
}

type docReset struct{ doc *ResetDoc }

func (r docReset) ID() string           { return r.doc.ID }
func (r docReset) Variable() string     { return r.doc.Variable }
func (r docReset) TestVariable() string { return r.doc.TestVariable }
func (r docReset) TestValue() string    { return r.doc.TestValue }
func (r docReset) ResetValue() string   { return r.doc.ResetValue }
func (r docReset) Order() (int, bool) {
	if r.doc.Order == nil {
		return 0, false
	}
	return *r.doc.Order, true
}

// Parsed exposes a document through the parser accessors.
func Parsed(doc *ModelDoc) ParsedModel {
	return docModel{doc: doc}
}
