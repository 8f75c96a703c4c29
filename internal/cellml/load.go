package cellml

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

// LoadReport lists the references the loader could not resolve. The model
// is still loaded; validation reports the resulting gaps.
type LoadReport struct {
	Warnings []string
}

func (r *LoadReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type loader struct {
	g      *model.Graph
	in     ParsedModel
	actor  model.Actor
	out    *model.Model
	report *LoadReport

	// component ID by parsed index, and the parsed variable index per variable ID
	components []string
	variables  map[string]int
}

// Load builds a model from a parsed tree. Entities are created first;
// units, parents, initial values, resets and equivalences are resolved by
// name afterwards, inside the new model or among the standard units.
// Standard units must already be seeded.
func Load(g *model.Graph, in ParsedModel, actor model.Actor) (string, *LoadReport, error) {
	l := &loader{
		g:         g,
		in:        in,
		actor:     actor,
		report:    &LoadReport{},
		variables: map[string]int{},
	}
	l.out = &model.Model{Named: l.named(in.Name(), in.ID(), 0)}
	if err := g.Add(l.out); err != nil {
		return "", nil, err
	}

	steps := []func() error{l.loadUnits, l.loadFactors, l.loadComponents, l.linkComponents}
	for _, step := range steps {
		if err := step(); err != nil {
			return "", nil, err
		}
	}
	for _, cu := range g.ModelUnits(l.out.ID) {
		if _, err := units.UpdateSymbol(g, cu.ID); err != nil {
			return "", nil, err
		}
	}
	return l.out.ID, l.report, nil
}

func (l *loader) named(name, cellmlID string, index int) model.Named {
	return model.Named{
		ID:          model.NewID(),
		Name:        name,
		Owner:       l.actor,
		CellMLID:    cellmlID,
		CellMLIndex: index,
	}
}

func (l *loader) loadUnits() error {
	for i := 0; i < l.in.UnitsCount(); i++ {
		in := l.in.Units(i)
		if in.IsBaseUnit() {
			std, ok := l.g.StandardUnitByName(in.Name())
			if !ok {
				l.report.warn("units %q is declared as built-in but no standard unit has that name", in.Name())
				continue
			}
			l.out.CompoundUnitIDs = append(l.out.CompoundUnitIDs, std.ID)
			continue
		}
		cu := &model.CompoundUnit{Named: l.named(in.Name(), in.ID(), i)}
		if err := l.g.Add(cu); err != nil {
			return err
		}
		l.out.CompoundUnitIDs = append(l.out.CompoundUnitIDs, cu.ID)
	}
	return nil
}

// loadFactors runs once every units definition exists so factors can
// reference units defined later in the document.
func (l *loader) loadFactors() error {
	for _, cu := range l.g.ModelUnits(l.out.ID) {
		if cu.IsStandard {
			continue
		}
		in := l.in.Units(cu.CellMLIndex)
		for u := 0; u < in.UnitCount(); u++ {
			reference, prefix, multiplier, exponent, id := in.UnitAttributes(u)
			factor := &model.Unit{
				Named:      l.named(reference, id, u),
				ParentID:   cu.ID,
				Prefix:     prefix,
				Multiplier: multiplier,
				Exponent:   exponent,
			}
			if child, ok := l.g.ResolveUnit(l.out.ID, reference); ok {
				factor.ChildID = child.ID
			} else {
				l.report.warn("units %q refers to unknown units %q", cu.Name, reference)
			}
			if _, ok := units.LookupPrefix(prefix); !ok && prefix != "" {
				l.report.warn("units %q uses unknown prefix %q", cu.Name, prefix)
			}
			if err := l.g.Add(factor); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) loadComponents() error {
	for i := 0; i < l.in.ComponentCount(); i++ {
		in := l.in.Component(i)
		c := &model.Component{Named: l.named(in.Name(), in.ID(), i)}
		if err := l.g.Add(c); err != nil {
			return err
		}
		l.out.ComponentIDs = append(l.out.ComponentIDs, c.ID)
		l.components = append(l.components, c.ID)

		if math := strings.TrimSpace(in.Math()); math != "" {
			m := &model.Math{Named: l.named("", "", 0), ComponentID: c.ID, MathML: math}
			if err := l.g.Add(m); err != nil {
				return err
			}
		}
		for v := 0; v < in.VariableCount(); v++ {
			pv := in.Variable(v)
			variable := &model.Variable{
				Named:         l.named(pv.Name(), pv.ID(), v),
				ComponentID:   c.ID,
				InterfaceType: pv.InterfaceType(),
			}
			if value, err := strconv.ParseFloat(strings.TrimSpace(pv.InitialValue()), 64); err == nil {
				variable.InitialConstant = &value
			}
			if err := l.g.Add(variable); err != nil {
				return err
			}
			l.variables[variable.ID] = v
		}
	}
	return nil
}

// linkComponents resolves every by-name reference once all components and
// variables of the model exist.
func (l *loader) linkComponents() error {
	for i, id := range l.components {
		in := l.in.Component(i)
		c, _ := l.g.Component(id)

		if parent := in.Parent(); parent != "" {
			if p, ok := l.g.ModelComponentByName(l.out.ID, parent); ok && p.ID != c.ID {
				c.ParentID = p.ID
			} else {
				l.report.warn("component %q is encapsulated by unknown component %q", c.Name, parent)
			}
		}

		for _, v := range l.g.ComponentVariables(c.ID) {
			pv := in.Variable(l.variables[v.ID])
			if err := l.linkVariable(c, v, pv); err != nil {
				return err
			}
		}

		for r := 0; r < in.ResetCount(); r++ {
			if err := l.loadReset(c, r, in.Reset(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) linkVariable(c *model.Component, v *model.Variable, in ParsedVariable) error {
	if name := in.Units(); name != "" {
		if cu, ok := l.g.ResolveUnit(l.out.ID, name); ok {
			v.CompoundUnitID = cu.ID
			if cu.IsStandard && !slices.Contains(l.out.CompoundUnitIDs, cu.ID) {
				l.out.CompoundUnitIDs = append(l.out.CompoundUnitIDs, cu.ID)
			}
		} else {
			l.report.warn("variable %q in component %q uses unknown units %q", v.Name, c.Name, name)
		}
	}

	if initial := strings.TrimSpace(in.InitialValue()); initial != "" && v.InitialConstant == nil {
		if iv, ok := l.g.ComponentVariableByName(c.ID, initial); ok {
			v.InitialVariableID = iv.ID
		} else {
			l.report.warn("variable %q in component %q is initialised by unknown variable %q", v.Name, c.Name, initial)
		}
	}

	for e := 0; e < in.EquivalentVariableCount(); e++ {
		compName, varName := in.EquivalentVariable(e)
		other, ok := l.g.ModelComponentByName(l.out.ID, compName)
		if !ok {
			l.report.warn("variable %q in component %q is connected to unknown component %q", v.Name, c.Name, compName)
			continue
		}
		partner, ok := l.g.ComponentVariableByName(other.ID, varName)
		if !ok {
			l.report.warn("variable %q in component %q is connected to unknown variable %q in component %q", v.Name, c.Name, varName, compName)
			continue
		}
		if err := l.g.Connect(v.ID, partner.ID); err != nil {
			return fmt.Errorf("connect %q in component %q to %q in component %q: %w", v.Name, c.Name, varName, compName, err)
		}
	}
	return nil
}

func (l *loader) loadReset(c *model.Component, index int, in ParsedReset) error {
	name := in.ID()
	if name == "" {
		name = fmt.Sprintf("reset%d", index+1)
	}
	reset := &model.Reset{Named: l.named(name, in.ID(), index), ComponentID: c.ID}
	if order, ok := in.Order(); ok {
		reset.Order = &order
	}
	for _, ref := range []struct {
		field string
		name  string
		to    *string
	}{
		{"variable", in.Variable(), &reset.VariableID},
		{"test_variable", in.TestVariable(), &reset.TestVariableID},
	} {
		if ref.name == "" {
			continue
		}
		if v, ok := l.g.ComponentVariableByName(c.ID, ref.name); ok {
			*ref.to = v.ID
		} else {
			l.report.warn("reset %q in component %q has unknown %s %q", name, c.Name, ref.field, ref.name)
		}
	}
	for _, value := range []struct {
		math string
		to   *string
	}{
		{in.TestValue(), &reset.TestValueID},
		{in.ResetValue(), &reset.ResetValueID},
	} {
		if strings.TrimSpace(value.math) == "" {
			continue
		}
		m := &model.Math{Named: l.named("", "", 0), ComponentID: c.ID, MathML: value.math}
		if err := l.g.Add(m); err != nil {
			return err
		}
		*value.to = m.ID
	}
	return l.g.Add(reset)
}
