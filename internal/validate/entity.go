package validate

import (
	"fmt"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

func ref(kind model.Kind, id string) model.Ref {
	return model.Ref{Kind: kind, ID: id}
}

// Entity runs the local validator of one entity, the equivalent of
// validating an item on its own from an editing screen.
func Entity(g *model.Graph, target model.Ref, r *Report) (bool, error) {
	if _, err := g.MustGet(target); err != nil {
		return false, err
	}
	switch target.Kind {
	case model.KindModel:
		return ModelLocally(g, target.ID, r), nil
	case model.KindComponent:
		return ComponentLocally(g, target.ID, r), nil
	case model.KindVariable:
		return Variable(g, target.ID, r), nil
	case model.KindCompoundUnit:
		return CompoundUnit(g, target.ID, r), nil
	case model.KindUnit:
		return Unit(g, target.ID, r), nil
	case model.KindReset:
		return Reset(g, target.ID, r), nil
	case model.KindMath:
		return Math(g, target.ID, r), nil
	default:
		return false, fmt.Errorf("%w: %q", model.ErrUnsupportedKind, target.Kind)
	}
}

func Variable(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindVariable, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	v, ok := g.Variable(id)
	if !ok {
		return false
	}

	valid := true
	if ok, reason := IsCellMLIdentifier(v.Name); !ok {
		r.add(self, fmt.Sprintf("Invalid variable name '%s': %s", v.Name, reason), "11.1.1.1", "name")
		valid = false
	}

	unit, hasUnit := g.CompoundUnit(v.CompoundUnitID)
	if !hasUnit {
		r.add(self, fmt.Sprintf("Variable '%s' does not have any units.", v.Name), "11.1.1.2", "compound_unit")
		valid = false
	}

	if v.InitialVariableID != "" {
		initial, found := g.Variable(v.InitialVariableID)
		switch {
		case !found:
			r.add(self, fmt.Sprintf("Variable '%s' is initialised by a variable that does not exist.", v.Name), "11.1.2.1", "initial_value_variable")
			valid = false
		default:
			if hasUnit && initial.CompoundUnitID != v.CompoundUnitID {
				r.add(self, fmt.Sprintf("Variable has units of '%s' but is initialised by variable '%s' which has units of '%s'.",
					unit.Name, initial.Name, unitName(g, initial.CompoundUnitID)), "11.1.2.2", "initial_value_variable")
				valid = false
			}
			if initial.ComponentID != v.ComponentID {
				r.add(self, fmt.Sprintf("Variable '%s' in component '%s' is initialised by variable '%s' which is in another component '%s'.",
					v.Name, componentName(g, v.ComponentID), initial.Name, componentName(g, initial.ComponentID)),
					"11.1.2.1", "initial_value_variable", "component")
				valid = false
			}
		}
	}

	if v.InitialVariableID != "" && v.InitialConstant != nil {
		r.add(self, fmt.Sprintf("Variable '%s' in component '%s' is initialised by variable '%s' as well as by the constant value %g. There can be only one.",
			v.Name, componentName(g, v.ComponentID), variableName(g, v.InitialVariableID), *v.InitialConstant),
			"11.1.2.1", "initial_value_variable", "initial_constant")
		valid = false
	}

	return r.record(self, valid)
}

func CompoundUnit(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindCompoundUnit, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	cu, ok := g.CompoundUnit(id)
	if !ok {
		return false
	}
	if cu.IsStandard {
		return r.record(self, true)
	}

	valid := true
	if ok, reason := IsCellMLIdentifier(cu.Name); !ok {
		r.add(self, fmt.Sprintf("Invalid units name '%s': %s", cu.Name, reason), "8.1.1", "name")
		valid = false
	}
	if _, clash := g.StandardUnitByName(cu.Name); clash || units.IsStandardName(cu.Name) {
		r.add(self, fmt.Sprintf("The name cannot be the same as a built-in units name, '%s'.", cu.Name), "8.1.3", "name")
		valid = false
	}
	for _, u := range g.Factors(cu.ID) {
		valid = Unit(g, u.ID, r) && valid
	}
	return r.record(self, valid)
}

// Unit checks one factor. Findings go on the parent compound unit since a
// factor is never edited on its own.
func Unit(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindUnit, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	u, ok := g.Unit(id)
	if !ok {
		return false
	}
	valid := true
	if _, found := g.CompoundUnit(u.ChildID); !found {
		r.add(ref(model.KindCompoundUnit, u.ParentID),
			fmt.Sprintf("Unit in units '%s' points to a blank unit.", unitName(g, u.ParentID)), "9.1.1", "child")
		valid = false
	}
	return r.record(self, valid)
}

func Math(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindMath, id)
	if _, ok := g.Math(id); !ok {
		return false
	}
	return r.record(self, true)
}

func Reset(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindReset, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	reset, ok := g.Reset(id)
	if !ok {
		return false
	}

	valid := true
	missing := func(hint, specRef, field string) {
		r.add(self, fmt.Sprintf(hint, reset.Name), specRef, field)
		valid = false
	}
	if reset.Order == nil {
		missing("Reset '%s' does not have an order set.", "12.1.2", "order")
	}
	if _, ok := g.Math(reset.TestValueID); !ok {
		missing("Reset '%s' does not reference a test_value.", "12", "test_value")
	}
	if _, ok := g.Math(reset.ResetValueID); !ok {
		missing("Reset '%s' does not reference a reset_value.", "12", "reset_value")
	}
	component, hasComponent := g.Component(reset.ComponentID)
	if !hasComponent {
		missing("Reset '%s' does not have a component.", "10.1.2.2", "component")
	}
	variable, hasVariable := g.Variable(reset.VariableID)
	if !hasVariable {
		missing("Reset '%s' does not reference a variable.", "12.1.1", "variable")
	}
	testVariable, hasTestVariable := g.Variable(reset.TestVariableID)
	if !hasTestVariable {
		missing("Reset '%s' does not reference a test_variable.", "12", "test_variable")
	}

	if hasComponent {
		if hasVariable && variable.ComponentID != component.ID {
			r.add(self, fmt.Sprintf("Reset '%s' in component '%s' refers to a variable '%s' which is in a different component, '%s'.",
				reset.Name, component.Name, variable.Name, componentName(g, variable.ComponentID)), "12", "variable", "component")
			valid = false
		}
		if hasTestVariable && testVariable.ComponentID != component.ID {
			r.add(self, fmt.Sprintf("Reset '%s' in component '%s' refers to a test_variable '%s' in a different component, '%s'.",
				reset.Name, component.Name, testVariable.Name, componentName(g, testVariable.ComponentID)), "12", "test_variable", "component")
			valid = false
		}
	}
	return r.record(self, valid)
}

// ComponentLocally checks the component's own name and variable names only.
func ComponentLocally(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindComponent, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	c, ok := g.Component(id)
	if !ok {
		return false
	}
	return r.record(self, componentLocal(g, c, r))
}

func componentLocal(g *model.Graph, c *model.Component, r *Report) bool {
	self := ref(model.KindComponent, c.ID)
	valid := true
	if ok, reason := IsCellMLIdentifier(c.Name); !ok {
		r.add(self, fmt.Sprintf("Invalid component name '%s': %s", c.Name, reason), "10.1.1", "name")
		valid = false
	}
	if encapsulatesItself(g, c) {
		r.add(self, fmt.Sprintf("Component '%s' is its own ancestor in the encapsulation hierarchy.", c.Name), "6.4.3.2", "parent")
		valid = false
	}
	names := make([]string, 0)
	for _, v := range g.ComponentVariables(c.ID) {
		names = append(names, v.Name)
	}
	for _, d := range duplicates(names) {
		r.add(self, fmt.Sprintf("Variable name '%s' is duplicated %d times in component '%s'.", d.name, d.count, c.Name), "11.1.1.1", "variables")
		valid = false
	}
	return valid
}

// encapsulatesItself follows the parent chain of c and reports whether it
// leads back to c.
func encapsulatesItself(g *model.Graph, c *model.Component) bool {
	seen := map[string]bool{}
	for parent := c.ParentID; parent != ""; {
		if parent == c.ID {
			return true
		}
		if seen[parent] {
			return false
		}
		seen[parent] = true
		p, ok := g.Component(parent)
		if !ok {
			return false
		}
		parent = p.ParentID
	}
	return false
}

// Component validates a component and everything nested inside it. A
// component is valid only when it and all of its descendants are.
func Component(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindComponent, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	if _, ok := g.Component(id); !ok {
		return false
	}

	type frame struct {
		id       string
		expanded bool
	}
	entered := map[string]bool{}
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c, ok := g.Component(f.id)
		if !ok {
			continue
		}
		if _, done := r.done(ref(model.KindComponent, c.ID)); done {
			continue
		}
		children := g.ChildComponents(c.ID)
		if !f.expanded {
			if entered[c.ID] {
				continue
			}
			entered[c.ID] = true
			stack = append(stack, frame{id: c.ID, expanded: true})
			for _, child := range children {
				if !entered[child.ID] {
					stack = append(stack, frame{id: child.ID})
				}
			}
			continue
		}

		valid := componentLocal(g, c, r)
		for _, child := range children {
			childValid, checked := r.done(ref(model.KindComponent, child.ID))
			valid = (childValid || !checked) && valid
		}
		for _, v := range g.ComponentVariables(c.ID) {
			valid = Variable(g, v.ID, r) && valid
		}
		for _, reset := range g.ComponentResets(c.ID) {
			valid = Reset(g, reset.ID, r) && valid
		}
		for _, m := range g.ComponentMaths(c.ID) {
			valid = Math(g, m.ID, r) && valid
		}
		r.record(ref(model.KindComponent, c.ID), valid)
	}
	valid, _ := r.done(self)
	return valid
}

// ModelLocally checks the model's own name, name uniqueness and that every
// unit used by its variables is available to it.
func ModelLocally(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindModel, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	if _, ok := g.Model(id); !ok {
		return false
	}
	return r.record(self, modelLocal(g, id, r))
}

func modelLocal(g *model.Graph, id string, r *Report) bool {
	m, _ := g.Model(id)
	self := ref(model.KindModel, id)
	valid := true
	if ok, reason := IsCellMLIdentifier(m.Name); !ok {
		r.add(self, fmt.Sprintf("Invalid model name '%s': %s", m.Name, reason), "4.2.1", "name")
		valid = false
	}

	components := g.ModelComponents(id)
	componentNames := make([]string, 0, len(components))
	for _, c := range components {
		componentNames = append(componentNames, c.Name)
	}
	for _, d := range duplicates(componentNames) {
		r.add(self, fmt.Sprintf("Component name '%s' is duplicated %d times in model '%s'.", d.name, d.count, m.Name), "10.1.1", "components")
		valid = false
	}

	unitNames := make([]string, 0)
	available := map[string]bool{}
	for _, cu := range g.ModelUnits(id) {
		unitNames = append(unitNames, cu.Name)
		available[cu.ID] = true
	}
	for _, d := range duplicates(unitNames) {
		r.add(self, fmt.Sprintf("Units name '%s' is duplicated %d times in model '%s'.", d.name, d.count, m.Name), "8.1.2", "compound_units")
		valid = false
	}

	for _, c := range components {
		for _, v := range g.ComponentVariables(c.ID) {
			cu, ok := g.CompoundUnit(v.CompoundUnitID)
			if !ok || cu.IsStandard || available[cu.ID] {
				continue
			}
			r.add(self, fmt.Sprintf("Variable '%s' in component '%s' has units '%s' which do not exist in this model, and are not built-in.",
				v.Name, c.Name, cu.Name), "11.1.1.2")
			valid = false
		}
	}
	return valid
}

// Model runs the full validation of a model: its own checks, every
// component tree, every model unit and the connection network.
func Model(g *model.Graph, id string, r *Report) bool {
	self := ref(model.KindModel, id)
	if valid, ok := r.done(self); ok {
		return valid
	}
	if _, ok := g.Model(id); !ok {
		return false
	}

	valid := modelLocal(g, id, r)
	for _, c := range g.ModelComponents(id) {
		valid = Component(g, c.ID, r) && valid
	}
	for _, cu := range g.ModelUnits(id) {
		valid = CompoundUnit(g, cu.ID, r) && valid
	}
	valid = Connections(g, id, r) && valid
	return r.record(self, valid)
}

type duplicate struct {
	name  string
	count int
}

// duplicates groups repeated names, in order of first appearance.
func duplicates(names []string) []duplicate {
	counts := make(map[string]int, len(names))
	var order []string
	for _, name := range names {
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	var out []duplicate
	for _, name := range order {
		if counts[name] > 1 {
			out = append(out, duplicate{name: name, count: counts[name]})
		}
	}
	return out
}

func componentName(g *model.Graph, id string) string {
	if c, ok := g.Component(id); ok {
		return c.Name
	}
	return ""
}

func variableName(g *model.Graph, id string) string {
	if v, ok := g.Variable(id); ok {
		return v.Name
	}
	return ""
}

func unitName(g *model.Graph, id string) string {
	if cu, ok := g.CompoundUnit(id); ok {
		return cu.Name
	}
	return ""
}
