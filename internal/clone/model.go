package clone

import (
	"fmt"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

// Options tune the whole-model clone.
type Options struct {
	// Suffix marks cloned names while both trees coexist. Empty means DefaultSuffix.
	Suffix string
	// RemoveSuffix strips the marker from component, variable and reset names once
	// linking is complete.
	RemoveSuffix bool
}

func (o Options) suffix() string {
	if o.Suffix == "" {
		return DefaultSuffix
	}
	return o.Suffix
}

// modelCloner carries the state of one CopyAndLinkModel run.
type modelCloner struct {
	g      *model.Graph
	actor  model.Actor
	suffix string
	src    *model.Model
	dst    *model.Model

	components map[string]string
	variables  map[string]string
	maths      map[string]string
	units      map[string]string
	unitOrder  []string
	resets     []string
}

// CopyAndLinkModel clones a whole model. Units, components with their
// nesting, variables, maths and resets are copied first; references are
// then resolved by name inside the clone, falling back to standard units.
// Any reference that cannot be resolved fails the clone with
// ErrUnresolvedReference; the graph may hold a partial clone at that point
// so callers run it on a scratch graph.
func CopyAndLinkModel(g *model.Graph, modelID string, actor model.Actor, opts Options) (string, error) {
	src, ok := g.Model(modelID)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindModel, ID: modelID})
	}
	c := &modelCloner{
		g:          g,
		actor:      actor,
		suffix:     opts.suffix(),
		src:        src,
		components: map[string]string{},
		variables:  map[string]string{},
		maths:      map[string]string{},
		units:      map[string]string{},
	}

	dst := shallowCopy(src, actor, provenanceOf(src)).(*model.Model)
	if err := g.Add(dst); err != nil {
		return "", err
	}
	dedupeName(g, dst, c.suffix)
	c.dst = dst

	if err := c.copyUnits(); err != nil {
		return "", err
	}
	if err := c.copyComponents(); err != nil {
		return "", err
	}
	if err := c.linkVariables(); err != nil {
		return "", err
	}
	if err := c.linkResets(); err != nil {
		return "", err
	}

	if opts.RemoveSuffix {
		for _, id := range c.components {
			comp, _ := g.Component(id)
			comp.Name = trimSuffix(comp.Name, c.suffix)
		}
		for _, id := range c.variables {
			v, _ := g.Variable(id)
			v.Name = trimSuffix(v.Name, c.suffix)
		}
		for _, id := range c.resets {
			r, _ := g.Reset(id)
			r.Name = trimSuffix(r.Name, c.suffix)
		}
	}
	for _, id := range c.unitOrder {
		if _, err := units.UpdateSymbol(g, id); err != nil {
			return "", err
		}
	}
	return dst.ID, nil
}

func (c *modelCloner) unresolved(format string, args ...any) error {
	return fmt.Errorf("clone %q: %w: %s", c.src.Name, ErrUnresolvedReference, fmt.Sprintf(format, args...))
}

// copyUnits references standard units and copies model-local ones, then
// recreates their factors pointing inside the clone.
func (c *modelCloner) copyUnits() error {
	sources := c.g.ModelUnits(c.src.ID)
	for _, cu := range sources {
		if cu.IsStandard {
			c.dst.CompoundUnitIDs = append(c.dst.CompoundUnitIDs, cu.ID)
			continue
		}
		cp := shallowCopy(cu, c.actor, provenanceOf(cu)).(*model.CompoundUnit)
		cp.Name = cu.Name + c.suffix
		cp.Symbol = ""
		if err := c.g.Add(cp); err != nil {
			return err
		}
		c.dst.CompoundUnitIDs = append(c.dst.CompoundUnitIDs, cp.ID)
		c.units[cu.ID] = cp.ID
		c.unitOrder = append(c.unitOrder, cp.ID)
	}

	for _, cu := range sources {
		if cu.IsStandard {
			continue
		}
		parent := c.units[cu.ID]
		for _, factor := range c.g.Factors(cu.ID) {
			cp := shallowCopy(factor, c.actor, provenanceOf(factor)).(*model.Unit)
			cp.ParentID = parent
			if factor.ChildID != "" {
				child, ok := c.g.CompoundUnit(factor.ChildID)
				if !ok {
					return c.unresolved("units %q has a factor pointing at a missing unit", cu.Name)
				}
				id, err := c.resolveUnit(child)
				if err != nil {
					return err
				}
				cp.ChildID = id
			}
			if err := c.g.Add(cp); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveUnit finds the clone's counterpart of a source unit by name,
// falling back to the standard unit of the same name.
func (c *modelCloner) resolveUnit(src *model.CompoundUnit) (string, error) {
	if src.IsStandard {
		return src.ID, nil
	}
	if cu, ok := c.g.ModelUnitByName(c.dst.ID, src.Name+c.suffix); ok {
		return cu.ID, nil
	}
	if cu, ok := c.g.StandardUnitByName(src.Name); ok {
		return cu.ID, nil
	}
	return "", c.unresolved("units %q not found in clone", src.Name)
}

// copyComponents walks the encapsulation forest of the source model,
// copying each component with its variables and maths. Resets are copied
// without references; linkResets resolves them.
func (c *modelCloner) copyComponents() error {
	members := c.g.ModelComponents(c.src.ID)
	inModel := make(map[string]bool, len(members))
	for _, comp := range members {
		inModel[comp.ID] = true
	}

	type item struct {
		comp   *model.Component
		parent string
	}
	var stack []item
	for i := len(members) - 1; i >= 0; i-- {
		comp := members[i]
		if comp.ParentID == "" || !inModel[comp.ParentID] {
			stack = append(stack, item{comp: comp})
		}
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := c.components[it.comp.ID]; done {
			continue
		}
		cp := shallowCopy(it.comp, c.actor, provenanceOf(it.comp)).(*model.Component)
		cp.Name = it.comp.Name + c.suffix
		cp.ParentID = it.parent
		if err := c.g.Add(cp); err != nil {
			return err
		}
		c.dst.ComponentIDs = append(c.dst.ComponentIDs, cp.ID)
		c.components[it.comp.ID] = cp.ID

		for _, m := range c.g.ComponentMaths(it.comp.ID) {
			mcp := shallowCopy(m, c.actor, provenanceOf(m)).(*model.Math)
			mcp.ComponentID = cp.ID
			if err := c.g.Add(mcp); err != nil {
				return err
			}
			c.maths[m.ID] = mcp.ID
		}
		for _, v := range c.g.ComponentVariables(it.comp.ID) {
			vcp := shallowCopy(v, c.actor, provenanceOf(v)).(*model.Variable)
			vcp.Name = v.Name + c.suffix
			vcp.ComponentID = cp.ID
			if err := c.g.Add(vcp); err != nil {
				return err
			}
			c.variables[v.ID] = vcp.ID
		}

		children := c.g.ChildComponents(it.comp.ID)
		for i := len(children) - 1; i >= 0; i-- {
			if inModel[children[i].ID] {
				stack = append(stack, item{comp: children[i], parent: cp.ID})
			}
		}
	}
	return nil
}

// cloneVariable resolves a source variable to its clone by component and
// variable name.
func (c *modelCloner) cloneVariable(src *model.Variable) (*model.Variable, error) {
	comp, ok := c.g.Component(src.ComponentID)
	if !ok {
		return nil, c.unresolved("variable %q has no component", src.Name)
	}
	target, ok := c.g.ModelComponentByName(c.dst.ID, comp.Name+c.suffix)
	if !ok {
		return nil, c.unresolved("component %q not found in clone", comp.Name)
	}
	v, ok := c.g.ComponentVariableByName(target.ID, src.Name+c.suffix)
	if !ok {
		return nil, c.unresolved("variable %q not found in component %q of clone", src.Name, comp.Name)
	}
	return v, nil
}

func (c *modelCloner) linkVariables() error {
	for _, comp := range c.g.ModelComponents(c.src.ID) {
		for _, src := range c.g.ComponentVariables(comp.ID) {
			dst, ok := c.g.Variable(c.variables[src.ID])
			if !ok {
				return c.unresolved("variable %q was not copied", src.Name)
			}
			var err error
			if src.CompoundUnitID != "" {
				cu, ok := c.g.CompoundUnit(src.CompoundUnitID)
				if !ok {
					return c.unresolved("variable %q has missing units", src.Name)
				}
				if dst.CompoundUnitID, err = c.resolveUnit(cu); err != nil {
					return err
				}
			}
			if src.InitialVariableID != "" {
				initial, ok := c.g.Variable(src.InitialVariableID)
				if !ok {
					return c.unresolved("variable %q is initialised by a missing variable", src.Name)
				}
				resolved, err := c.cloneVariable(initial)
				if err != nil {
					return err
				}
				dst.InitialVariableID = resolved.ID
			}
			for _, eq := range c.g.Equivalents(src.ID) {
				partner, err := c.cloneVariable(eq)
				if err != nil {
					return err
				}
				if err := c.g.Connect(dst.ID, partner.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *modelCloner) linkResets() error {
	for _, comp := range c.g.ModelComponents(c.src.ID) {
		target := c.components[comp.ID]
		for _, src := range c.g.ComponentResets(comp.ID) {
			cp := shallowCopy(src, c.actor, provenanceOf(src)).(*model.Reset)
			cp.ComponentID = target
			if cp.Name != "" {
				cp.Name += c.suffix
			}
			for _, ref := range []struct {
				from string
				to   *string
			}{
				{src.VariableID, &cp.VariableID},
				{src.TestVariableID, &cp.TestVariableID},
			} {
				if ref.from == "" {
					continue
				}
				v, ok := c.g.Variable(ref.from)
				if !ok {
					return c.unresolved("reset %q references a missing variable", src.Name)
				}
				resolved, err := c.cloneVariable(v)
				if err != nil {
					return err
				}
				*ref.to = resolved.ID
			}
			for _, ref := range []struct {
				from string
				to   *string
			}{
				{src.TestValueID, &cp.TestValueID},
				{src.ResetValueID, &cp.ResetValueID},
			} {
				if ref.from == "" {
					continue
				}
				id, err := c.resolveMath(ref.from, target)
				if err != nil {
					return err
				}
				*ref.to = id
			}
			if err := c.g.Add(cp); err != nil {
				return err
			}
			c.resets = append(c.resets, cp.ID)
		}
	}
	return nil
}

// resolveMath maps a math block to its clone, copying it into component
// when it lives outside the cloned components.
func (c *modelCloner) resolveMath(id, component string) (string, error) {
	if mapped, ok := c.maths[id]; ok {
		return mapped, nil
	}
	m, ok := c.g.Math(id)
	if !ok {
		return "", c.unresolved("math %q not found", id)
	}
	cp := shallowCopy(m, c.actor, provenanceOf(m)).(*model.Math)
	cp.ComponentID = component
	if err := c.g.Add(cp); err != nil {
		return "", err
	}
	c.maths[id] = cp.ID
	return cp.ID, nil
}
