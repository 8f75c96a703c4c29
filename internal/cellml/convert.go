package cellml

import (
	"fmt"
	"strconv"
	"strings"

	"cellmlhub/internal/model"
)

// ConvertModel maps a stored model to the printer's document shape.
func ConvertModel(g *model.Graph, modelID string) (*ModelDoc, error) {
	m, ok := g.Model(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindModel, ID: modelID})
	}
	doc := &ModelDoc{Name: m.Name, ID: m.CellMLID}
	for _, cu := range g.ModelUnits(m.ID) {
		doc.Units = append(doc.Units, ConvertUnits(g, cu))
	}
	for _, c := range g.ModelComponents(m.ID) {
		doc.Components = append(doc.Components, ConvertComponent(g, c))
	}
	return doc, nil
}

func ConvertUnits(g *model.Graph, cu *model.CompoundUnit) UnitsDoc {
	doc := UnitsDoc{Name: cu.Name, ID: cu.CellMLID, Base: cu.IsStandard}
	if cu.IsStandard {
		return doc
	}
	for _, u := range g.Factors(cu.ID) {
		reference := u.Name
		if child, ok := g.CompoundUnit(u.ChildID); ok {
			reference = child.Name
		}
		doc.Factors = append(doc.Factors, FactorDoc{
			Reference:  reference,
			Prefix:     u.Prefix,
			Multiplier: u.Multiplier,
			Exponent:   u.Exponent,
			ID:         u.CellMLID,
		})
	}
	return doc
}

// ConvertComponent includes the component's own maths; math blocks used as
// reset test or reset values travel with their reset instead.
func ConvertComponent(g *model.Graph, c *model.Component) ComponentDoc {
	doc := ComponentDoc{Name: c.Name, ID: c.CellMLID}
	if parent, ok := g.Component(c.ParentID); ok {
		doc.Parent = parent.Name
	}
	for _, v := range g.ComponentVariables(c.ID) {
		doc.Variables = append(doc.Variables, ConvertVariable(g, v))
	}
	usedByResets := map[string]bool{}
	for _, r := range g.ComponentResets(c.ID) {
		doc.Resets = append(doc.Resets, ConvertReset(g, r))
		usedByResets[r.TestValueID] = true
		usedByResets[r.ResetValueID] = true
	}
	var maths []string
	for _, m := range g.ComponentMaths(c.ID) {
		if !usedByResets[m.ID] {
			maths = append(maths, m.MathML)
		}
	}
	doc.Math = strings.Join(maths, "\n")
	return doc
}

func ConvertVariable(g *model.Graph, v *model.Variable) VariableDoc {
	doc := VariableDoc{Name: v.Name, ID: v.CellMLID, Interface: v.InterfaceType}
	if cu, ok := g.CompoundUnit(v.CompoundUnitID); ok {
		doc.Units = cu.Name
	}
	switch {
	case v.InitialConstant != nil:
		doc.InitialValue = strconv.FormatFloat(*v.InitialConstant, 'g', -1, 64)
	case v.InitialVariableID != "":
		if iv, ok := g.Variable(v.InitialVariableID); ok {
			doc.InitialValue = iv.Name
		}
	}
	for _, eq := range g.Equivalents(v.ID) {
		comp, ok := g.Component(eq.ComponentID)
		if !ok {
			continue
		}
		doc.Equivalent = append(doc.Equivalent, EquivalenceDoc{Component: comp.Name, Variable: eq.Name})
	}
	return doc
}

func ConvertReset(g *model.Graph, r *model.Reset) ResetDoc {
	doc := ResetDoc{ID: r.CellMLID}
	if r.Order != nil {
		order := *r.Order
		doc.Order = &order
	}
	if v, ok := g.Variable(r.VariableID); ok {
		doc.Variable = v.Name
	}
	if v, ok := g.Variable(r.TestVariableID); ok {
		doc.TestVariable = v.Name
	}
	if m, ok := g.Math(r.TestValueID); ok {
		doc.TestValue = m.MathML
	}
	if m, ok := g.Math(r.ResetValueID); ok {
		doc.ResetValue = m.MathML
	}
	return doc
}
