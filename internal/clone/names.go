package clone

import (
	"fmt"
	"strings"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

// DefaultSuffix marks names produced by a copy.
const DefaultSuffix = "_copy"

// uniqueName returns name when it is free, otherwise name+suffix, then
// name+suffix+2 and so on.
func uniqueName(name, suffix string, taken map[string]struct{}) string {
	if _, exists := taken[name]; !exists {
		return name
	}
	candidate := name + suffix
	for n := 2; ; n++ {
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s%s%d", name, suffix, n)
	}
}

// dedupeName renames e when another entity in its naming scope already uses
// its name.
func dedupeName(g *model.Graph, e model.Entity, suffix string) {
	base := e.Base()
	base.Name = uniqueName(base.Name, suffix, scopeNames(g, e))
}

// scopeNames collects the names e must not share: models of the same
// owner, components of the same models, variables of the same component and
// units of the same models plus every standard unit name.
func scopeNames(g *model.Graph, e model.Entity) map[string]struct{} {
	taken := map[string]struct{}{}
	self := e.Base().ID
	add := func(id, name string) {
		if id != self {
			taken[name] = struct{}{}
		}
	}
	switch x := e.(type) {
	case *model.Model:
		for _, m := range g.Models() {
			if m.Owner == x.Owner {
				add(m.ID, m.Name)
			}
		}
	case *model.Component:
		for _, m := range g.ModelsOfComponent(x.ID) {
			for _, c := range g.ModelComponents(m.ID) {
				add(c.ID, c.Name)
			}
		}
	case *model.Variable:
		for _, v := range g.ComponentVariables(x.ComponentID) {
			add(v.ID, v.Name)
		}
	case *model.CompoundUnit:
		for _, def := range units.Standard {
			taken[def.Name] = struct{}{}
		}
		for _, m := range g.ModelsOfUnit(x.ID) {
			for _, cu := range g.ModelUnits(m.ID) {
				add(cu.ID, cu.Name)
			}
		}
	}
	return taken
}

func trimSuffix(name, suffix string) string {
	if suffix == "" {
		return name
	}
	return strings.TrimSuffix(name, suffix)
}
