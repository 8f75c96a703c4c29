package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cellmlhub/internal/model"
)

// Cycle is one loop in the equivalence graph. Variables starts at the
// alphabetically first member and does not repeat it at the end.
type Cycle struct {
	Variables   []string
	Description string
}

// Connections checks the equivalence network of a model: no variable may be
// equivalent to one in its own component, the network must be acyclic and,
// when it is, reset orders must be unique within each connected set.
func Connections(g *model.Graph, modelID string, r *Report) bool {
	self := ref(model.KindModel, modelID)
	valid := true

	reported := map[[2]string]bool{}
	for _, c := range g.ModelComponents(modelID) {
		compRef := ref(model.KindComponent, c.ID)
		for _, v := range g.ComponentVariables(c.ID) {
			for _, ev := range g.Equivalents(v.ID) {
				if ev.ComponentID == "" || !componentExists(g, ev.ComponentID) {
					hint := fmt.Sprintf("Variable '%s' is equivalent to variable '%s' in component '%s' but does not have a parent component.",
						ev.Name, v.Name, c.Name)
					r.add(ref(model.KindVariable, ev.ID), hint, "17")
					r.add(compRef, hint, "17")
					valid = false
					continue
				}
				if ev.ComponentID != c.ID {
					continue
				}
				pair := [2]string{v.ID, ev.ID}
				if pair[0] > pair[1] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				if reported[pair] {
					continue
				}
				reported[pair] = true
				r.add(compRef, fmt.Sprintf("Variable '%s' and equivalent variable '%s' are both in the same component '%s'.",
					v.Name, ev.Name, c.Name), "17.1.2")
				valid = false
			}
		}
	}

	cycles := CyclicVariables(g, modelID)
	r.cycles = append(r.cycles, cycles...)
	if len(cycles) > 0 {
		noun := "loop"
		if len(cycles) > 1 {
			noun = "loops"
		}
		descriptions := make([]string, 0, len(cycles))
		for _, c := range cycles {
			descriptions = append(descriptions, c.Description)
		}
		r.add(self, fmt.Sprintf("Cyclic variables exist, %d %s found (Component,Variable): %s",
			len(cycles), noun, strings.Join(descriptions, "; ")), "19.10.5")
		return false
	}

	for _, conflict := range ResetOrderConflicts(g, modelID) {
		r.add(self, conflict, "12.1.1.2")
		valid = false
	}
	return valid
}

func componentExists(g *model.Graph, id string) bool {
	_, ok := g.Component(id)
	return ok
}

// CyclicVariables finds every distinct loop in the equivalence graph reached
// from the model's variables. Each loop is reported once whatever variable
// the search entered it from and whichever way round it was walked.
func CyclicVariables(g *model.Graph, modelID string) []Cycle {
	done := map[string]bool{}
	seen := map[string]bool{}
	var out []Cycle
	w := walker{
		backEdge: func(path []string) {
			if len(path) < 2 {
				return
			}
			members := canonicalCycle(g, path)
			key := strings.Join(members, "|")
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, Cycle{Variables: members, Description: describeCycle(g, members)})
		},
	}
	for _, c := range g.ModelComponents(modelID) {
		for _, v := range g.ComponentVariables(c.ID) {
			if done[v.ID] || len(neighbours(g, v.ID)) < 2 {
				continue
			}
			w.walk(g, v.ID, done)
		}
	}
	return out
}

type sortKey struct {
	variable  string
	component string
	id        string
}

func keyOf(g *model.Graph, id string) sortKey {
	v, _ := g.Variable(id)
	return sortKey{variable: v.Name, component: componentName(g, v.ComponentID), id: id}
}

func (a sortKey) less(b sortKey) bool {
	if a.variable != b.variable {
		return a.variable < b.variable
	}
	if a.component != b.component {
		return a.component < b.component
	}
	return a.id < b.id
}

// canonicalCycle rotates a loop to start at its alphabetically first
// variable and picks the direction whose second member sorts first.
func canonicalCycle(g *model.Graph, path []string) []string {
	n := len(path)
	start := 0
	for i := 1; i < n; i++ {
		if keyOf(g, path[i]).less(keyOf(g, path[start])) {
			start = i
		}
	}
	forward := make([]string, 0, n)
	backward := make([]string, 0, n)
	for i := 0; i < n; i++ {
		forward = append(forward, path[(start+i)%n])
		backward = append(backward, path[(start-i+n)%n])
	}
	if keyOf(g, backward[1]).less(keyOf(g, forward[1])) {
		return backward
	}
	return forward
}

func describeCycle(g *model.Graph, members []string) string {
	parts := make([]string, 0, len(members)+1)
	for _, id := range append(append([]string(nil), members...), members[0]) {
		v, _ := g.Variable(id)
		parts = append(parts, fmt.Sprintf("(%s, %s)", componentName(g, v.ComponentID), v.Name))
	}
	return strings.Join(parts, " -> ")
}

// ResetOrderConflicts collects, for every connected set of equivalent
// variables, the resets on those variables and describes each order value
// used by more than one of them. Unset orders are left to the reset checks.
func ResetOrderConflicts(g *model.Graph, modelID string) []string {
	resetsByVariable := map[string][]*model.Reset{}
	for _, reset := range g.Resets() {
		if reset.VariableID != "" {
			resetsByVariable[reset.VariableID] = append(resetsByVariable[reset.VariableID], reset)
		}
	}

	done := map[string]bool{}
	var out []string
	for _, c := range g.ModelComponents(modelID) {
		for _, v := range g.ComponentVariables(c.ID) {
			if done[v.ID] || len(neighbours(g, v.ID)) == 0 {
				continue
			}
			buckets := map[int][]*model.Reset{}
			w := walker{enter: func(id string) {
				for _, reset := range resetsByVariable[id] {
					if reset.Order != nil {
						buckets[*reset.Order] = append(buckets[*reset.Order], reset)
					}
				}
			}}
			w.walk(g, v.ID, done)

			orders := make([]int, 0, len(buckets))
			for order := range buckets {
				orders = append(orders, order)
			}
			sort.Ints(orders)
			for _, order := range orders {
				resets := buckets[order]
				if len(resets) < 2 {
					continue
				}
				orderText := strconv.Itoa(order)
				var b strings.Builder
				b.WriteString("Non-unique reset order of " + orderText + " found within equivalent variable set:")
				for _, reset := range resets {
					variable, _ := g.Variable(reset.VariableID)
					fmt.Fprintf(&b, " - variable '%s' in component '%s' has reset with order %s",
						variable.Name, componentName(g, variable.ComponentID), orderText)
				}
				out = append(out, b.String())
			}
		}
	}
	return out
}
