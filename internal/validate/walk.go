package validate

import (
	"slices"

	"cellmlhub/internal/model"
)

// walker visits one connected set of the equivalence graph. enter is called
// for every variable reached; backEdge for every edge closing a loop, with
// the active path from the revisited variable down to the current one.
type walker struct {
	enter    func(id string)
	backEdge func(path []string)
}

// neighbours returns the distinct, existing equivalents of a variable.
func neighbours(g *model.Graph, id string) []string {
	v, ok := g.Variable(id)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v.EquivalentIDs))
	for _, eq := range v.EquivalentIDs {
		if _, ok := g.Variable(eq); !ok || slices.Contains(out, eq) {
			continue
		}
		out = append(out, eq)
	}
	return out
}

// walk runs an iterative depth-first search from start. Variables finished
// by this or an earlier walk are recorded in done and never entered again.
func (w walker) walk(g *model.Graph, start string, done map[string]bool) {
	if done[start] {
		return
	}
	type frame struct {
		id     string
		parent string
		adj    []string
		next   int
	}
	onPath := map[string]int{start: 0}
	stack := []frame{{id: start, adj: neighbours(g, start)}}
	if w.enter != nil {
		w.enter(start)
	}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.adj) {
			delete(onPath, top.id)
			done[top.id] = true
			stack = stack[:len(stack)-1]
			continue
		}
		next := top.adj[top.next]
		top.next++
		if next == top.parent || next == top.id {
			continue
		}
		if index, ok := onPath[next]; ok {
			if w.backEdge != nil {
				path := make([]string, 0, len(stack)-index)
				for _, f := range stack[index:] {
					path = append(path, f.id)
				}
				w.backEdge(path)
			}
			continue
		}
		if done[next] {
			continue
		}
		parent := top.id
		onPath[next] = len(stack)
		if w.enter != nil {
			w.enter(next)
		}
		stack = append(stack, frame{id: next, parent: parent, adj: neighbours(g, next)})
	}
}
