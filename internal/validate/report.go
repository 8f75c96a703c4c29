package validate

import (
	"time"

	"cellmlhub/internal/model"
)

// Report accumulates the outcome of one validation run. Validators only
// write to the report; Apply copies the outcome onto the entities.
type Report struct {
	CheckedAt time.Time

	issues  map[model.Ref][]model.Issue
	valid   map[model.Ref]bool
	checked []model.Ref
	cycles  []Cycle
}

func NewReport(checkedAt time.Time) *Report {
	return &Report{
		CheckedAt: checkedAt,
		issues:    make(map[model.Ref][]model.Issue),
		valid:     make(map[model.Ref]bool),
	}
}

func (r *Report) add(ref model.Ref, hint, specRef string, fields ...string) {
	r.issues[ref] = append(r.issues[ref], model.Issue{Hint: hint, SpecRef: specRef, Fields: fields})
}

func (r *Report) record(ref model.Ref, valid bool) bool {
	if _, seen := r.valid[ref]; !seen {
		r.checked = append(r.checked, ref)
	}
	r.valid[ref] = valid
	return valid
}

// done returns the recorded outcome when ref was already validated in this run.
func (r *Report) done(ref model.Ref) (bool, bool) {
	valid, ok := r.valid[ref]
	return valid, ok
}

// Restore rebuilds a report from the validity stored on the entities, so
// error trees can be shown without validating again.
func Restore(g *model.Graph) *Report {
	r := NewReport(time.Time{})
	for _, e := range g.All() {
		validity := e.Base().Validity
		if validity == nil {
			continue
		}
		ref := model.RefOf(e)
		r.issues[ref] = append([]model.Issue(nil), validity.Issues...)
		r.record(ref, validity.Valid)
		if validity.CheckedAt.After(r.CheckedAt) {
			r.CheckedAt = validity.CheckedAt
		}
	}
	return r
}

// Issues returns the findings attached directly to ref.
func (r *Report) Issues(ref model.Ref) []model.Issue {
	return r.issues[ref]
}

// Valid returns the validity recorded for ref and whether ref was checked.
func (r *Report) Valid(ref model.Ref) (bool, bool) {
	return r.done(ref)
}

// Checked lists validated entities in the order they were checked.
func (r *Report) Checked() []model.Ref {
	return append([]model.Ref(nil), r.checked...)
}

// Cycles lists the equivalence loops found by connection checks in this run.
func (r *Report) Cycles() []Cycle {
	return append([]Cycle(nil), r.cycles...)
}

// IssueCount is the total number of findings in the run.
func (r *Report) IssueCount() int {
	total := 0
	for _, list := range r.issues {
		total += len(list)
	}
	return total
}

// ErrorNode is one branch of an error tree. Only branches holding at least
// one finding are kept.
type ErrorNode struct {
	Ref      model.Ref
	Name     string
	Issues   []model.Issue
	Count    int
	Children []*ErrorNode
}

// ErrorCount is the number of findings on ref and everything it owns.
func (r *Report) ErrorCount(g *model.Graph, ref model.Ref) int {
	return r.countErrors(g, ref, make(map[model.Ref]int))
}

// Tree rolls the findings below ref up into a tree.
func (r *Report) Tree(g *model.Graph, ref model.Ref) *ErrorNode {
	counts := make(map[model.Ref]int)
	r.countErrors(g, ref, counts)

	root := r.node(g, ref, counts)
	placed := map[model.Ref]bool{ref: true}
	queue := []*ErrorNode{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range treeChildren(g, current.Ref) {
			if placed[child] || counts[child] == 0 {
				continue
			}
			placed[child] = true
			node := r.node(g, child, counts)
			current.Children = append(current.Children, node)
			queue = append(queue, node)
		}
	}
	return root
}

func (r *Report) node(g *model.Graph, ref model.Ref, counts map[model.Ref]int) *ErrorNode {
	node := &ErrorNode{Ref: ref, Issues: r.issues[ref], Count: counts[ref]}
	if e, ok := g.Get(ref); ok {
		node.Name = e.Base().Name
	}
	return node
}

func (r *Report) countErrors(g *model.Graph, root model.Ref, memo map[model.Ref]int) int {
	type frame struct {
		ref      model.Ref
		expanded bool
	}
	onStack := map[model.Ref]bool{}
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := memo[f.ref]; ok {
			continue
		}
		children := treeChildren(g, f.ref)
		if f.expanded {
			total := len(r.issues[f.ref])
			for _, child := range children {
				total += memo[child]
			}
			memo[f.ref] = total
			continue
		}
		if onStack[f.ref] {
			continue
		}
		onStack[f.ref] = true
		stack = append(stack, frame{ref: f.ref, expanded: true})
		for _, child := range children {
			if _, ok := memo[child]; !ok && !onStack[child] {
				stack = append(stack, frame{ref: child})
			}
		}
	}
	return memo[root]
}

// treeChildren is the ownership tree used for roll-ups. A model lists its
// encapsulation roots rather than its flat membership so nested components
// are counted once, under their parent.
func treeChildren(g *model.Graph, ref model.Ref) []model.Ref {
	if ref.Kind != model.KindModel {
		return g.Downstream(ref)
	}
	var out []model.Ref
	for _, c := range modelRoots(g, ref.ID) {
		out = append(out, model.Ref{Kind: model.KindComponent, ID: c.ID})
	}
	for _, cu := range g.ModelUnits(ref.ID) {
		if !cu.IsStandard {
			out = append(out, model.Ref{Kind: model.KindCompoundUnit, ID: cu.ID})
		}
	}
	return out
}

// modelRoots returns the members of a model whose parent is not itself a
// member: the encapsulation roots plus any component orphaned from its parent.
// Components caught in a parent loop are unreachable from those roots, so the
// first member of each such loop is added as well.
func modelRoots(g *model.Graph, modelID string) []*model.Component {
	members := g.ModelComponents(modelID)
	inModel := make(map[string]bool, len(members))
	for _, c := range members {
		inModel[c.ID] = true
	}
	reached := make(map[string]bool, len(members))
	mark := func(root string) {
		stack := []string{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reached[id] {
				continue
			}
			reached[id] = true
			for _, child := range g.ChildComponents(id) {
				if inModel[child.ID] && !reached[child.ID] {
					stack = append(stack, child.ID)
				}
			}
		}
	}

	var out []*model.Component
	for _, c := range members {
		if c.ParentID == "" || !inModel[c.ParentID] {
			out = append(out, c)
			mark(c.ID)
		}
	}
	for _, c := range members {
		if !reached[c.ID] {
			out = append(out, c)
			mark(c.ID)
		}
	}
	return out
}

// Apply writes the outcome of the run onto every checked entity.
func (r *Report) Apply(g *model.Graph) {
	counts := make(map[model.Ref]int)
	for _, ref := range r.checked {
		e, ok := g.Get(ref)
		if !ok {
			continue
		}
		r.countErrors(g, ref, counts)
		var issues []model.Issue
		if own := r.issues[ref]; len(own) > 0 {
			issues = append(issues, own...)
		}
		e.Base().Validity = &model.Validity{
			Valid:      r.valid[ref],
			CheckedAt:  r.CheckedAt,
			Issues:     issues,
			ErrorCount: counts[ref],
		}
	}
}
