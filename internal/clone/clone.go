package clone

import (
	"errors"
	"fmt"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

var ErrUnresolvedReference = errors.New("unresolved reference")

// Strategy selects how far a copy reaches beyond the entity itself.
type Strategy string

const (
	StrategyShallow Strategy = "shallow"
	StrategyLink    Strategy = "link"
	StrategyDeep    Strategy = "deep"
)

func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyShallow:
		return StrategyShallow, nil
	case StrategyLink:
		return StrategyLink, nil
	case StrategyDeep:
		return StrategyDeep, nil
	default:
		return "", fmt.Errorf("unsupported copy strategy: %s", name)
	}
}

// Shallow duplicates the local fields of one entity. The copy holds no
// relations, belongs to actor and records the original as its source. Copies
// of standard units are ordinary units.
func Shallow(g *model.Graph, ref model.Ref, actor model.Actor) (model.Ref, model.Ref, error) {
	orig, err := g.MustGet(ref)
	if err != nil {
		return model.Ref{}, model.Ref{}, err
	}
	cp := shallowCopy(orig, actor, provenanceOf(orig))
	if err := g.Add(cp); err != nil {
		return model.Ref{}, model.Ref{}, err
	}
	dedupeName(g, cp, DefaultSuffix)
	return ref, model.RefOf(cp), nil
}

func shallowCopy(orig model.Entity, actor model.Actor, from *model.Provenance) model.Entity {
	cp := orig.Clone()
	base := cp.Base()
	base.ID = model.NewID()
	base.Owner = actor
	base.ImportedFrom = from
	base.Validity = nil
	model.ClearRelations(cp)
	if cu, ok := cp.(*model.CompoundUnit); ok {
		cu.IsStandard = false
	}
	return cp
}

func provenanceOf(orig model.Entity) *model.Provenance {
	base := orig.Base()
	return &model.Provenance{
		SourceKind:      orig.Kind(),
		SourceID:        base.ID,
		SourceReference: base.CellMLID,
		Attribution:     fmt.Sprintf("Copied from: %s (%s)", base.Name, base.Owner),
	}
}

// chainedProvenance keeps the ultimate source of an entity that was itself
// imported; otherwise it points at the entity.
func chainedProvenance(orig model.Entity) *model.Provenance {
	if from := orig.Base().ImportedFrom; from != nil {
		cp := *from
		return &cp
	}
	return provenanceOf(orig)
}

func pair(g *model.Graph, from, to model.Ref) (model.Entity, model.Entity, error) {
	if from.Kind != to.Kind {
		return nil, nil, fmt.Errorf("cannot copy %s onto %s", from.Kind, to.Kind)
	}
	src, err := g.MustGet(from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := g.MustGet(to)
	if err != nil {
		return nil, nil, err
	}
	if err := units.CheckMutable(g, to); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Link makes to share every relation of from by reference. Reverse single
// relations are skipped: a child can only have one parent.
func Link(g *model.Graph, from, to model.Ref) error {
	_, dst, err := pair(g, from, to)
	if err != nil {
		return err
	}
	fields, err := model.Schema(from.Kind)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Relation == model.RelReverse {
			continue
		}
		for _, id := range g.Refs(from, f) {
			if err := g.Attach(to, f, id); err != nil {
				return fmt.Errorf("link %s.%s: %w", from, f.Name, err)
			}
		}
	}
	dedupeName(g, dst, DefaultSuffix)
	return nil
}

// Deep duplicates everything from owns and attaches the duplicates to to.
// References leaving the copied set are shared, except containers, which
// stay with the original, and equivalences, which are dropped.
func Deep(g *model.Graph, from, to model.Ref, actor model.Actor) error {
	_, dst, err := pair(g, from, to)
	if err != nil {
		return err
	}

	owned := ownedClosure(g, from)
	mapped := map[model.Ref]string{from: to.ID}
	copies := make([]model.Ref, 0, len(owned))
	for _, ref := range owned {
		orig, _ := g.Get(ref)
		cp := shallowCopy(orig, actor, chainedProvenance(orig))
		if err := g.Add(cp); err != nil {
			return err
		}
		mapped[ref] = cp.Base().ID
		copies = append(copies, model.RefOf(cp))
	}

	rewire := func(orig, cp model.Ref) error {
		fields, err := model.Schema(orig.Kind)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if !f.Forward() {
				continue
			}
			for _, id := range g.Refs(orig, f) {
				target := model.Ref{Kind: f.Target, ID: id}
				if copyID, ok := mapped[target]; ok {
					id = copyID
				} else if f.Ownership == model.Upstream || f.Relation == model.RelSymmetric {
					continue
				}
				if err := g.Attach(cp, f, id); err != nil {
					return fmt.Errorf("deep copy %s.%s: %w", orig, f.Name, err)
				}
			}
		}
		return nil
	}
	if err := rewire(from, to); err != nil {
		return err
	}
	for i, ref := range owned {
		if err := rewire(ref, copies[i]); err != nil {
			return err
		}
	}
	dedupeName(g, dst, DefaultSuffix)
	return nil
}

// ownedClosure lists everything reachable from root through owned
// relations, root excluded, in discovery order.
func ownedClosure(g *model.Graph, root model.Ref) []model.Ref {
	seen := map[model.Ref]bool{root: true}
	var out []model.Ref
	stack := []model.Ref{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range g.Downstream(current) {
			if seen[child] {
				continue
			}
			if _, ok := g.Get(child); !ok {
				continue
			}
			seen[child] = true
			out = append(out, child)
			stack = append(stack, child)
		}
	}
	return out
}

// Copy makes a shallow copy of ref and then links or deep copies its
// relations according to strategy. It returns the new entity.
func Copy(g *model.Graph, ref model.Ref, actor model.Actor, strategy Strategy) (model.Ref, error) {
	orig, cp, err := Shallow(g, ref, actor)
	if err != nil {
		return model.Ref{}, err
	}
	switch strategy {
	case StrategyShallow, "":
	case StrategyLink:
		err = Link(g, orig, cp)
	case StrategyDeep:
		err = Deep(g, orig, cp, actor)
	default:
		err = fmt.Errorf("unsupported copy strategy: %s", strategy)
	}
	if err != nil {
		return model.Ref{}, err
	}
	return cp, nil
}
