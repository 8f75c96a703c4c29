package clone

import (
	"fmt"

	"cellmlhub/internal/model"
	"cellmlhub/internal/units"
)

type DeleteMode string

const (
	// DeleteBase removes the entity alone and detaches everything that
	// referenced it. Owned entities survive, unattached.
	DeleteBase DeleteMode = "base"
	// DeleteDeep also removes what the entity owns, stopping at anything
	// still held by a container outside the deletion.
	DeleteDeep DeleteMode = "deep"
)

func ParseDeleteMode(name string) (DeleteMode, error) {
	switch DeleteMode(name) {
	case "", DeleteBase:
		return DeleteBase, nil
	case DeleteDeep:
		return DeleteDeep, nil
	default:
		return "", fmt.Errorf("unsupported delete mode: %s", name)
	}
}

// Delete removes ref, and with DeleteDeep its owned entities, returning
// every removed entity. Standard units and their factors are refused.
func Delete(g *model.Graph, ref model.Ref, mode DeleteMode) ([]model.Ref, error) {
	if _, err := g.MustGet(ref); err != nil {
		return nil, err
	}
	if err := units.CheckMutable(g, ref); err != nil {
		return nil, err
	}

	doomed := []model.Ref{ref}
	switch mode {
	case DeleteBase, "":
	case DeleteDeep:
		doomed = append(doomed, deletableClosure(g, ref)...)
	default:
		return nil, fmt.Errorf("unsupported delete mode: %s", mode)
	}
	for _, target := range doomed {
		if err := units.CheckMutable(g, target); err != nil {
			return nil, err
		}
	}

	stale := map[string]bool{}
	for _, target := range doomed {
		for _, link := range g.Referrers(target) {
			if link.Holder.Kind == model.KindUnit && link.Field.Name == "child" {
				if u, ok := g.Unit(link.Holder.ID); ok {
					stale[u.ParentID] = true
				}
			}
			g.Detach(link.Holder, link.Field, target.ID)
		}
		if u, ok := g.Unit(target.ID); ok {
			stale[u.ParentID] = true
		}
	}
	for _, target := range doomed {
		g.Remove(target)
	}
	for id := range stale {
		units.InvalidateSymbol(g, id)
	}
	return doomed, nil
}

// deletableClosure is the owned closure of root minus anything still held
// by a container outside the deletion. An entity whose single parent is
// being deleted goes with it whatever else lists it; exclusion propagates,
// so a component kept alive keeps its variables too.
func deletableClosure(g *model.Graph, root model.Ref) []model.Ref {
	closure := ownedClosure(g, root)
	doomed := map[model.Ref]bool{root: true}
	for _, ref := range closure {
		doomed[ref] = true
	}
	for changed := true; changed; {
		changed = false
		for _, ref := range closure {
			if doomed[ref] && heldElsewhere(g, ref, doomed) {
				doomed[ref] = false
				changed = true
			}
		}
	}
	out := make([]model.Ref, 0, len(closure))
	for _, ref := range closure {
		if doomed[ref] {
			out = append(out, ref)
		}
	}
	return out
}

func heldElsewhere(g *model.Graph, ref model.Ref, doomed map[model.Ref]bool) bool {
	fields, err := model.Schema(ref.Kind)
	if err != nil {
		return false
	}
	elsewhere := false
	for _, f := range fields {
		if f.Ownership != model.Upstream {
			continue
		}
		for _, id := range g.Refs(ref, f) {
			up := model.Ref{Kind: f.Target, ID: id}
			if _, ok := g.Get(up); !ok {
				continue
			}
			if !doomed[up] {
				elsewhere = true
			} else if f.Relation == model.RelSingle {
				return false
			}
		}
	}
	return elsewhere
}
