package model

import "reflect"

// ChangeSet is the set of writes that turns one graph into another.
type ChangeSet struct {
	Upserts []Entity
	Deletes []Ref
}

func (c ChangeSet) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// Diff compares two snapshots of the same arena. Upserts follow the
// dependency order of kinds; deletes run in reverse.
func Diff(before, after *Graph) ChangeSet {
	var cs ChangeSet
	for _, kind := range Kinds {
		for _, e := range after.Entities(kind) {
			prev, ok := before.Get(RefOf(e))
			if ok && reflect.DeepEqual(prev, e) {
				continue
			}
			cs.Upserts = append(cs.Upserts, e)
		}
	}
	for i := len(Kinds) - 1; i >= 0; i-- {
		for _, e := range before.Entities(Kinds[i]) {
			ref := RefOf(e)
			if _, ok := after.Get(ref); !ok {
				cs.Deletes = append(cs.Deletes, ref)
			}
		}
	}
	return cs
}
