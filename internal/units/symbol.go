package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cellmlhub/internal/model"
)

var (
	ErrStandardUnitImmutable = errors.New("standard units cannot be changed")
	ErrStandardNameCollision = errors.New("name collides with a standard unit")
)

// UpdateSymbol fills in the display symbol of a compound unit and of every
// unit it is built from. Units that already carry a symbol are left as they
// are; call InvalidateSymbol first to force recomputation.
func UpdateSymbol(g *model.Graph, id string) (string, error) {
	root, ok := g.CompoundUnit(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindCompoundUnit, ID: id})
	}
	if root.IsStandard || root.Symbol != "" {
		return root.Symbol, nil
	}

	type frame struct {
		id       string
		expanded bool
	}
	inProgress := map[string]bool{}
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cu, ok := g.CompoundUnit(top.id)
		if !ok || cu.IsStandard || cu.Symbol != "" {
			continue
		}
		if top.expanded {
			cu.Symbol = compose(g, cu)
			delete(inProgress, cu.ID)
			continue
		}
		if inProgress[cu.ID] {
			continue
		}
		inProgress[cu.ID] = true
		stack = append(stack, frame{id: cu.ID, expanded: true})
		for _, u := range g.Factors(cu.ID) {
			if u.ChildID != "" && !inProgress[u.ChildID] {
				stack = append(stack, frame{id: u.ChildID})
			}
		}
	}
	return root.Symbol, nil
}

func compose(g *model.Graph, cu *model.CompoundUnit) string {
	factors := g.Factors(cu.ID)
	if len(factors) == 0 {
		return cu.Name
	}
	terms := make([]string, 0, len(factors))
	for _, u := range factors {
		terms = append(terms, PrefixSymbol(u.Prefix)+"("+childSymbol(g, u)+")"+exponentSuffix(u.Exponent))
	}
	return strings.Join(terms, ".")
}

// childSymbol shows a child without a symbol, such as dimensionless or a
// unit still being composed, by its name.
func childSymbol(g *model.Graph, u *model.Unit) string {
	child, ok := g.CompoundUnit(u.ChildID)
	if !ok {
		return "?"
	}
	if child.Symbol == "" {
		return child.Name
	}
	return child.Symbol
}

func exponentSuffix(exponent float64) string {
	if exponent == 1 {
		return ""
	}
	return "<sup>" + formatNumber(exponent) + "</sup>"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// InvalidateSymbol clears the memoized symbol of a unit and of every
// non-standard unit built from it, directly or transitively.
func InvalidateSymbol(g *model.Graph, id string) {
	seen := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		cu, ok := g.CompoundUnit(current)
		if !ok || cu.IsStandard {
			continue
		}
		cu.Symbol = ""
		for _, u := range g.Units() {
			if u.ChildID == current {
				queue = append(queue, u.ParentID)
			}
		}
	}
}

// Formula is the per-factor breakdown of a compound unit.
type Formula struct {
	Terms      []string
	Multiplier float64
}

func (f Formula) String() string {
	out := strings.Join(f.Terms, " ")
	if f.Multiplier != 1 {
		out = formatNumber(f.Multiplier) + " " + out
	}
	return strings.TrimSpace(out)
}

func FormulaOf(g *model.Graph, id string) (Formula, error) {
	if _, ok := g.CompoundUnit(id); !ok {
		return Formula{}, fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindCompoundUnit, ID: id})
	}
	out := Formula{Multiplier: 1}
	for _, u := range g.Factors(id) {
		if u.Multiplier != 0 {
			out.Multiplier *= u.Multiplier
		}
		symbol := "?"
		if child, ok := g.CompoundUnit(u.ChildID); ok {
			symbol = child.Symbol
			if symbol == "" {
				symbol = child.Name
			}
		}
		out.Terms = append(out.Terms, PrefixSymbol(u.Prefix)+symbol+exponentSuffix(u.Exponent))
	}
	return out, nil
}

// CheckMutable refuses any structural change to a standard unit or to one
// of its factors. Other entities always pass.
func CheckMutable(g *model.Graph, ref model.Ref) error {
	id := ref.ID
	switch ref.Kind {
	case model.KindUnit:
		u, ok := g.Unit(ref.ID)
		if !ok {
			return nil
		}
		id = u.ParentID
	case model.KindCompoundUnit:
	default:
		return nil
	}
	if cu, ok := g.CompoundUnit(id); ok && cu.IsStandard {
		return fmt.Errorf("%w: %s", ErrStandardUnitImmutable, cu.Name)
	}
	return nil
}

// Rename changes a model-local unit's name. Standard units cannot be renamed
// and no unit may take a standard unit's name.
func Rename(g *model.Graph, id, name string) error {
	cu, ok := g.CompoundUnit(id)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindCompoundUnit, ID: id})
	}
	if cu.IsStandard {
		return fmt.Errorf("%w: %s", ErrStandardUnitImmutable, cu.Name)
	}
	if IsStandardName(name) {
		return fmt.Errorf("%w: %s", ErrStandardNameCollision, name)
	}
	if _, ok := g.StandardUnitByName(name); ok {
		return fmt.Errorf("%w: %s", ErrStandardNameCollision, name)
	}
	cu.Name = name
	InvalidateSymbol(g, cu.ID)
	return nil
}
