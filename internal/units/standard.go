package units

import (
	"fmt"

	"cellmlhub/internal/model"
)

// Factor is one base term of a built-in unit definition.
type Factor struct {
	Unit     string
	Exponent float64
}

type Definition struct {
	Name    string
	Symbol  string
	Factors []Factor
}

// Standard lists the built-in units. Base units come first so derived
// definitions can refer to them while seeding.
var Standard = []Definition{
	{Name: "ampere", Symbol: "A"},
	{Name: "candela", Symbol: "cd"},
	{Name: "dimensionless", Symbol: ""},
	{Name: "kelvin", Symbol: "K"},
	{Name: "kilogram", Symbol: "kg"},
	{Name: "metre", Symbol: "m"},
	{Name: "mole", Symbol: "mol"},
	{Name: "second", Symbol: "s"},

	{Name: "becquerel", Symbol: "Bq", Factors: []Factor{{"second", -1}}},
	{Name: "coulomb", Symbol: "C", Factors: []Factor{{"ampere", 1}, {"second", 1}}},
	{Name: "farad", Symbol: "F", Factors: []Factor{{"ampere", 2}, {"kilogram", -1}, {"metre", -2}, {"second", 4}}},
	{Name: "gram", Symbol: "g", Factors: []Factor{{"kilogram", 1}}},
	{Name: "gray", Symbol: "Gy", Factors: []Factor{{"metre", 2}, {"second", -2}}},
	{Name: "henry", Symbol: "H", Factors: []Factor{{"ampere", -2}, {"kilogram", 1}, {"metre", 2}, {"second", -2}}},
	{Name: "hertz", Symbol: "Hz", Factors: []Factor{{"second", -1}}},
	{Name: "joule", Symbol: "J", Factors: []Factor{{"kilogram", 1}, {"metre", 2}, {"second", -2}}},
	{Name: "katal", Symbol: "kat", Factors: []Factor{{"mole", 1}, {"second", -1}}},
	{Name: "litre", Symbol: "l", Factors: []Factor{{"metre", 3}}},
	{Name: "lumen", Symbol: "lm", Factors: []Factor{{"candela", 1}}},
	{Name: "lux", Symbol: "lx", Factors: []Factor{{"candela", 1}, {"metre", -2}}},
	{Name: "newton", Symbol: "N", Factors: []Factor{{"kilogram", 1}, {"metre", 1}, {"second", -2}}},
	{Name: "ohm", Symbol: "&Omega;", Factors: []Factor{{"ampere", -2}, {"kilogram", 1}, {"metre", 2}, {"second", -3}}},
	{Name: "pascal", Symbol: "Pa", Factors: []Factor{{"kilogram", 1}, {"metre", -1}, {"second", -2}}},
	{Name: "radian", Symbol: "rad", Factors: []Factor{{"dimensionless", 1}}},
	{Name: "siemens", Symbol: "S", Factors: []Factor{{"ampere", 2}, {"kilogram", -1}, {"metre", -2}, {"second", 3}}},
	{Name: "sievert", Symbol: "Sv", Factors: []Factor{{"metre", 2}, {"second", -2}}},
	{Name: "steradian", Symbol: "sr", Factors: []Factor{{"dimensionless", 1}}},
	{Name: "tesla", Symbol: "T", Factors: []Factor{{"ampere", -1}, {"kilogram", 1}, {"second", -2}}},
	{Name: "volt", Symbol: "V", Factors: []Factor{{"ampere", -1}, {"kilogram", 1}, {"metre", 2}, {"second", -3}}},
	{Name: "watt", Symbol: "W", Factors: []Factor{{"kilogram", 1}, {"metre", 2}, {"second", -3}}},
	{Name: "weber", Symbol: "Wb", Factors: []Factor{{"ampere", -1}, {"kilogram", 1}, {"metre", 2}, {"second", -2}}},

	{Name: "liter", Symbol: "l", Factors: []Factor{{"litre", 1}}},
	{Name: "meter", Symbol: "m", Factors: []Factor{{"metre", 1}}},
}

var standardNames = func() map[string]struct{} {
	out := make(map[string]struct{}, len(Standard))
	for _, def := range Standard {
		out[def.Name] = struct{}{}
	}
	return out
}()

func IsStandardName(name string) bool {
	_, ok := standardNames[name]
	return ok
}

// StandardID is the stable identifier of a built-in unit, identical in every store.
func StandardID(name string) string {
	return "std-" + name
}

// Seed installs the built-in units that are missing from g and returns how
// many were added. Existing standard units are left untouched.
func Seed(g *model.Graph) (int, error) {
	added := 0
	for _, def := range Standard {
		if _, ok := g.StandardUnitByName(def.Name); ok {
			continue
		}
		cu := &model.CompoundUnit{
			Named: model.Named{
				ID:       StandardID(def.Name),
				Name:     def.Name,
				Validity: &model.Validity{Valid: true},
			},
			IsStandard: true,
			Symbol:     def.Symbol,
		}
		if err := g.Add(cu); err != nil {
			return added, fmt.Errorf("seed %s: %w", def.Name, err)
		}
		for i, f := range def.Factors {
			base, ok := g.StandardUnitByName(f.Unit)
			if !ok {
				continue
			}
			u := &model.Unit{
				Named: model.Named{
					ID:   fmt.Sprintf("%s-%d", cu.ID, i),
					Name: base.Name,
				},
				ParentID:   cu.ID,
				ChildID:    base.ID,
				Exponent:   f.Exponent,
				Multiplier: 1,
			}
			if err := g.Add(u); err != nil {
				return added, fmt.Errorf("seed %s factor %s: %w", def.Name, f.Unit, err)
			}
		}
		added++
	}
	return added, nil
}
