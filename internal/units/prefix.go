package units

import "strconv"

type Prefix struct {
	Name   string
	Value  int
	Symbol string
}

// Prefixes are the SI prefix names followed by the bare power-of-ten forms
// a unit reference may carry instead of a name.
var Prefixes = func() []Prefix {
	out := []Prefix{
		{"yotta", 24, "Y"},
		{"zetta", 21, "Z"},
		{"exa", 18, "E"},
		{"peta", 15, "P"},
		{"tera", 12, "T"},
		{"giga", 9, "G"},
		{"mega", 6, "M"},
		{"kilo", 3, "k"},
		{"hecto", 2, "h"},
		{"deca", 1, "da"},
		{"", 0, ""},
		{"deci", -1, "d"},
		{"centi", -2, "c"},
		{"milli", -3, "m"},
		{"micro", -6, "&mu;"},
		{"nano", -9, "n"},
		{"pico", -12, "p"},
		{"femto", -15, "f"},
		{"atto", -18, "a"},
		{"zepto", -21, "z"},
		{"yocto", -24, "y"},
	}
	for power := 24; power >= -24; power-- {
		out = append(out, Prefix{Name: strconv.Itoa(power), Value: power, Symbol: powerSymbol(power)})
	}
	return out
}()

func powerSymbol(power int) string {
	if power >= 2 && power <= 9 {
		return "(1e0" + strconv.Itoa(power) + ")"
	}
	return "(1e" + strconv.Itoa(power) + ")"
}

func LookupPrefix(name string) (Prefix, bool) {
	for _, p := range Prefixes {
		if p.Name == name {
			return p, true
		}
	}
	return Prefix{}, false
}

// PrefixSymbol returns the display symbol for a prefix name. Unknown
// prefixes are shown as written.
func PrefixSymbol(name string) string {
	if p, ok := LookupPrefix(name); ok {
		return p.Symbol
	}
	return name
}
