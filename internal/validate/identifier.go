package validate

import "strings"

const (
	reasonLeadingDigit = "CellML identifiers must not begin with a European numeric character [0-9], "
	reasonBadCharacter = "CellML identifiers must not contain any characters other than [a-zA-Z0-9_], "
	reasonEmpty        = "CellML identifiers must contain one or more basic Latin alphabetic characters, "
)

// IsCellMLIdentifier reports whether name is a valid CellML identifier and,
// when it is not, every rule it breaks.
func IsCellMLIdentifier(name string) (bool, string) {
	if name == "" {
		return false, reasonEmpty
	}
	var reason strings.Builder
	if isDigit(name[0]) {
		reason.WriteString(reasonLeadingDigit)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isDigit(c) && !isLatinLetter(c) && c != '_' {
			reason.WriteString(reasonBadCharacter)
			break
		}
	}
	return reason.Len() == 0, reason.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLatinLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
