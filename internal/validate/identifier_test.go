package validate

import (
	"strings"
	"testing"
)

func TestIsCellMLIdentifier(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"v1", true},
		{"_", true},
		{"membrane_potential", true},
		{"V_m2", true},
		{"1v", false},
		{"", false},
		{"a b", false},
		{"a-b", false},
		{"café", false},
		{"9_lives!", false},
	}
	for _, tc := range cases {
		valid, reason := IsCellMLIdentifier(tc.name)
		if valid != tc.valid {
			t.Fatalf("IsCellMLIdentifier(%q) = %t (%s), want %t", tc.name, valid, reason, tc.valid)
		}
		if valid && reason != "" {
			t.Fatalf("valid identifier %q carries reason %q", tc.name, reason)
		}
		if !valid && reason == "" {
			t.Fatalf("invalid identifier %q has no reason", tc.name)
		}
	}
}

func TestIsCellMLIdentifierReportsEveryBrokenRule(t *testing.T) {
	_, reason := IsCellMLIdentifier("9_lives!")
	if !strings.Contains(reason, reasonLeadingDigit) || !strings.Contains(reason, reasonBadCharacter) {
		t.Fatalf("expected both rules in reason, got %q", reason)
	}
}
