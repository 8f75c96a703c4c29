package cellml

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormat is the bundled document format. It is a structural dump of
// the model shape, not CellML markup.
type YAMLFormat struct{}

var (
	_ Parser  = YAMLFormat{}
	_ Printer = YAMLFormat{}
)

func (YAMLFormat) Parse(r io.Reader) (ParsedModel, error) {
	doc := &ModelDoc{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Issues: []string{"document is empty"}}
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, &ParseError{Issues: typeErr.Errors}
		}
		return nil, &ParseError{Issues: []string{err.Error()}}
	}
	if issues := checkDocument(doc); len(issues) > 0 {
		return nil, &ParseError{Issues: issues}
	}
	return Parsed(doc), nil
}

func (YAMLFormat) Print(w io.Writer, doc *ModelDoc) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode model document: %w", err)
	}
	return enc.Close()
}

// checkDocument rejects documents the accessors cannot represent. Naming
// rules are left to validation.
func checkDocument(doc *ModelDoc) []string {
	var issues []string
	if doc.Name == "" {
		issues = append(issues, "model has no name")
	}
	for i, u := range doc.Units {
		if u.Name == "" {
			issues = append(issues, fmt.Sprintf("units %d has no name", i))
		}
		if u.Base && len(u.Factors) > 0 {
			issues = append(issues, fmt.Sprintf("built-in units %q cannot define factors", u.Name))
		}
		for j, f := range u.Factors {
			if f.Reference == "" {
				issues = append(issues, fmt.Sprintf("factor %d of units %q has no reference", j, u.Name))
			}
		}
	}
	for i, c := range doc.Components {
		if c.Name == "" {
			issues = append(issues, fmt.Sprintf("component %d has no name", i))
		}
		for j, v := range c.Variables {
			if v.Name == "" {
				issues = append(issues, fmt.Sprintf("variable %d of component %q has no name", j, c.Name))
			}
			for _, eq := range v.Equivalent {
				if eq.Component == "" || eq.Variable == "" {
					issues = append(issues, fmt.Sprintf("variable %q of component %q has an incomplete connection", v.Name, c.Name))
				}
			}
		}
	}
	return issues
}
