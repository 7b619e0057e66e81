// Index and uniqueness-constraint statements.

package cypher

import "fmt"

// SchemaStatement is a standalone index or constraint statement. It has no
// parameters and cannot be combined with pattern clauses.
type SchemaStatement struct {
	drop       bool
	constraint bool
	label      string
	property   string
}

// CreateIndex renders "CREATE INDEX ON :Label(property)".
func CreateIndex(label, property string) *SchemaStatement {
	return &SchemaStatement{label: label, property: property}
}

// DropIndex renders "DROP INDEX ON :Label(property)".
func DropIndex(label, property string) *SchemaStatement {
	return &SchemaStatement{drop: true, label: label, property: property}
}

// CreateConstraint renders
// "CREATE CONSTRAINT ON (a:Label) ASSERT a.property IS UNIQUE".
func CreateConstraint(label, property string) *SchemaStatement {
	return &SchemaStatement{constraint: true, label: label, property: property}
}

// DropConstraint renders
// "DROP CONSTRAINT ON (a:Label) ASSERT a.property IS UNIQUE".
func DropConstraint(label, property string) *SchemaStatement {
	return &SchemaStatement{drop: true, constraint: true, label: label, property: property}
}

// Label returns the normalized label.
func (s *SchemaStatement) Label() string { return NormalizeLabels(s.label) }

// Property returns the indexed or constrained property.
func (s *SchemaStatement) Property() string { return s.property }

// IsConstraint reports whether s is a uniqueness constraint.
func (s *SchemaStatement) IsConstraint() bool { return s.constraint }

// IsDrop reports whether s removes the index or constraint.
func (s *SchemaStatement) IsDrop() bool { return s.drop }

// Build renders the statement.
func (s *SchemaStatement) Build() (*Statement, error) {
	label := s.Label()
	if label == "" {
		return nil, fmt.Errorf("missing label: %w", ErrInvalidSchema)
	}
	for _, l := range LabelsToArray(label) {
		if !validName(l) {
			return nil, fmt.Errorf("label %q: %w", l, ErrInvalidSchema)
		}
	}
	if !validName(s.property) {
		return nil, fmt.Errorf("property %q on %s: %w", s.property, label, ErrInvalidSchema)
	}

	keyword := "CREATE"
	if s.drop {
		keyword = "DROP"
	}

	var query string
	if s.constraint {
		query = fmt.Sprintf("%s CONSTRAINT ON (a:%s) ASSERT a.%s IS UNIQUE", keyword, label, s.property)
	} else {
		query = fmt.Sprintf("%s INDEX ON :%s(%s)", keyword, label, s.property)
	}
	return &Statement{Query: query, Params: map[string]any{}}, nil
}
