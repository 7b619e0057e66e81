package cypher

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidSequence is returned when builder calls arrive in an order
	// that cannot produce a valid statement, such as By without RelatedWith.
	ErrInvalidSequence = errors.New("invalid builder sequence")

	// ErrUnexpectedRelationship is returned when RelatedWith is called while
	// a previous relationship is still waiting for its By.
	ErrUnexpectedRelationship = errors.New("unexpected relationship declaration")

	// ErrInvalidName is returned for aliases, labels, relationship types,
	// property keys and parameter names that are not plain identifiers, and
	// for unknown predicate keywords.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidSchema is returned for index or constraint statements missing
	// a label or property.
	ErrInvalidSchema = errors.New("invalid schema statement")

	// ErrEmptyStatement is returned when Build is called on a builder that
	// has nothing to render.
	ErrEmptyStatement = errors.New("empty statement")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validName(name string) bool {
	return identifierPattern.MatchString(name)
}

// checkPattern validates the names written verbatim into a pattern: every
// label or type segment in colon notation and every property key.
func checkPattern(labels string, props Properties) error {
	for _, l := range LabelsToArray(NormalizeLabels(labels)) {
		if !validName(l) {
			return fmt.Errorf("label %q", l)
		}
	}
	for _, p := range props {
		if !validName(p.Key) {
			return fmt.Errorf("property key %q", p.Key)
		}
	}
	return nil
}

// fail records the first contract violation. Later calls become no-ops so
// the error points at the call that broke the sequence.
func (b *Builder) fail(op string, sentinel error, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), sentinel)
	}
	return b
}
