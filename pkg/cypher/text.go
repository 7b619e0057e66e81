// Text helpers shared by every clause renderer: label notation, property
// maps, assignments, relationship arrows and segment joining.

package cypher

import (
	"strings"
	"unicode"
)

const (
	space = " "
	comma = ", "
	colon = ":"
)

// TrimColons removes leading and trailing colons from a label string.
func TrimColons(s string) string {
	return strings.Trim(s, colon)
}

// LabelsToString joins labels into colon notation ("A:B:C").
// The result never starts or ends with a colon.
func LabelsToString(labels []string) string {
	return TrimColons(strings.Join(labels, colon))
}

// LabelsToArray splits colon notation into labels. ":A:B" and "A:B" both
// yield [A B]; the empty string yields nil.
func LabelsToArray(labels string) []string {
	labels = TrimColons(labels)
	if labels == "" {
		return nil
	}
	return strings.Split(labels, colon)
}

// NormalizeLabels accepts labels as separate values, colon notation, or a mix
// of both, and returns colon notation without empty segments.
//
//	NormalizeLabels("City", "Town")  // "City:Town"
//	NormalizeLabels(":City:Town")    // "City:Town"
func NormalizeLabels(labels ...string) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		for _, p := range strings.Split(l, colon) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, colon)
}

// PropertiesPattern renders props as "{k1: v1, k2: v2}" in insertion order.
// Empty props render as the empty string so no braces are emitted.
func PropertiesPattern(props Properties) string {
	if len(props) == 0 {
		return ""
	}
	pairs := make([]string, len(props))
	for i, p := range props {
		pairs[i] = p.Key + ": " + FormatValue(p.Value)
	}
	return "{" + strings.Join(pairs, comma) + "}"
}

// Assignments renders one "alias.key = value" equality per property.
func Assignments(alias string, props Properties) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = alias + "." + p.Key + " = " + FormatValue(p.Value)
	}
	return out
}

// Direction is the orientation of a relationship pattern.
type Direction string

const (
	// Undirected renders -[r]-.
	Undirected Direction = "-"
	// Outgoing renders -[r]->.
	Outgoing Direction = "->"
	// Incoming renders <-[r]-.
	Incoming Direction = "<-"
)

// Arrows returns the fragments placed before and after a relationship's
// bracketed clause. Unknown directions are treated as Undirected.
func Arrows(d Direction) (left, right string) {
	switch d {
	case Outgoing:
		return "-", "->"
	case Incoming:
		return "<-", "-"
	default:
		return "-", "-"
	}
}

// Segment is one entry of a joined list: the separator written before Text.
type Segment struct {
	Sep  string
	Text string
}

// JoinSegments concatenates Sep+Text for every segment, then trims leading
// and trailing commas and whitespace. Choosing the separator per position is
// how matches, predicates and projections get their joining rules.
func JoinSegments(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Sep)
		sb.WriteString(s.Text)
	}
	return strings.TrimFunc(sb.String(), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// nodePattern renders "(alias:Labels {props})".
func nodePattern(alias, labels string, props Properties) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(alias)
	if l := NormalizeLabels(labels); l != "" {
		sb.WriteString(colon)
		sb.WriteString(l)
	}
	if p := PropertiesPattern(props); p != "" {
		sb.WriteString(space)
		sb.WriteString(p)
	}
	sb.WriteString(")")
	return sb.String()
}

// relationshipPattern renders "-[alias:TYPE {props}]->" for the direction.
func relationshipPattern(alias, relType string, dir Direction, props Properties) string {
	left, right := Arrows(dir)

	var sb strings.Builder
	sb.WriteString(left)
	sb.WriteString("[")
	sb.WriteString(alias)
	if t := TrimColons(relType); t != "" {
		sb.WriteString(colon)
		sb.WriteString(t)
	}
	if p := PropertiesPattern(props); p != "" {
		sb.WriteString(space)
		sb.WriteString(p)
	}
	sb.WriteString("]")
	sb.WriteString(right)
	return sb.String()
}
