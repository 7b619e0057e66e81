// Clause model accumulated by the Builder before rendering.

package cypher

const (
	keywordMatch         = "MATCH"
	keywordOptionalMatch = "OPTIONAL MATCH"
	keywordMerge         = "MERGE"
	keywordWhere         = "WHERE"
	keywordWith          = "WITH"
	keywordReturn        = "RETURN"
	keywordAnd           = "AND"
	keywordOr            = "OR"
)

// patternClause is one node pattern, optionally extended by relationships
// spliced in through By.
type patternClause struct {
	alias   string // empty for re-references and anonymous nodes
	keyword string
	text    string
}

// pendingRelationship is the target node declared by RelatedWith that is
// waiting for By to supply the relationship itself.
type pendingRelationship struct {
	alias string
	text  string
}

// predicate is one WHERE condition with its leading boolean keyword.
// The first predicate has no keyword.
type predicate struct {
	keyword string
	cond    string
}

// predicateSegments lays out the predicate list for JoinSegments.
func predicateSegments(preds []predicate) []Segment {
	segs := make([]Segment, len(preds))
	for i, p := range preds {
		if p.keyword == "" {
			segs[i] = Segment{Sep: space, Text: p.cond}
			continue
		}
		segs[i] = Segment{Sep: space + p.keyword + space, Text: p.cond}
	}
	return segs
}
