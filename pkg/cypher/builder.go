// Package cypher builds Cypher statements from a sequence of clause calls.
//
// A Builder accumulates node patterns, relationships, update assignments,
// predicates and a return projection, then renders them in one pass:
//
//	stmt, err := cypher.New().
//		Match("a", "Document", cypher.Prop("id", 1)).
//		RelatedWith("b", "Page", cypher.Prop("id", 3)).
//		By("r", "IS_RELATED", cypher.Outgoing).
//		AndReturn("a, b").
//		Build()
//	// MATCH (a:Document {id: 1})-[r:IS_RELATED]->(b:Page {id: 3}) RETURN a, b
//
// Index and constraint statements are a separate type (SchemaStatement), so a
// pattern statement can never carry DDL.
//
// Calls that break the clause sequence record an error immediately; Err
// reports it and Build returns it. Builders are not safe for concurrent use.
package cypher

import (
	"fmt"
	"strings"
)

// Builder accumulates one statement.
type Builder struct {
	aliases    aliasRegistry
	clauses    []patternClause
	boundaries map[int]bool
	withs      map[int]string
	pending    *pendingRelationship

	predicates []predicate
	onCreate   []string
	onMatch    []string
	params     map[string]any

	returns     string
	projections []string

	err error
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{
		boundaries: make(map[int]bool),
		withs:      make(map[int]string),
		params:     make(map[string]any),
	}
}

// Err returns the first contract violation, or nil.
func (b *Builder) Err() error {
	return b.err
}

// Match adds a MATCH node pattern. If alias was declared earlier the clause
// is a bare "(alias)" reference and labels/props are ignored.
func (b *Builder) Match(alias, labels string, props ...Property) *Builder {
	return b.pattern("match", keywordMatch, alias, labels, props)
}

// OptionalMatch adds an OPTIONAL MATCH node pattern.
func (b *Builder) OptionalMatch(alias, labels string, props ...Property) *Builder {
	return b.pattern("optionalMatch", keywordOptionalMatch, alias, labels, props)
}

// Merge adds a MERGE node pattern.
func (b *Builder) Merge(alias, labels string, props ...Property) *Builder {
	return b.pattern("merge", keywordMerge, alias, labels, props)
}

func (b *Builder) pattern(op, keyword, alias, labels string, props Properties) *Builder {
	if b.err != nil {
		return b
	}
	if b.pending != nil {
		return b.fail(op, ErrInvalidSequence, "relationship target %q is still waiting for By", b.pending.alias)
	}
	if alias != "" && !validName(alias) {
		return b.fail(op, ErrInvalidName, "alias %q", alias)
	}
	if err := checkPattern(labels, props); err != nil {
		return b.fail(op, ErrInvalidName, "%v", err)
	}

	if alias != "" && b.aliases.exists(alias) {
		b.clauses = append(b.clauses, patternClause{
			keyword: keyword,
			text:    "(" + alias + ")",
		})
		return b
	}

	if alias != "" {
		b.aliases.register(alias)
	}
	b.clauses = append(b.clauses, patternClause{
		alias:   alias,
		keyword: keyword,
		text:    nodePattern(alias, labels, props),
	})
	return b
}

// RelatedWith declares the node at the far end of a relationship from the
// most recent pattern. The relationship itself is supplied by the next By.
func (b *Builder) RelatedWith(alias, labels string, props ...Property) *Builder {
	if b.err != nil {
		return b
	}
	if b.pending != nil {
		return b.fail("relatedWith", ErrUnexpectedRelationship, "relationship target %q is still waiting for By", b.pending.alias)
	}
	if len(b.clauses) == 0 {
		return b.fail("relatedWith", ErrInvalidSequence, "no pattern to relate %q from", alias)
	}
	if alias != "" && !validName(alias) {
		return b.fail("relatedWith", ErrInvalidName, "alias %q", alias)
	}
	if err := checkPattern(labels, props); err != nil {
		return b.fail("relatedWith", ErrInvalidName, "%v", err)
	}

	var text string
	switch {
	case alias != "" && b.aliases.exists(alias):
		text = "(" + alias + ")"
	default:
		if alias != "" {
			b.aliases.register(alias)
		}
		text = nodePattern(alias, labels, props)
	}
	b.pending = &pendingRelationship{alias: alias, text: text}
	return b
}

// By completes the pending relationship and splices
// "-[alias:TYPE {props}]->(target)" onto the most recent pattern.
func (b *Builder) By(alias, relType string, dir Direction, props ...Property) *Builder {
	if b.err != nil {
		return b
	}
	if b.pending == nil {
		return b.fail("by", ErrInvalidSequence, "no pending relationship for %q", alias)
	}
	if alias != "" && !validName(alias) {
		return b.fail("by", ErrInvalidName, "alias %q", alias)
	}
	if err := checkPattern(relType, props); err != nil {
		return b.fail("by", ErrInvalidName, "%v", err)
	}

	last := &b.clauses[len(b.clauses)-1]
	last.text += relationshipPattern(alias, relType, dir, props) + b.pending.text
	b.pending = nil
	return b
}

// NewPattern makes the next pattern start a new keyworded clause
// ("MATCH (a) MATCH (b)") instead of continuing with a comma.
func (b *Builder) NewPattern() *Builder {
	if b.err != nil {
		return b
	}
	b.boundaries[len(b.clauses)] = true
	return b
}

// With inserts "WITH aliases" after the most recent pattern. The pattern
// after it starts with its own keyword.
func (b *Builder) With(aliases string) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.clauses) == 0 {
		return b.fail("with", ErrInvalidSequence, "no pattern to project %q from", aliases)
	}
	i := len(b.clauses) - 1
	if prev, ok := b.withs[i]; ok {
		aliases = prev + comma + aliases
	}
	b.withs[i] = aliases
	return b
}

// Where starts the predicate list. With a keyword ("AND" or "OR", any case)
// it joins cond to the existing predicates instead, like AndWhere or OrWhere.
func (b *Builder) Where(cond string, keyword ...string) *Builder {
	if b.err != nil {
		return b
	}
	if len(keyword) > 1 {
		return b.fail("where", ErrInvalidSequence, "more than one keyword for %q", cond)
	}
	if len(keyword) == 0 {
		if len(b.predicates) > 0 {
			return b.fail("where", ErrInvalidSequence, "predicates already started, pass a keyword or use AndWhere or OrWhere for %q", cond)
		}
		b.predicates = append(b.predicates, predicate{cond: cond})
		return b
	}

	switch kw := strings.ToUpper(strings.TrimSpace(keyword[0])); kw {
	case keywordAnd:
		return b.AndWhere(cond)
	case keywordOr:
		if len(b.predicates) == 0 {
			return b.fail("where", ErrInvalidSequence, "no predicate to combine %q with", cond)
		}
		b.predicates = append(b.predicates, predicate{keyword: kw, cond: cond})
		return b
	default:
		return b.fail("where", ErrInvalidName, "keyword %q", keyword[0])
	}
}

// AndWhere adds an AND predicate, or starts the list if it is empty.
func (b *Builder) AndWhere(cond string) *Builder {
	if b.err != nil {
		return b
	}
	kw := keywordAnd
	if len(b.predicates) == 0 {
		kw = ""
	}
	b.predicates = append(b.predicates, predicate{keyword: kw, cond: cond})
	return b
}

// OrWhere adds an OR predicate. It needs an existing predicate to attach to.
func (b *Builder) OrWhere(cond string) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.predicates) == 0 {
		return b.fail("orWhere", ErrInvalidSequence, "no predicate to combine %q with", cond)
	}
	b.predicates = append(b.predicates, predicate{keyword: keywordOr, cond: cond})
	return b
}

// SetParameter binds a named parameter. Parameters are not interpolated;
// reference them in the text as $key or with Param.
func (b *Builder) SetParameter(key string, value any) *Builder {
	if b.err != nil {
		return b
	}
	if !validName(key) {
		return b.fail("setParameter", ErrInvalidName, "parameter %q", key)
	}
	b.params[key] = value
	return b
}

// OnCreateSet appends "alias.key = value" assignments to ON CREATE SET.
func (b *Builder) OnCreateSet(alias string, props ...Property) *Builder {
	if b.err != nil {
		return b
	}
	if !b.aliases.exists(alias) {
		return b.fail("onCreateSet", ErrInvalidSequence, "alias %q is not declared", alias)
	}
	if err := checkPattern("", props); err != nil {
		return b.fail("onCreateSet", ErrInvalidName, "%v", err)
	}
	b.onCreate = append(b.onCreate, Assignments(alias, props)...)
	return b
}

// OnMatchSet appends "alias.key = value" assignments to ON MATCH SET.
func (b *Builder) OnMatchSet(alias string, props ...Property) *Builder {
	if b.err != nil {
		return b
	}
	if !b.aliases.exists(alias) {
		return b.fail("onMatchSet", ErrInvalidSequence, "alias %q is not declared", alias)
	}
	if err := checkPattern("", props); err != nil {
		return b.fail("onMatchSet", ErrInvalidName, "%v", err)
	}
	b.onMatch = append(b.onMatch, Assignments(alias, props)...)
	return b
}

// AndReturn sets the RETURN projection text.
func (b *Builder) AndReturn(projection string) *Builder {
	if b.err != nil {
		return b
	}
	b.returns = projection
	return b
}

// WithLabels adds labels(alias) to the projection for every declared alias.
func (b *Builder) WithLabels() *Builder {
	return b.project("labels")
}

// WithID adds id(alias) to the projection for every declared alias.
func (b *Builder) WithID() *Builder {
	return b.project("id")
}

func (b *Builder) project(fn string) *Builder {
	if b.err != nil {
		return b
	}
	for _, alias := range b.aliases.all() {
		b.projections = append(b.projections, fmt.Sprintf("%s(%s)", fn, alias))
	}
	return b
}

// Aliases returns the declared aliases in declaration order.
func (b *Builder) Aliases() []string {
	return b.aliases.all()
}

// PreviousAlias returns the alias declared just before alias.
func (b *Builder) PreviousAlias(alias string) (string, bool) {
	return b.aliases.previous(alias)
}

// Build renders the statement. It does not modify the builder and may be
// called any number of times.
func (b *Builder) Build() (*Statement, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.pending != nil {
		return nil, fmt.Errorf("build: relationship target %q is still waiting for By: %w", b.pending.alias, ErrInvalidSequence)
	}

	var sb strings.Builder
	if len(b.clauses) > 0 {
		sb.WriteString(b.renderPatterns())
	}
	if len(b.onCreate) > 0 {
		sb.WriteString(" ON CREATE SET ")
		sb.WriteString(strings.Join(b.onCreate, comma))
	}
	if len(b.onMatch) > 0 {
		sb.WriteString(" ON MATCH SET ")
		sb.WriteString(strings.Join(b.onMatch, comma))
	}
	if len(b.predicates) > 0 {
		sb.WriteString(space + keywordWhere + space)
		sb.WriteString(JoinSegments(predicateSegments(b.predicates)))
	}
	if ret := b.renderReturn(); ret != "" {
		sb.WriteString(space)
		sb.WriteString(ret)
	}

	query := strings.TrimSpace(sb.String())
	if query == "" {
		return nil, ErrEmptyStatement
	}

	params := make(map[string]any, len(b.params))
	for k, v := range b.params {
		params[k] = v
	}
	return &Statement{Query: query, Params: params}, nil
}

// renderPatterns joins pattern clauses. A clause opens with its own keyword
// when it is the first, sits on a NewPattern boundary, follows a WITH, or
// changes keyword; otherwise it continues the previous one after a comma.
func (b *Builder) renderPatterns() string {
	segs := make([]Segment, 0, len(b.clauses)+len(b.withs))
	restart := true
	prevKeyword := ""

	for i, c := range b.clauses {
		if restart || b.boundaries[i] || c.keyword != prevKeyword {
			segs = append(segs, Segment{Sep: space, Text: c.keyword + space + c.text})
		} else {
			segs = append(segs, Segment{Sep: comma, Text: c.text})
		}
		prevKeyword = c.keyword
		restart = false

		if w, ok := b.withs[i]; ok {
			segs = append(segs, Segment{Sep: space, Text: keywordWith + space + w})
			restart = true
		}
	}
	return JoinSegments(segs)
}

func (b *Builder) renderReturn() string {
	items := make([]string, 0, len(b.projections)+1)
	if r := strings.TrimSpace(b.returns); r != "" {
		items = append(items, r)
	}
	items = append(items, b.projections...)
	if len(items) == 0 {
		return ""
	}
	return keywordReturn + space + strings.Join(items, comma)
}
