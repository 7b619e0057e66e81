package cypher

// Statement is rendered Cypher text plus the parameters bound out of band.
type Statement struct {
	Query  string
	Params map[string]any
}

// Raw wraps hand-written Cypher so it can be sent like builder output.
func Raw(query string, params map[string]any) *Statement {
	return &Statement{Query: query, Params: params}
}

// Build returns s itself, so a Statement satisfies Renderer.
func (s *Statement) Build() (*Statement, error) {
	if s.Query == "" {
		return nil, ErrEmptyStatement
	}
	return s, nil
}

// String returns the query text.
func (s *Statement) String() string {
	return s.Query
}

// Renderer is anything that produces a Statement: a Builder, a
// SchemaStatement or a Statement.
type Renderer interface {
	Build() (*Statement, error)
}
