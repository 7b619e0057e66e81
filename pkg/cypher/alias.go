package cypher

// aliasRegistry records variable aliases in the order they were introduced.
// Lookups resolve against the first occurrence of an alias.
type aliasRegistry struct {
	aliases []string
}

func (r *aliasRegistry) register(alias string) {
	r.aliases = append(r.aliases, alias)
}

func (r *aliasRegistry) exists(alias string) bool {
	return r.index(alias) >= 0
}

// previous returns the alias registered immediately before alias.
func (r *aliasRegistry) previous(alias string) (string, bool) {
	return r.offset(alias, 1)
}

// previousPrevious returns the alias registered two positions before alias.
func (r *aliasRegistry) previousPrevious(alias string) (string, bool) {
	return r.offset(alias, 2)
}

func (r *aliasRegistry) offset(alias string, back int) (string, bool) {
	i := r.index(alias)
	if i-back < 0 {
		return "", false
	}
	return r.aliases[i-back], true
}

func (r *aliasRegistry) index(alias string) int {
	for i, a := range r.aliases {
		if a == alias {
			return i
		}
	}
	return -1
}

func (r *aliasRegistry) all() []string {
	out := make([]string, len(r.aliases))
	copy(out, r.aliases)
	return out
}
