package graph

import (
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Row is one result row of a single alias set.
type Row map[string]any

// Result groups returned columns by the alias they belong to.
//
// Columns map onto sets as follows:
//
//	a.id       set "a", field "id"
//	labels(a)  set "a", field "$labels"
//	id(a)      set "a", field "$id"
//	a          set "a"; node properties are flattened into the row,
//	           any other value is stored under field "a"
type Result struct {
	Columns []string
	sets    map[string][]Row
	order   []string
}

var (
	fieldColumn    = regexp.MustCompile(`(?i)([a-z0-9_]+)\.([a-z0-9_]+)`)
	functionColumn = regexp.MustCompile(`(?i)([a-z0-9_]+)\(([a-z0-9_]+)\)`)
)

// columnField resolves a column name to its set and field.
func columnField(column string) (set, field string) {
	if m := fieldColumn.FindStringSubmatch(column); m != nil {
		return m[1], m[2]
	}
	if m := functionColumn.FindStringSubmatch(column); m != nil {
		return m[2], "$" + m[1]
	}
	return column, column
}

// ParseRecords groups raw rows by alias set. Every set has one Row per
// input row, in input order.
func ParseRecords(columns []string, rows [][]any) *Result {
	res := &Result{
		Columns: columns,
		sets:    make(map[string][]Row),
	}

	sets := make([]string, len(columns))
	fields := make([]string, len(columns))
	for i, col := range columns {
		sets[i], fields[i] = columnField(col)
		if _, ok := res.sets[sets[i]]; !ok {
			res.sets[sets[i]] = make([]Row, len(rows))
			res.order = append(res.order, sets[i])
		}
	}

	for r, values := range rows {
		for i := range columns {
			set := res.sets[sets[i]]
			if set[r] == nil {
				set[r] = make(Row)
			}
			if i >= len(values) {
				continue
			}
			switch v := values[i].(type) {
			case neo4j.Node:
				for k, pv := range v.Props {
					set[r][k] = pv
				}
			case neo4j.Relationship:
				for k, pv := range v.Props {
					set[r][k] = pv
				}
			default:
				set[r][fields[i]] = v
			}
		}
	}
	return res
}

// Set returns the rows of one alias set, or an empty slice.
func (r *Result) Set(alias string) []Row {
	if r == nil {
		return []Row{}
	}
	rows, ok := r.sets[alias]
	if !ok {
		return []Row{}
	}
	return rows
}

// Aliases returns the set names in column order.
func (r *Result) Aliases() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of result rows.
func (r *Result) Len() int {
	if r == nil || len(r.order) == 0 {
		return 0
	}
	return len(r.sets[r.order[0]])
}
