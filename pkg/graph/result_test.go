package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnField(t *testing.T) {
	tests := []struct {
		column, set, field string
	}{
		{"a.id", "a", "id"},
		{"doc.Title", "doc", "Title"},
		{"labels(a)", "a", "$labels"},
		{"id(b)", "b", "$id"},
		{"count(c)", "c", "$count"},
		{"a", "a", "a"},
	}
	for _, tt := range tests {
		set, field := columnField(tt.column)
		assert.Equal(t, tt.set, set, tt.column)
		assert.Equal(t, tt.field, field, tt.column)
	}
}

func TestParseRecords_FieldsAndFunctions(t *testing.T) {
	res := ParseRecords(
		[]string{"a.id", "a.name", "labels(a)", "id(a)", "b.id"},
		[][]any{
			{int64(1), "Paris", []any{"City"}, int64(10), int64(7)},
			{int64(2), "Lyon", []any{"City", "Town"}, int64(11), int64(8)},
		},
	)

	require.Equal(t, 2, res.Len())
	assert.Equal(t, []string{"a", "b"}, res.Aliases())

	a := res.Set("a")
	require.Len(t, a, 2)
	assert.Equal(t, Row{"id": int64(1), "name": "Paris", "$labels": []any{"City"}, "$id": int64(10)}, a[0])
	assert.Equal(t, "Lyon", a[1]["name"])
	assert.Equal(t, []any{"City", "Town"}, a[1]["$labels"])

	assert.Equal(t, []Row{{"id": int64(7)}, {"id": int64(8)}}, res.Set("b"))
}

func TestParseRecords_NodesAreFlattened(t *testing.T) {
	node := neo4j.Node{
		ElementId: "4:abc:1",
		Labels:    []string{"Document"},
		Props:     map[string]any{"id": int64(5), "title": "Field notes"},
	}
	rel := neo4j.Relationship{
		Type:  "IS_RELATED",
		Props: map[string]any{"weight": 0.5},
	}

	res := ParseRecords(
		[]string{"d", "labels(d)", "r", "total"},
		[][]any{{node, []any{"Document"}, rel, int64(3)}},
	)

	assert.Equal(t, []Row{{"id": int64(5), "title": "Field notes", "$labels": []any{"Document"}}}, res.Set("d"))
	assert.Equal(t, []Row{{"weight": 0.5}}, res.Set("r"))
	assert.Equal(t, []Row{{"total": int64(3)}}, res.Set("total"))
}

func TestParseRecords_Empty(t *testing.T) {
	res := ParseRecords([]string{"a.id"}, nil)
	assert.Equal(t, 0, res.Len())
	assert.Empty(t, res.Set("a"))

	assert.NotNil(t, res.Set("unknown"))
	assert.Empty(t, res.Set("unknown"))

	var nilResult *Result
	assert.Empty(t, nilResult.Set("a"))
	assert.Equal(t, 0, nilResult.Len())
}

func TestParseRecords_ShortRow(t *testing.T) {
	res := ParseRecords([]string{"a.id", "a.name"}, [][]any{{int64(1)}})
	assert.Equal(t, []Row{{"id": int64(1)}}, res.Set("a"))
}
