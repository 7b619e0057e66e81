package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatement(t *testing.T) {
	tests := []struct {
		name string
		stmt *SchemaStatement
		want string
	}{
		{"create index", CreateIndex("Person", "id"), "CREATE INDEX ON :Person(id)"},
		{"drop index", DropIndex("Person", "id"), "DROP INDEX ON :Person(id)"},
		{"create constraint", CreateConstraint("City", "name"), "CREATE CONSTRAINT ON (a:City) ASSERT a.name IS UNIQUE"},
		{"drop constraint", DropConstraint("City", "name"), "DROP CONSTRAINT ON (a:City) ASSERT a.name IS UNIQUE"},
		{"colon label", CreateIndex(":City", "id"), "CREATE INDEX ON :City(id)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.stmt.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.Query)
			assert.Empty(t, stmt.Params)
		})
	}
}

func TestSchemaStatement_Invalid(t *testing.T) {
	for _, s := range []*SchemaStatement{
		CreateIndex("", "id"),
		CreateIndex(":", "id"),
		CreateConstraint("City", ""),
		DropIndex("City", "bad name"),
		CreateIndex("City(id) DROP INDEX ON :Other", "id"),
	} {
		_, err := s.Build()
		assert.ErrorIs(t, err, ErrInvalidSchema)
	}
}

func TestSchemaStatement_Accessors(t *testing.T) {
	s := DropConstraint(":City:", "name")
	assert.Equal(t, "City", s.Label())
	assert.Equal(t, "name", s.Property())
	assert.True(t, s.IsConstraint())
	assert.True(t, s.IsDrop())

	c := CreateIndex("City", "id")
	assert.False(t, c.IsConstraint())
	assert.False(t, c.IsDrop())
}
