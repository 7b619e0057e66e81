package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/cypherkit/pkg/cypher"
	"github.com/orneryd/cypherkit/pkg/entity"
	"github.com/orneryd/cypherkit/pkg/outbox"
)

func execute(t *testing.T, reg *entity.Registry, args ...string) (string, error) {
	t.Helper()
	if reg == nil {
		reg = entity.NewRegistry()
	}
	cmd := newRootCmd(reg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cypherkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type country struct{}

func (country) GraphLabels() []string              { return []string{"Country"} }
func (country) GraphProperties() cypher.Properties { return nil }
func (country) GraphMergeKey() cypher.Property     { return cypher.Prop("code", "") }
func (country) GraphConstraints() []string         { return []string{"code"} }

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cypherkit v"+version)
}

func TestRender(t *testing.T) {
	out, err := execute(t, nil, "render", "--constraint", "City.id", "--index", "Person.name")
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE CONSTRAINT ON (a:City) ASSERT a.id IS UNIQUE\nCREATE INDEX ON :Person(name)\n",
		out)

	out, err = execute(t, nil, "render", "--index", "Person.id", "--drop")
	require.NoError(t, err)
	assert.Equal(t, "DROP INDEX ON :Person(id)\n", out)
}

func TestRender_Errors(t *testing.T) {
	_, err := execute(t, nil, "render")
	assert.Error(t, err)

	_, err = execute(t, nil, "render", "--constraint", "City")
	assert.Error(t, err)
}

func TestSchemaUpdate_DryRun(t *testing.T) {
	path := writeConfig(t, `
logging:
  output: stderr
schema:
  constraints:
    - {label: City, property: id}
  indexes:
    - {label: City, property: name}
`)
	reg := entity.NewRegistry()
	reg.MustRegister("country", country{})

	out, err := execute(t, reg, "--config", path, "schema", "update", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"- DROP CONSTRAINT ON (a:City) ASSERT a.id IS UNIQUE\n"+
		"- DROP CONSTRAINT ON (a:Country) ASSERT a.code IS UNIQUE\n"+
		"- DROP INDEX ON :City(name)\n"+
		"+ CREATE CONSTRAINT ON (a:City) ASSERT a.id IS UNIQUE\n"+
		"+ CREATE CONSTRAINT ON (a:Country) ASSERT a.code IS UNIQUE\n"+
		"+ CREATE INDEX ON :City(name)\n",
		out)
}

func TestSchemaUpdate_NothingDeclared(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: error\n")
	out, err := execute(t, nil, "--config", path, "schema", "update", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "no constraints or indexes declared")
}

func TestSchemaUpdate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: loud\n")
	_, err := execute(t, nil, "--config", path, "schema", "update", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestOutboxList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	ob, err := outbox.Open(outbox.Options{Dir: dir}, nil)
	require.NoError(t, err)
	_, err = ob.Enqueue(cypher.Raw("MERGE (a:City {id: 1})", nil))
	require.NoError(t, err)
	require.NoError(t, ob.Close())

	path := writeConfig(t, "outbox:\n  enabled: true\n  dir: "+dir+"\n")
	out, err := execute(t, nil, "--config", path, "outbox", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "MERGE (a:City {id: 1})")
	assert.Contains(t, out, "1 queued")
}

func TestOutbox_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	path := writeConfig(t, "outbox:\n  dir: "+dir+"\n")

	for _, sub := range []string{"list", "replay"} {
		_, err := execute(t, nil, "--config", path, "outbox", sub)
		require.ErrorIs(t, err, errOutboxDisabled, sub)
	}
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "disabled outbox must not create its directory")
}
