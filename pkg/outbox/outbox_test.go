package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/cypherkit/pkg/cypher"
)

func openMemory(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOutbox_EnqueueListOrder(t *testing.T) {
	o := openMemory(t)

	for i := 0; i < 5; i++ {
		_, err := o.Enqueue(cypher.Raw(fmt.Sprintf("RETURN %d", i), nil))
		require.NoError(t, err)
	}

	entries, err := o.List()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("RETURN %d", i), e.Query)
		assert.False(t, e.EnqueuedAt.IsZero())
	}

	n, err := o.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestOutbox_ParamsRoundTrip(t *testing.T) {
	o := openMemory(t)

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	params := map[string]any{
		"id":    int64(25),
		"name":  "L'éléphant",
		"score": 0.5,
		"tags":  []any{"a", "b"},
		"when":  when,
	}
	stmt, err := cypher.New().
		Merge("a", "City", cypher.Prop("id", cypher.Param("id"))).
		SetParameter("id", params["id"]).
		SetParameter("name", params["name"]).
		SetParameter("score", params["score"]).
		SetParameter("tags", params["tags"]).
		SetParameter("when", params["when"]).
		Build()
	require.NoError(t, err)

	queued, err := o.Enqueue(stmt)
	require.NoError(t, err)

	entries, err := o.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, queued.ID, entries[0].ID)
	assert.Equal(t, stmt.Query, entries[0].Statement().Query)

	got := entries[0].Params
	assert.Equal(t, int64(25), got["id"])
	assert.Equal(t, "L'éléphant", got["name"])
	assert.Equal(t, 0.5, got["score"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	gotWhen, ok := got["when"].(time.Time)
	require.True(t, ok)
	assert.True(t, when.Equal(gotWhen))
}

func TestOutbox_EnqueueEmpty(t *testing.T) {
	o := openMemory(t)

	_, err := o.Enqueue(nil)
	assert.ErrorIs(t, err, ErrEmptyStatement)
	_, err = o.Enqueue(cypher.Raw("", nil))
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestOutbox_Delete(t *testing.T) {
	o := openMemory(t)

	a, err := o.Enqueue(cypher.Raw("RETURN 1", nil))
	require.NoError(t, err)
	b, err := o.Enqueue(cypher.Raw("RETURN 2", nil))
	require.NoError(t, err)

	require.NoError(t, o.Delete(a.ID))
	require.NoError(t, o.Delete(a.ID))

	entries, err := o.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].ID)

	assert.Error(t, o.Delete("not-a-uuid"))
}

func TestOutbox_DrainStopsAtFirstError(t *testing.T) {
	o := openMemory(t)
	for i := 0; i < 4; i++ {
		_, err := o.Enqueue(cypher.Raw(fmt.Sprintf("RETURN %d", i), nil))
		require.NoError(t, err)
	}

	boom := errors.New("server unavailable")
	var seen []string
	n, err := o.Drain(context.Background(), func(e Entry) error {
		seen = append(seen, e.Query)
		if e.Query == "RETURN 2" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"RETURN 0", "RETURN 1", "RETURN 2"}, seen)

	entries, err := o.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "RETURN 2", entries[0].Query)
	assert.Equal(t, "RETURN 3", entries[1].Query)

	n, err = o.Drain(context.Background(), func(Entry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := o.Len()
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestOutbox_DrainCancelled(t *testing.T) {
	o := openMemory(t)
	_, err := o.Enqueue(cypher.Raw("RETURN 1", nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := o.Drain(ctx, func(Entry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestOutbox_Closed(t *testing.T) {
	o, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	_, err = o.Enqueue(cypher.Raw("RETURN 1", nil))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = o.List()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = o.Len()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = o.Drain(context.Background(), func(Entry) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOutbox_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	o, err := Open(Options{Dir: dir}, nil)
	require.NoError(t, err)
	_, err = o.Enqueue(cypher.Raw("RETURN 42", nil))
	require.NoError(t, err)
	require.NoError(t, o.Close())

	o, err = Open(Options{Dir: dir}, nil)
	require.NoError(t, err)
	defer o.Close()

	entries, err := o.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "RETURN 42", entries[0].Query)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{}, nil)
	assert.Error(t, err)
}
