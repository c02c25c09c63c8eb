package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// runKVStoreContract exercises the KVStore contract against any
// implementation so all backends stay behaviorally interchangeable.
func runKVStoreContract(t *testing.T, store KVStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	t.Run("set and get", func(t *testing.T) {
		doc := testDoc{Name: "test", Value: 42}
		require.NoError(t, store.Set(ctx, "doc:1", doc))

		var got testDoc
		require.NoError(t, store.Get(ctx, "doc:1", &got))
		assert.Equal(t, doc, got)
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		var got testDoc
		err := store.Get(ctx, "doc:missing", &got)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doc:2", testDoc{Name: "a", Value: 1}))
		require.NoError(t, store.Set(ctx, "doc:2", testDoc{Name: "b", Value: 2}))

		var got testDoc
		require.NoError(t, store.Get(ctx, "doc:2", &got))
		assert.Equal(t, "b", got.Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doc:3", testDoc{Name: "gone"}))
		require.NoError(t, store.Delete(ctx, "doc:3"))

		var got testDoc
		assert.ErrorIs(t, store.Get(ctx, "doc:3", &got), ErrNotFound)

		// Deleting an absent key is not an error.
		assert.NoError(t, store.Delete(ctx, "doc:3"))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "rule:a", testDoc{}))
		require.NoError(t, store.Set(ctx, "rule:b", testDoc{}))
		require.NoError(t, store.Set(ctx, "baseline:a", testDoc{}))

		keys, err := store.Keys(ctx, "rule:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"rule:a", "rule:b"}, keys)
	})

	t.Run("list push newest first", func(t *testing.T) {
		for _, v := range []string{"first", "second", "third"} {
			require.NoError(t, store.ListPush(ctx, "idx:recent", v))
		}

		vals, err := store.ListRange(ctx, "idx:recent", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second", "first"}, vals)

		vals, err = store.ListRange(ctx, "idx:recent", 0, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second"}, vals)
	})

	t.Run("list trim keeps newest", func(t *testing.T) {
		for _, v := range []string{"1", "2", "3", "4", "5"} {
			require.NoError(t, store.ListPush(ctx, "idx:capped", v))
		}
		require.NoError(t, store.ListTrim(ctx, "idx:capped", 3))

		vals, err := store.ListRange(ctx, "idx:capped", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"5", "4", "3"}, vals)
	})

	t.Run("range of missing list is empty", func(t *testing.T) {
		vals, err := store.ListRange(ctx, "idx:none", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, vals)
	})
}
