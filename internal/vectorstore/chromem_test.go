package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)
	return store
}

func TestChromemAddDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t)

	t.Run("empty batch rejected", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, "products", nil)
		assert.ErrorIs(t, err, ErrEmptyDocuments)
	})

	t.Run("invalid collection name rejected", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, "Not-Valid!", []Document{{Content: "x"}})
		assert.ErrorIs(t, err, ErrInvalidCollectionName)
	})

	t.Run("ids generated when missing", func(t *testing.T) {
		ids, err := store.AddDocuments(ctx, "products", []Document{
			{ID: "p1", Content: "iphone 15 pro", Vector: []float32{1, 0, 0}},
			{Content: "samsung galaxy s24", Vector: []float32{0, 1, 0}},
		})
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.Equal(t, "p1", ids[0])
		assert.NotEmpty(t, ids[1])

		count, err := store.Count(ctx, "products")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("vectorless documents listable but not searchable", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, "chat_history", []Document{
			{ID: "m1", Content: "xin chào", Metadata: map[string]string{"session_id": "s1"}},
		})
		require.NoError(t, err)

		listed, err := store.ListDocuments(ctx, "chat_history", map[string]string{"session_id": "s1"}, 0)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "m1", listed[0].ID)

		results, err := store.SearchByVector(ctx, "chat_history", []float32{1, 0, 0}, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestChromemSearchByVector(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t)

	_, err := store.AddDocuments(ctx, "products", []Document{
		{ID: "a", Content: "iphone", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"brand": "apple"}},
		{ID: "b", Content: "galaxy", Vector: []float32{0, 1, 0}, Metadata: map[string]string{"brand": "samsung"}},
		{ID: "c", Content: "macbook", Vector: []float32{0.9, 0.1, 0}, Metadata: map[string]string{"brand": "apple"}},
	})
	require.NoError(t, err)

	t.Run("orders by similarity", func(t *testing.T) {
		results, err := store.SearchByVector(ctx, "products", []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("k capped at collection size", func(t *testing.T) {
		results, err := store.SearchByVector(ctx, "products", []float32{0, 1, 0}, 50, nil)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("metadata filter applies", func(t *testing.T) {
		results, err := store.SearchByVector(ctx, "products", []float32{0.5, 0.5, 0}, 3,
			map[string]string{"brand": "samsung"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.SearchByVector(ctx, "missing", []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("non-positive k rejected", func(t *testing.T) {
		_, err := store.SearchByVector(ctx, "products", []float32{1, 0, 0}, 0, nil)
		assert.Error(t, err)
	})
}

func TestChromemSearchByText(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t)

	_, err := store.AddDocuments(ctx, "products", []Document{
		{ID: "a", Content: "điện thoại iphone 15 pro max", Vector: []float32{1, 0, 0}},
		{ID: "b", Content: "máy tính xách tay dell xps", Vector: []float32{0, 1, 0}},
		{ID: "c", Content: "điện thoại samsung galaxy", Vector: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	t.Run("ranks by term overlap", func(t *testing.T) {
		results, err := store.SearchByText(ctx, "products", "điện thoại iphone", 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("no terms means no results", func(t *testing.T) {
		results, err := store.SearchByText(ctx, "products", "?!", 3, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("respects k", func(t *testing.T) {
		results, err := store.SearchByText(ctx, "products", "điện thoại", 1, nil)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestChromemListDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t)

	_, err := store.AddDocuments(ctx, "chat_history", []Document{
		{ID: "m1", Content: "first", Metadata: map[string]string{"session_id": "s1"}},
		{ID: "m2", Content: "second", Metadata: map[string]string{"session_id": "s1"}},
		{ID: "x1", Content: "other", Metadata: map[string]string{"session_id": "s2"}},
		{ID: "m3", Content: "third", Metadata: map[string]string{"session_id": "s1"}},
	})
	require.NoError(t, err)

	t.Run("insertion order per session", func(t *testing.T) {
		results, err := store.ListDocuments(ctx, "chat_history", map[string]string{"session_id": "s1"}, 0)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []string{"m1", "m2", "m3"}, []string{results[0].ID, results[1].ID, results[2].ID})
	})

	t.Run("limit keeps most recent", func(t *testing.T) {
		results, err := store.ListDocuments(ctx, "chat_history", map[string]string{"session_id": "s1"}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "m2", results[0].ID)
		assert.Equal(t, "m3", results[1].ID)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.ListDocuments(ctx, "missing", nil, 0)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})
}

func TestChromemCollectionExists(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t)

	exists, err := store.CollectionExists(ctx, "products")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.AddDocuments(ctx, "products", []Document{{ID: "a", Content: "x"}})
	require.NoError(t, err)

	exists, err = store.CollectionExists(ctx, "products")
	require.NoError(t, err)
	assert.True(t, exists)
}
