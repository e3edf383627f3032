package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	ns := []string{"users"}

	_, err := store.Get(ctx, ns, "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, ns, "u-1", map[string]any{"summary": "likes navy", "size": "M"}))
	require.NoError(t, store.Put(ctx, ns, "u-1", map[string]any{"summary": "likes olive"}))

	item, err := store.Get(ctx, ns, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, item.Namespace)
	assert.Equal(t, "u-1", item.Key)
	assert.Equal(t, "likes olive", item.Value["summary"], "last writer wins per field")
	assert.Equal(t, "M", item.Value["size"], "put merges instead of replacing")
	assert.False(t, item.CreatedAt.IsZero())
	assert.False(t, item.UpdatedAt.Before(item.CreatedAt))

	require.NoError(t, store.Put(ctx, ns, "u-0", map[string]any{"summary": "first"}))
	require.NoError(t, store.Put(ctx, []string{"users", "archived"}, "u-9", map[string]any{"summary": "other ns"}))

	items, err := store.Search(ctx, ns)
	require.NoError(t, err)
	require.Len(t, items, 2, "search matches the exact namespace only")
	assert.Equal(t, "u-0", items[0].Key)
	assert.Equal(t, "u-1", items[1].Key)

	empty, err := store.Search(ctx, []string{"nobody"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.ErrorIs(t, store.Put(ctx, nil, "k", nil), ErrInvalidNamespace)
	assert.ErrorIs(t, store.Put(ctx, []string{"a/b"}, "k", nil), ErrInvalidNamespace)
	assert.ErrorIs(t, store.Put(ctx, ns, " ", nil), ErrInvalidKey)
}

func exerciseConcurrentWriters(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("user-%d", i)
			for j := 0; j < 5; j++ {
				assert.NoError(t, store.Put(ctx, UsersNamespace, key, map[string]any{"summary": fmt.Sprintf("s-%d-%d", i, j)}))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		item, err := store.Get(ctx, UsersNamespace, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("s-%d-4", i), item.Value["summary"])
	}
}

func TestInMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewInMemoryStore())
	exerciseConcurrentWriters(t, NewInMemoryStore())
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, UsersNamespace, "u", map[string]any{"summary": "a"}))

	item, err := store.Get(ctx, UsersNamespace, "u")
	require.NoError(t, err)
	item.Value["summary"] = "mutated"

	again, err := store.Get(ctx, UsersNamespace, "u")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Value["summary"])
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exerciseStore(t, store)
	exerciseConcurrentWriters(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, UsersNamespace, "u-1", map[string]any{"summary": "kept"}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	item, err := second.Get(ctx, UsersNamespace, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "kept", item.Value["summary"])
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MEMORY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEMORY_TEST_POSTGRES_DSN not set")
	}

	db, err := OpenPostgres(dsn)
	require.NoError(t, err)
	store := NewPostgresStore(db)
	require.NoError(t, store.Init(context.Background()))
	_, err = db.NewTruncateTable().Model((*memoryItemModel)(nil)).Exec(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exerciseStore(t, store)
	exerciseConcurrentWriters(t, store)
}

func TestSummaryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := NewInMemoryStore()
	summaries := NewSummaryStore(backing)

	got, err := summaries.ReadSummary(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, summaries.WriteSummary(ctx, "u-1", "prefers earth tones"))
	require.NoError(t, summaries.WriteSummary(ctx, "u-1", "prefers pastels now"))

	got, err = summaries.ReadSummary(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "prefers pastels now", got)

	item, err := backing.Get(ctx, []string{"users"}, "u-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "prefers pastels now"}, item.Value)

	assert.ErrorIs(t, summaries.WriteSummary(ctx, " ", "x"), contractx.ErrValidation)
}

type failingStore struct{ *InMemoryStore }

func (f *failingStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	return errors.New("connection reset")
}

func TestSummaryStoreWrapsBackendFailure(t *testing.T) {
	t.Parallel()

	summaries := NewSummaryStore(&failingStore{InMemoryStore: NewInMemoryStore()})
	err := summaries.WriteSummary(context.Background(), "u-1", "x")
	assert.ErrorIs(t, err, contractx.ErrBackendUnavailable)
}

func TestNewBackends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, s)

	s, err = New(ctx, Config{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = New(ctx, Config{Backend: BackendUpstash, URL: "https://example.upstash.io", Token: "t"})
	require.NoError(t, err)
	assert.IsType(t, &UpstashStore{}, s)

	_, err = New(ctx, Config{Backend: "dynamo"})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}
