package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstash speaks just enough of the Upstash REST protocol for the store.
type fakeUpstash struct {
	mu       sync.Mutex
	hashes   map[string]map[string]string
	sets     map[string]map[string]bool
	expires  map[string]int64
	commands [][]string
	auth     string
	failNext string
}

func newFakeUpstash() *fakeUpstash {
	return &fakeUpstash{
		hashes:  map[string]map[string]string{},
		sets:    map[string]map[string]bool{},
		expires: map[string]int64{},
	}
}

func (f *fakeUpstash) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")

	if f.failNext != "" {
		msg := f.failNext
		f.failNext = ""
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	switch r.URL.Path {
	case "/multi-exec", "/pipeline":
		var cmds [][]any
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]map[string]any, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, map[string]any{"result": f.apply(c)})
		}
		_ = json.NewEncoder(w).Encode(out)
	default:
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.apply(cmd)})
	}
}

func (f *fakeUpstash) apply(raw []any) any {
	cmd := make([]string, len(raw))
	for i, v := range raw {
		cmd[i] = fmt.Sprint(v)
	}
	f.commands = append(f.commands, cmd)

	switch strings.ToUpper(cmd[0]) {
	case "HSET":
		h := f.hash(cmd[1])
		for i := 2; i+1 < len(cmd); i += 2 {
			h[cmd[i]] = cmd[i+1]
		}
		return (len(cmd) - 2) / 2
	case "HSETNX":
		h := f.hash(cmd[1])
		if _, ok := h[cmd[2]]; ok {
			return 0
		}
		h[cmd[2]] = cmd[3]
		return 1
	case "HGETALL":
		h := f.hashes[cmd[1]]
		keys := make([]string, 0, len(h))
		for k := range h {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		flat := make([]string, 0, 2*len(h))
		for _, k := range keys {
			flat = append(flat, k, h[k])
		}
		return flat
	case "SADD":
		s, ok := f.sets[cmd[1]]
		if !ok {
			s = map[string]bool{}
			f.sets[cmd[1]] = s
		}
		s[cmd[2]] = true
		return 1
	case "SMEMBERS":
		members := make([]string, 0)
		for m := range f.sets[cmd[1]] {
			members = append(members, m)
		}
		return members
	case "EXPIRE":
		var secs int64
		fmt.Sscan(cmd[2], &secs)
		f.expires[cmd[1]] = secs
		return 1
	default:
		return nil
	}
}

func (f *fakeUpstash) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	return h
}

func newUpstashForTest(t *testing.T, opts ...UpstashOption) (*UpstashStore, *fakeUpstash) {
	t.Helper()
	fake := newFakeUpstash()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	opts = append([]UpstashOption{WithHTTPClient(srv.Client())}, opts...)
	store, err := NewUpstashStore(UpstashConfig{URL: srv.URL, Token: "token"}, opts...)
	require.NoError(t, err)
	return store, fake
}

func TestUpstashStore(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashForTest(t)
	exerciseStore(t, store)
	exerciseConcurrentWriters(t, store)
	assert.Equal(t, "Bearer token", fake.auth)
}

func TestUpstashStoreKeys(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashForTest(t, WithKeyPrefix("test:"), WithTTL(90*time.Minute))
	require.NoError(t, store.Put(context.Background(), []string{"users"}, "u-1", map[string]any{"summary": "hi"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Len(t, fake.commands, 4)
	assert.Equal(t, []string{"HSET", "test:item:users#u-1", "v:summary", `"hi"`, "updated_at"}, fake.commands[0][:5])
	assert.Equal(t, "HSETNX", fake.commands[1][0])
	assert.Equal(t, []string{"SADD", "test:index:users", "u-1"}, fake.commands[2])
	assert.Equal(t, int64(5400), fake.expires["test:item:users#u-1"])
}

func TestUpstashStoreCreatedAtIsStable(t *testing.T) {
	t.Parallel()

	store, _ := newUpstashForTest(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	require.NoError(t, store.Put(ctx, UsersNamespace, "u", map[string]any{"summary": "a"}))

	store.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, store.Put(ctx, UsersNamespace, "u", map[string]any{"summary": "b"}))

	item, err := store.Get(ctx, UsersNamespace, "u")
	require.NoError(t, err)
	assert.True(t, item.CreatedAt.Equal(first))
	assert.True(t, item.UpdatedAt.Equal(first.Add(time.Hour)))
}

func TestUpstashStoreSurfacesErrors(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashForTest(t)
	fake.mu.Lock()
	fake.failNext = "EXECABORT Transaction discarded"
	fake.mu.Unlock()

	err := store.Put(context.Background(), UsersNamespace, "u", map[string]any{"summary": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXECABORT")
}

func TestNewUpstashStoreValidates(t *testing.T) {
	t.Parallel()

	_, err := NewUpstashStore(UpstashConfig{Token: "t"})
	assert.Error(t, err)
	_, err = NewUpstashStore(UpstashConfig{URL: "https://x.upstash.io"})
	assert.Error(t, err)
	_, err = NewUpstashStore(UpstashConfig{URL: "https://x.upstash.io", Token: "t"}, WithTTL(-time.Second))
	assert.Error(t, err)
}
