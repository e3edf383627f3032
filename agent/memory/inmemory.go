package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps items in process memory. Useful for tests and the CLI.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]*Item
	now   func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]map[string]*Item),
		now:   time.Now,
	}
}

func (s *InMemoryStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if err := validate(namespace, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now().UTC()
	ns := joinNamespace(namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[ns]
	if !ok {
		bucket = make(map[string]*Item)
		s.items[ns] = bucket
	}
	if existing, ok := bucket[key]; ok {
		existing.Value = merge(existing.Value, value)
		existing.UpdatedAt = now
		return nil
	}
	bucket[key] = &Item{
		Namespace: slices.Clone(namespace),
		Key:       key,
		Value:     merge(nil, value),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	if err := validate(namespace, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[joinNamespace(namespace)][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyItem(item)
	return &out, nil
}

func (s *InMemoryStore) Search(ctx context.Context, namespace []string) ([]Item, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.items[joinNamespace(namespace)]
	out := make([]Item, 0, len(bucket))
	for _, item := range bucket {
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func copyItem(item *Item) Item {
	out := *item
	out.Namespace = slices.Clone(item.Namespace)
	out.Value = maps.Clone(item.Value)
	return out
}
