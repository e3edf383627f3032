// Package memory is the long-term key-value store shared by all sessions.
// Items live under an ordered namespace and a key; Put merges the given
// fields into the stored document instead of replacing it.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("memory item not found")
	ErrInvalidNamespace = errors.New("memory namespace is invalid")
	ErrInvalidKey       = errors.New("memory key is empty")
)

const namespaceSeparator = "/"

type Item struct {
	Namespace []string       `json:"namespace"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Store interface {
	// Put upserts the item, merging value into any stored document.
	Put(ctx context.Context, namespace []string, key string, value map[string]any) error
	// Get returns ErrNotFound when nothing is stored under namespace/key.
	Get(ctx context.Context, namespace []string, key string) (*Item, error)
	// Search lists every item stored directly under namespace, ordered by key.
	Search(ctx context.Context, namespace []string) ([]Item, error)
	Close() error
}

func validate(namespace []string, key string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

func validateNamespace(namespace []string) error {
	if len(namespace) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidNamespace)
	}
	for i, part := range namespace {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("%w: element %d is empty", ErrInvalidNamespace, i)
		}
		if strings.Contains(part, namespaceSeparator) {
			return fmt.Errorf("%w: element %q contains %q", ErrInvalidNamespace, part, namespaceSeparator)
		}
	}
	return nil
}

func joinNamespace(namespace []string) string {
	return strings.Join(namespace, namespaceSeparator)
}

func splitNamespace(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, namespaceSeparator)
}

// merge applies a shallow merge of patch onto base without touching either.
func merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}
