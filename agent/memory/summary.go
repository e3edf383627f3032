package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

const summaryField = "summary"

// UsersNamespace holds one item per user, keyed by user id.
var UsersNamespace = []string{"users"}

// SummaryStore reads and writes the per-user conversation summary on top of
// any Store.
type SummaryStore struct {
	store Store
}

var _ contractx.MemoryStore = (*SummaryStore)(nil)

func NewSummaryStore(store Store) *SummaryStore {
	return &SummaryStore{store: store}
}

// ReadSummary returns "" when the user has no stored summary.
func (s *SummaryStore) ReadSummary(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is empty", contractx.ErrValidation)
	}

	item, err := s.store.Get(ctx, UsersNamespace, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read summary: %v", contractx.ErrBackendUnavailable, err)
	}

	summary, _ := item.Value[summaryField].(string)
	return summary, nil
}

// WriteSummary replaces the stored summary in a single upsert.
func (s *SummaryStore) WriteSummary(ctx context.Context, userID string, summary string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is empty", contractx.ErrValidation)
	}

	if err := s.store.Put(ctx, UsersNamespace, userID, map[string]any{summaryField: summary}); err != nil {
		return fmt.Errorf("%w: write summary: %v", contractx.ErrBackendUnavailable, err)
	}
	return nil
}
