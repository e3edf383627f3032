package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	defaultUpstashKeyPrefix = "stylist:memory:"
	maxResponseSizeBytes    = 2 << 20

	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
	valueFieldPrefix = "v:"
)

type UpstashOption func(*UpstashStore)

func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

// WithTTL expires items that have not been written for ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) UpstashOption {
	return func(s *UpstashStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashStore keeps each item as a Redis hash reached over the Upstash REST
// API. Value fields are JSON-encoded under a "v:" prefix; a set per namespace
// indexes its keys. Put runs as one MULTI/EXEC transaction.
type UpstashStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	now        func() time.Time
}

var _ Store = (*UpstashStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashStore(cfg UpstashConfig, opts ...UpstashOption) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultUpstashKeyPrefix,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	itemKey := s.itemKey(namespace, key)
	now := s.now().UTC().Format(time.RFC3339Nano)

	hset := []any{"HSET", itemKey}
	for field, v := range value {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode memory field %q: %w", field, err)
		}
		hset = append(hset, valueFieldPrefix+field, string(encoded))
	}
	hset = append(hset, fieldUpdatedAt, now)

	commands := [][]any{
		hset,
		{"HSETNX", itemKey, fieldCreatedAt, now},
		{"SADD", s.indexKey(namespace), key},
	}
	if s.ttl > 0 {
		commands = append(commands, []any{"EXPIRE", itemKey, ttlSeconds(s.ttl)})
	}

	results, err := s.batch(ctx, "/multi-exec", commands)
	if err != nil {
		return fmt.Errorf("put memory item: %w", err)
	}
	for _, r := range results {
		if r.Error != "" {
			return fmt.Errorf("put memory item: %s", r.Error)
		}
	}
	return nil
}

func (s *UpstashStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	if err := validate(namespace, key); err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"HGETALL", s.itemKey(namespace, key)})
	if err != nil {
		return nil, err
	}
	item, err := decodeHash(namespace, key, resp.Result)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *UpstashStore) Search(ctx context.Context, namespace []string) ([]Item, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"SMEMBERS", s.indexKey(namespace)})
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := decodeResult(resp.Result, &keys); err != nil {
		return nil, fmt.Errorf("decode namespace index: %w", err)
	}
	if len(keys) == 0 {
		return []Item{}, nil
	}
	sort.Strings(keys)

	commands := make([][]any, 0, len(keys))
	for _, k := range keys {
		commands = append(commands, []any{"HGETALL", s.itemKey(namespace, k)})
	}
	results, err := s.batch(ctx, "/pipeline", commands)
	if err != nil {
		return nil, fmt.Errorf("search memory items: %w", err)
	}

	out := make([]Item, 0, len(keys))
	for i, r := range results {
		if r.Error != "" {
			return nil, fmt.Errorf("search memory items: %s", r.Error)
		}
		item, err := decodeHash(namespace, keys[i], r.Result)
		if errors.Is(err, ErrNotFound) {
			// expired item still listed in the index
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *UpstashStore) Close() error { return nil }

func (s *UpstashStore) itemKey(namespace []string, key string) string {
	return s.keyPrefix + "item:" + joinNamespace(namespace) + "#" + key
}

func (s *UpstashStore) indexKey(namespace []string) string {
	return s.keyPrefix + "index:" + joinNamespace(namespace)
}

func decodeHash(namespace []string, key string, raw json.RawMessage) (*Item, error) {
	var flat []string
	if err := decodeResult(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode memory hash: %w", err)
	}
	if len(flat) == 0 {
		return nil, ErrNotFound
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("decode memory hash: odd field count %d", len(flat))
	}

	item := &Item{
		Namespace: append([]string(nil), namespace...),
		Key:       key,
		Value:     make(map[string]any, len(flat)/2),
	}
	for i := 0; i < len(flat); i += 2 {
		field, val := flat[i], flat[i+1]
		switch {
		case field == fieldCreatedAt:
			item.CreatedAt, _ = time.Parse(time.RFC3339Nano, val)
		case field == fieldUpdatedAt:
			item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, val)
		case strings.HasPrefix(field, valueFieldPrefix):
			var v any
			if err := json.Unmarshal([]byte(val), &v); err != nil {
				return nil, fmt.Errorf("decode memory field %q: %w", field, err)
			}
			item.Value[strings.TrimPrefix(field, valueFieldPrefix)] = v
		}
	}
	return item, nil
}

func decodeResult(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

func (s *UpstashStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	raw, err := s.post(ctx, "", command)
	if err != nil {
		return nil, err
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// batch posts several commands to the pipeline or multi-exec endpoint and
// returns one response per command.
func (s *UpstashStore) batch(ctx context.Context, endpoint string, commands [][]any) ([]redisRESTResponse, error) {
	raw, err := s.post(ctx, endpoint, commands)
	if err != nil {
		return nil, err
	}

	var parsed []redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// a failed transaction answers with a single error object
		var single redisRESTResponse
		if json.Unmarshal(raw, &single) == nil && single.Error != "" {
			return nil, errors.New(single.Error)
		}
		return nil, fmt.Errorf("decode redis batch response: %w", err)
	}
	if len(parsed) != len(commands) {
		return nil, fmt.Errorf("redis batch returned %d results for %d commands", len(parsed), len(commands))
	}
	return parsed, nil
}

func (s *UpstashStore) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
