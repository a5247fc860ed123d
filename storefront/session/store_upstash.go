package session

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

// Upstash answers every command with {"result": ...} or {"error": "..."}.
const upstashReplyLimit = 2 << 20

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL overrides the configured expiry. Zero keeps snapshots forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) { s.ttl = ttl }
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.client = client
		}
	}
}

// UpstashRedisStore keeps snapshots in Upstash Redis, talking to its REST
// endpoint one command per request.
type UpstashRedisStore struct {
	endpoint  string
	token     string
	client    *http.Client
	keyPrefix string
	ttl       time.Duration
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: upstash redis url is required", contract.ErrValidation)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: upstash redis url: %v", contract.ErrValidation, err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: upstash redis token is required", contract.ErrValidation)
	}

	s := &UpstashRedisStore{
		endpoint:  endpoint,
		token:     strings.TrimSpace(cfg.Token),
		client:    &http.Client{Timeout: cmp.Or(cfg.Timeout, 10*time.Second)},
		keyPrefix: defaultKeyPrefix,
		ttl:       cmp.Or(cfg.TTL, 7*24*time.Hour),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, fmt.Errorf("%w: snapshot ttl must be >= 0", contract.ErrValidation)
	}
	return s, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	result, err := s.command(ctx, "GET", key)
	if err != nil {
		return nil, err
	}

	var value *string
	if err := json.Unmarshal(result, &value); err != nil {
		return nil, fmt.Errorf("%w: GET %s returned %s", contract.ErrUpstream, key, result)
	}
	if value == nil {
		return nil, ErrSnapshotNotFound
	}
	return decodeSnapshot([]byte(*value))
}

func (s *UpstashRedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := prepareSave(snap); err != nil {
		return err
	}
	key, err := redisKey(s.keyPrefix, snap.SessionID)
	if err != nil {
		return err
	}
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	args := []any{"SET", key, string(value)}
	if s.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.command(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	_, err = s.command(ctx, "DEL", key)
	return err
}

// command posts args as a JSON array and returns the raw "result" member.
func (s *UpstashRedisStore) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	name := fmt.Sprint(args[0])
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: upstash %s: %v", contract.ErrUpstream, name, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, upstashReplyLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: upstash %s: read reply: %v", contract.ErrUpstream, name, err)
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &reply)
	switch {
	case reply.Error != "":
		return nil, fmt.Errorf("%w: upstash %s: %s", contract.ErrUpstream, name, reply.Error)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("%w: upstash %s: status %d", contract.ErrUpstream, name, resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: upstash %s: %v", contract.ErrUpstream, name, decodeErr)
	}
	if len(reply.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return reply.Result, nil
}

// ttlSeconds rounds up to whole seconds, since EX takes an integer.
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	return max(secs, 1)
}
