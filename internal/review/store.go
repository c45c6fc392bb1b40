package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
)

// DefaultTTL bounds how long an unconfirmed draft is kept.
const DefaultTTL = 24 * time.Hour

// DraftStore keeps drafts between review calls. Load returns
// common.ErrNotFound for unknown or expired drafts.
type DraftStore interface {
	Save(ctx context.Context, d *Draft) error
	Load(ctx context.Context, id uuid.UUID) (*Draft, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryStore keeps drafts in process. Drafts are stored serialized so callers
// never share a *Draft.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[uuid.UUID]memoryItem
}

type memoryItem struct {
	payload []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, items: map[uuid.UUID]memoryItem{}}
}

func (s *MemoryStore) Save(_ context.Context, d *Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[d.ID] = memoryItem{payload: b, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id uuid.UUID) (*Draft, error) {
	s.mu.Lock()
	item, ok := s.items[id]
	if ok && s.now().After(item.expires) {
		delete(s.items, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, common.ErrNotFound)
	}
	var d Draft
	if err := json.Unmarshal(item.payload, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// RedisStore keeps drafts as JSON strings with a TTL so several daemons can
// share review state.
type RedisStore struct {
	c      *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{c: c, ttl: ttl, prefix: "vitals:draft:"}
}

func (s *RedisStore) key(id uuid.UUID) string { return s.prefix + id.String() }

func (s *RedisStore) Save(ctx context.Context, d *Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.c.Set(ctx, s.key(d.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (*Draft, error) {
	val, err := s.c.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("draft %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(val, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.c.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// NewRedisClient builds the client used by RedisStore.
func NewRedisClient(cfg common.ReviewConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
