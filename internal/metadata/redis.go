package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a hash at <prefix>:<tenant_id>:<event_id>
// and indexes event ids per tenant in the set <prefix>:<tenant_id>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedisStore connects to redisURL and verifies the connection.
func OpenRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStore(client, prefix), nil
}

// RecordKey returns the hash key holding a record.
func (s *RedisStore) RecordKey(tenantID, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, tenantID, eventID)
}

// TenantKey returns the set key indexing a tenant's event ids.
func (s *RedisStore) TenantKey(tenantID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, tenantID)
}

// Put replaces the hash and indexes the event id in one transaction.
func (s *RedisStore) Put(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	fields := map[string]any{
		"tenant_id":    record.TenantID,
		"event_id":     record.EventID,
		"event_type":   record.EventType,
		"raw_bucket":   record.RawBucket,
		"raw_key":      record.RawKey,
		"processed_at": record.ProcessedAt,
		"status":       string(record.Status),
	}
	if record.QuarantineKey != "" {
		fields["quarantine_key"] = record.QuarantineKey
	}

	key := s.RecordKey(record.TenantID, record.EventID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, s.TenantKey(record.TenantID), record.EventID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
