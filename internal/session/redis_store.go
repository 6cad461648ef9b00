package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bank-terminal-go/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so several terminals can share them.
// Keys carry a TTL as a backstop; idle expiry is still decided by Manager.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Connect opens a client and checks it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisStore) key(account string) string {
	return r.prefix + account
}

func (r *RedisStore) Get(ctx context.Context, account string) (*models.Session, error) {
	val, err := r.client.Get(ctx, r.key(account)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(val)
}

func (r *RedisStore) Put(ctx context.Context, s models.Session) error {
	if s.AccountNumber == "" || s.Token == "" {
		return fmt.Errorf("session: missing account or token")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(s.AccountNumber), data, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, account string) error {
	return r.client.Del(ctx, r.key(account)).Err()
}

func (r *RedisStore) List(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s, err := decodeSession(val)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session: scan failed: %w", err)
	}
	return out, nil
}

func decodeSession(val string) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}
