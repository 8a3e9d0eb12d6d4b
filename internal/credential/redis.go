package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "passerelle:session:"

// RedisStore persists credentials in redis so sessions survive gateway
// restarts. Each entry carries the session TTL; redis eviction doubles as
// idle-session expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credential redis store: ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close releases the underlying redis connection.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Get returns the credential for the session, (nil, nil) when absent.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Credential, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	data, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential redis store: get: %w", err)
	}
	var cred Credential
	if err = json.Unmarshal(data, &cred); err != nil {
		// A garbled entry is unrecoverable; drop it rather than poison the session.
		_ = s.client.Del(ctx, redisKey(sessionID)).Err()
		return nil, nil
	}
	return &cred, nil
}

// Put stores or replaces the credential for the session.
func (s *RedisStore) Put(ctx context.Context, sessionID string, cred *Credential) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || cred == nil {
		return nil
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential redis store: marshal: %w", err)
	}
	if err = s.client.Set(ctx, redisKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("credential redis store: set: %w", err)
	}
	return nil
}

// Clear removes the credential for the session.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("credential redis store: del: %w", err)
	}
	return nil
}
