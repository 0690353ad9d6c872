package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

const (
	// DefaultPrefix namespaces every key written by the Redis stores.
	DefaultPrefix = "agriauth:"

	// DefaultRetention keeps terminal challenges readable after expiry so
	// repeated verification keeps reporting the same terminal error.
	DefaultRetention = 5 * time.Minute

	maxUpdateRetries = 4
	minKeyTTL        = time.Second
)

// RedisChallengeStore is a Redis implementation of ports.ChallengeStore. One
// JSON record per principal; updates use WATCH/MULTI so concurrent verifiers
// on different instances cannot both consume an attempt.
type RedisChallengeStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ ports.ChallengeStore = (*RedisChallengeStore)(nil)

// NewRedisChallengeStore creates a new Redis challenge store
func NewRedisChallengeStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisChallengeStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisChallengeStore{
		client:    client,
		prefix:    prefix + "challenge:",
		retention: retention,
	}
}

func (s *RedisChallengeStore) key(principalID string) string {
	return s.prefix + principalID
}

func (s *RedisChallengeStore) ttl(c *core.Challenge) time.Duration {
	d := time.Until(c.ExpiresAt) + s.retention
	if d < minKeyTTL {
		return minKeyTTL
	}
	return d
}

// Put replaces the principal's challenge in a single SET
func (s *RedisChallengeStore) Put(ctx context.Context, c *core.Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.key(c.PrincipalID), data, s.ttl(c)).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Get returns the principal's challenge
func (s *RedisChallengeStore) Get(ctx context.Context, principalID string) (*core.Challenge, error) {
	data, err := s.client.Get(ctx, s.key(principalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNoChallenge
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	var c core.Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: corrupt challenge: %v", core.ErrStoreOperationFailed, err)
	}
	return &c, nil
}

// Update runs fn inside an optimistic transaction, retrying when another
// client modified the record in between
func (s *RedisChallengeStore) Update(ctx context.Context, principalID string, fn func(c *core.Challenge) error) (*core.Challenge, error) {
	key := s.key(principalID)

	for i := 0; i < maxUpdateRetries; i++ {
		var (
			updated *core.Challenge
			fnErr   error
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var c core.Challenge
			if err := json.Unmarshal(data, &c); err != nil {
				return err
			}

			fnErr = fn(&c)

			encoded, err := json.Marshal(&c)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, s.ttl(&c))
				return nil
			})
			if err != nil {
				return err
			}
			updated = &c
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNoChallenge
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
		}
		return updated, fnErr
	}

	return nil, fmt.Errorf("%w: challenge %s kept changing", core.ErrStoreOperationFailed, principalID)
}

// Delete removes the principal's challenge
func (s *RedisChallengeStore) Delete(ctx context.Context, principalID string) error {
	if err := s.client.Del(ctx, s.key(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// RedisSessionStore is a Redis implementation of ports.SessionStore. Session
// keys expire together with the session.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a new Redis session store
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisSessionStore{
		client: client,
		prefix: prefix + "session:",
	}
}

// Save records a session until it expires
func (s *RedisSessionStore) Save(ctx context.Context, session *core.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl < minKeyTTL {
		return core.ErrTokenExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Get returns a recorded session; unknown ids count as revoked
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionRevoked
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: corrupt session: %v", core.ErrStoreOperationFailed, err)
	}
	return &session, nil
}

// Delete revokes a session
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}
