package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/internal/otp"
	"github.com/layer-3/agriauth/ports"
)

func newRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func challengeStores(t *testing.T) map[string]ports.ChallengeStore {
	client, _ := newRedisClient(t)
	return map[string]ports.ChallengeStore{
		"memory": NewMemoryChallengeStore(),
		"redis":  NewRedisChallengeStore(client, "test:", DefaultRetention),
	}
}

func pendingChallenge(id, principalID, code string) *core.Challenge {
	now := time.Now()
	return &core.Challenge{
		ID:           id,
		PrincipalID:  principalID,
		CodeHash:     otp.Hash(code),
		CreatedAt:    now,
		ExpiresAt:    now.Add(5 * time.Minute),
		AttemptsLeft: 3,
		Status:       core.ChallengePending,
	}
}

func TestChallengeStore_PutReplacesPrior(t *testing.T) {
	for name, s := range challengeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, pendingChallenge("c1", "p1", "111111")))
			require.NoError(t, s.Put(ctx, pendingChallenge("c2", "p1", "222222")))

			got, err := s.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, "c2", got.ID)
			assert.Equal(t, core.ChallengePending, got.Status)
		})
	}
}

func TestChallengeStore_GetMissing(t *testing.T) {
	for name, s := range challengeStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nobody")
			require.ErrorIs(t, err, core.ErrNoChallenge)

			_, err = s.Update(context.Background(), "nobody", func(c *core.Challenge) error { return nil })
			require.ErrorIs(t, err, core.ErrNoChallenge)
		})
	}
}

func TestChallengeStore_UpdatePersistsOnError(t *testing.T) {
	for name, s := range challengeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, pendingChallenge("c1", "p1", "123456")))

			now := time.Now()
			got, err := s.Update(ctx, "p1", func(c *core.Challenge) error {
				return c.Attempt("000000", now)
			})
			require.ErrorIs(t, err, core.ErrMismatch)
			assert.Equal(t, 2, got.AttemptsLeft)

			stored, err := s.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 2, stored.AttemptsLeft)
		})
	}
}

func TestChallengeStore_ConcurrentAttempts(t *testing.T) {
	for name, s := range challengeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := pendingChallenge("c1", "p1", "123456")
			c.AttemptsLeft = 10
			require.NoError(t, s.Put(ctx, c))

			var wg sync.WaitGroup
			now := time.Now()
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = s.Update(ctx, "p1", func(c *core.Challenge) error {
						return c.Attempt("000000", now)
					})
				}()
			}
			wg.Wait()

			stored, err := s.Get(ctx, "p1")
			require.NoError(t, err)
			// Redis may give up on a heavily contended update, never double count.
			assert.GreaterOrEqual(t, stored.AttemptsLeft, 5)
			assert.Less(t, stored.AttemptsLeft, 10)
		})
	}
}

func TestChallengeStore_Delete(t *testing.T) {
	for name, s := range challengeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, pendingChallenge("c1", "p1", "123456")))
			require.NoError(t, s.Delete(ctx, "p1"))
			require.NoError(t, s.Delete(ctx, "p1"))

			_, err := s.Get(ctx, "p1")
			require.ErrorIs(t, err, core.ErrNoChallenge)
		})
	}
}

func TestMemoryChallengeStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryChallengeStore()

	live := pendingChallenge("c1", "live", "111111")
	expired := pendingChallenge("c2", "expired", "222222")
	expired.ExpiresAt = time.Now().Add(-DefaultRetention - time.Minute)
	recent := pendingChallenge("c3", "recent", "333333")
	recent.ExpiresAt = time.Now().Add(-time.Minute)
	exhausted := pendingChallenge("c4", "exhausted", "444444")
	exhausted.Status = core.ChallengeExhausted
	exhausted.AttemptsLeft = 0

	for _, c := range []*core.Challenge{live, expired, recent, exhausted} {
		require.NoError(t, s.Put(ctx, c))
	}

	n, err := s.Purge(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "expired")
	require.ErrorIs(t, err, core.ErrNoChallenge)
	for _, id := range []string{"live", "recent", "exhausted"} {
		_, err = s.Get(ctx, id)
		require.NoError(t, err, id)
	}

	// everything goes once the retention has passed
	n, err = s.Purge(ctx, time.Now().Add(5*time.Minute+DefaultRetention+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRedisChallengeStore_KeyExpires(t *testing.T) {
	client, mr := newRedisClient(t)
	s := NewRedisChallengeStore(client, "test:", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, pendingChallenge("c1", "p1", "123456")))
	assert.True(t, mr.Exists("test:challenge:p1"))

	mr.FastForward(7 * time.Minute)
	_, err := s.Get(ctx, "p1")
	require.ErrorIs(t, err, core.ErrNoChallenge)
}

func sessionStores(t *testing.T) map[string]ports.SessionStore {
	client, _ := newRedisClient(t)
	return map[string]ports.SessionStore{
		"memory": NewMemorySessionStore(),
		"redis":  NewRedisSessionStore(client, "test:"),
	}
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	for name, s := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			session := &core.Session{
				ID:          "s1",
				PrincipalID: "p1",
				Role:        core.RoleLender,
				IssuedAt:    now,
				ExpiresAt:   now.Add(time.Hour),
				Token:       "secret-token",
			}
			require.NoError(t, s.Save(ctx, session))

			got, err := s.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "p1", got.PrincipalID)
			assert.Equal(t, core.RoleLender, got.Role)
			assert.Empty(t, got.Token)

			require.NoError(t, s.Delete(ctx, "s1"))
			_, err = s.Get(ctx, "s1")
			require.ErrorIs(t, err, core.ErrSessionRevoked)
		})
	}
}

func TestRedisSessionStore_RejectsExpired(t *testing.T) {
	client, _ := newRedisClient(t)
	s := NewRedisSessionStore(client, "")

	err := s.Save(context.Background(), &core.Session{ID: "s1", ExpiresAt: time.Now().Add(-time.Second)})
	require.ErrorIs(t, err, core.ErrTokenExpired)
}
