package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type redisStub struct {
	redis.Cmdable
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newRedisStub() *redisStub {
	return &redisStub{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *redisStub) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if s.getErr != nil {
		cmd.SetErr(s.getErr)
		return cmd
	}
	raw, ok := s.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(raw))
	return cmd
}

func (s *redisStub) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	s.values[key] = value.([]byte)
	s.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestCacheRepositorySetThenGet(t *testing.T) {
	stub := newRedisStub()
	repo := NewCacheRepository(stub)

	require.NoError(t, repo.Set(context.Background(), "substitution:run:1", map[string]int{"assigned": 2}, time.Minute))
	assert.Equal(t, time.Minute, stub.ttls["substitution:run:1"])

	var out map[string]int
	require.NoError(t, repo.Get(context.Background(), "substitution:run:1", &out))
	assert.Equal(t, 2, out["assigned"])
}

func TestCacheRepositoryMiss(t *testing.T) {
	repo := NewCacheRepository(newRedisStub())

	var out map[string]int
	err := repo.Get(context.Background(), "absent", &out)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryGetError(t *testing.T) {
	stub := newRedisStub()
	stub.getErr = errors.New("connection refused")
	repo := NewCacheRepository(stub)

	var out map[string]int
	err := repo.Get(context.Background(), "key", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil)

	assert.ErrorIs(t, repo.Get(context.Background(), "key", &struct{}{}), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "key", 1, time.Minute))
}
