package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setupMiniredisLimiter(t *testing.T, limits *Config) (*RedisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	s := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
		// Disable CLIENT SETINFO for miniredis compatibility
		DisableIndentity: true,
	})
	t.Cleanup(func() { client.Close() })

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl, err := NewRedisLimiter(&RedisLimiterConfig{Client: client, Limits: limits, Now: clock.Now})
	require.NoError(t, err)
	return rl, s, clock
}

func testLimits() *Config {
	return &Config{
		AuthRPS:    3,
		UserRPS:    5,
		DefaultRPS: 2,
		Burst:      4,
		Window:     time.Second,
		KeyPrefix:  "test",
		FailOpen:   true,
	}
}

func TestKeyClass(t *testing.T) {
	assert.Equal(t, ClassAuth, KeyClass("auth:/api/v1/auth/login:10.0.0.1"))
	assert.Equal(t, ClassUser, KeyClass("user:alice"))
	assert.Equal(t, ClassIP, KeyClass("ip:10.0.0.1"))
	assert.Equal(t, ClassIP, KeyClass("something-else"))
}

func TestConfig_Limits(t *testing.T) {
	c := testLimits()
	assert.Equal(t, 3, c.GetLimit("auth:/x:1"))
	assert.Equal(t, 3, c.GetCapacity("auth:/x:1"))
	assert.Equal(t, 5, c.GetLimit("user:alice"))
	assert.Equal(t, 5, c.GetCapacity("user:alice"))
	assert.Equal(t, 2, c.GetLimit("ip:1"))
	assert.Equal(t, 4, c.GetCapacity("ip:1"))

	c.UserRPS = 0
	assert.Equal(t, 2, c.GetLimit("user:alice"))
}

func TestNewRedisLimiter(t *testing.T) {
	_, err := NewRedisLimiter(nil)
	assert.Error(t, err)

	_, err = NewRedisLimiter(&RedisLimiterConfig{})
	assert.Error(t, err)
}

func TestRedisLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("auth bucket exhausts at its rate", func(t *testing.T) {
		rl, _, _ := setupMiniredisLimiter(t, testLimits())
		key := "auth:/api/v1/auth/login:10.0.0.1"

		for i := 0; i < 3; i++ {
			res, err := rl.Allow(ctx, key)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d", i)
			assert.Equal(t, 2-i, res.Remaining)
			assert.Equal(t, 3, res.Limit)
		}

		res, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Greater(t, res.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, res.RetryAfter, time.Second)
	})

	t.Run("ip bucket allows burst", func(t *testing.T) {
		rl, _, _ := setupMiniredisLimiter(t, testLimits())
		allowed := 0
		for i := 0; i < 10; i++ {
			res, err := rl.Allow(ctx, "ip:10.0.0.2")
			require.NoError(t, err)
			if res.Allowed {
				allowed++
			}
		}
		assert.Equal(t, 4, allowed)
	})

	t.Run("refills over time", func(t *testing.T) {
		rl, _, clock := setupMiniredisLimiter(t, testLimits())
		key := "auth:/api/v1/auth/login:10.0.0.3"
		for i := 0; i < 3; i++ {
			_, err := rl.Allow(ctx, key)
			require.NoError(t, err)
		}
		res, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		require.False(t, res.Allowed)

		clock.Advance(time.Second)
		res, err = rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl, s, _ := setupMiniredisLimiter(t, testLimits())
		for i := 0; i < 3; i++ {
			_, err := rl.Allow(ctx, "auth:/login:a")
			require.NoError(t, err)
		}
		res, err := rl.Allow(ctx, "auth:/login:b")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.True(t, s.Exists("test:auth:/login:a"))
		assert.True(t, s.Exists("test:auth:/login:b"))
	})

	t.Run("zero limit disables the class", func(t *testing.T) {
		limits := testLimits()
		limits.AuthRPS = 0
		rl, s, _ := setupMiniredisLimiter(t, limits)

		res, err := rl.Allow(ctx, "auth:/login:a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.False(t, s.Exists("test:auth:/login:a"))
	})
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("fail open", func(t *testing.T) {
		rl, s, _ := setupMiniredisLimiter(t, testLimits())
		s.Close()

		res, err := rl.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("fail closed", func(t *testing.T) {
		limits := testLimits()
		limits.FailOpen = false
		rl, s, _ := setupMiniredisLimiter(t, limits)
		s.Close()

		_, err := rl.Allow(ctx, "ip:10.0.0.1")
		assert.Error(t, err)
	})
}

func TestRedisLimiter_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes bucket", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		rl, err := NewRedisLimiter(&RedisLimiterConfig{Client: client, Limits: testLimits()})
		require.NoError(t, err)

		mock.ExpectDel("test:ip:10.0.0.1").SetVal(1)
		require.NoError(t, rl.Reset(ctx, "ip:10.0.0.1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		rl, err := NewRedisLimiter(&RedisLimiterConfig{Client: client, Limits: testLimits()})
		require.NoError(t, err)

		mock.ExpectDel("test:user:alice").SetErr(errors.New("readonly"))
		err = rl.Reset(ctx, "user:alice")
		assert.ErrorContains(t, err, "readonly")
	})

	t.Run("reset restores capacity", func(t *testing.T) {
		rl, _, _ := setupMiniredisLimiter(t, testLimits())
		key := "auth:/login:c"
		for i := 0; i < 4; i++ {
			_, err := rl.Allow(ctx, key)
			require.NoError(t, err)
		}
		require.NoError(t, rl.Reset(ctx, key))

		res, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})
}
