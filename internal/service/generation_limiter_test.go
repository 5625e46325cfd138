package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisGenerationLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisGenerationLimiter
		if !l.Allow(ctx, "u1") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty user rejected", func(t *testing.T) {
		l := newRedisGenerationLimiter(&mockRedisEvaler{result: 1}, time.Minute, 3)
		if l.Allow(ctx, "   ") {
			t.Fatalf("expected empty user to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := newRedisGenerationLimiter(mock, 2*time.Minute, 3)
		if !l.Allow(ctx, " u1 ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "recs:rl:u1" {
			t.Fatalf("unexpected key, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisGenerationAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := newRedisGenerationLimiter(&mockRedisEvaler{result: 4}, time.Minute, 3)
		if l.Allow(ctx, "u1") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := newRedisGenerationLimiter(&mockRedisEvaler{err: errors.New("redis down")}, time.Minute, 3)
		if !l.Allow(ctx, "u1") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestRedisGenerationLimiterAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisGenerationLimiter(client, time.Minute, 2)
	ctx := context.Background()
	if !l.Allow(ctx, "u1") || !l.Allow(ctx, "u1") {
		t.Fatalf("first two generations must pass")
	}
	if l.Allow(ctx, "u1") {
		t.Fatalf("third generation must be limited")
	}
	if !l.Allow(ctx, "u2") {
		t.Fatalf("limits are per user")
	}

	mr.FastForward(61 * time.Second)
	if !l.Allow(ctx, "u1") {
		t.Fatalf("window must reset after expiry")
	}
}

func TestMemoryGenerationLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryGenerationLimiter(time.Hour, 2).(*memoryGenerationLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "u1") {
		t.Fatalf("expected first allow")
	}
	now = now.Add(30 * time.Minute)
	if !l.Allow(ctx, "u1") {
		t.Fatalf("expected second allow")
	}
	if l.Allow(ctx, "u1") {
		t.Fatalf("expected deny at max")
	}
	now = now.Add(31 * time.Minute)
	if !l.Allow(ctx, "u1") {
		t.Fatalf("oldest hit left the window, expected allow")
	}
	if l.Allow(ctx, "") {
		t.Fatalf("empty user must be rejected")
	}
}

func TestMemoryGenerationLimiterForgetsIdleUsers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryGenerationLimiter(time.Hour, 2).(*memoryGenerationLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		l.Allow(ctx, u)
	}
	if len(l.hits) != 3 {
		t.Fatalf("expected three tracked users, got %d", len(l.hits))
	}

	now = now.Add(2 * time.Hour)
	l.Allow(ctx, "u4")
	if len(l.hits) != 1 {
		t.Fatalf("idle users must be dropped, still tracking %d", len(l.hits))
	}
	if _, ok := l.hits["u4"]; !ok {
		t.Fatalf("active user must be kept")
	}
}
