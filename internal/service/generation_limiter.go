package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisGenerationAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// GenerationLimiter acota cuantas recomendaciones nuevas puede pedir un usuario por ventana.
// Cada generacion cuesta una llamada al LLM y potencialmente varias a catalogos externos.
type GenerationLimiter interface {
	Allow(ctx context.Context, userID string) bool
}

type redisGenerationLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

func NewRedisGenerationLimiter(client *redis.Client, window time.Duration, max int) GenerationLimiter {
	if client == nil {
		return nil
	}
	return newRedisGenerationLimiter(client, window, max)
}

func newRedisGenerationLimiter(client redisEvaler, window time.Duration, max int) *redisGenerationLimiter {
	if window <= 0 {
		window = time.Hour
	}
	if max <= 0 {
		max = 1
	}
	return &redisGenerationLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "recs:rl:",
	}
}

// Allow falla abierto: si Redis no responde se deja pasar la generacion.
func (l *redisGenerationLimiter) Allow(ctx context.Context, userID string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := strings.TrimSpace(userID)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 3600
	}
	count, err := l.client.Eval(ctx, redisGenerationAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

type memoryGenerationLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryGenerationLimiter crea un limitador de ventana deslizante en memoria del proceso.
func NewMemoryGenerationLimiter(window time.Duration, max int) GenerationLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Hour
	}
	return &memoryGenerationLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryGenerationLimiter) Allow(_ context.Context, userID string) bool {
	key := strings.TrimSpace(userID)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep borra, como mucho una vez por ventana, los usuarios sin hits vigentes.
func (l *memoryGenerationLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}
