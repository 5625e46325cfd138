package service

import (
	"context"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	cacheBackendMemory = "memory"
	cacheBackendRedis  = "redis"

	redisCacheOpTimeout = 500 * time.Millisecond
	redisScanCount      = 200
)

// ProductCacheStore guarda payloads opacos del cache compartido.
// La validacion y el TTL logico viven en SharedCache; el store solo persiste.
type ProductCacheStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
	Delete(ctx context.Context, prefix string) (int, error)
	Backend() string
}

type memoryProductCacheStore struct {
	items *lru.Cache[string, []byte]
}

// NewMemoryProductCacheStore crea un store acotado por LRU para desarrollo o como fallback.
func NewMemoryProductCacheStore(size int) (ProductCacheStore, error) {
	if size <= 0 {
		size = 1024
	}
	items, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &memoryProductCacheStore{items: items}, nil
}

func (s *memoryProductCacheStore) Backend() string { return cacheBackendMemory }

func (s *memoryProductCacheStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := s.items.Get(key)
	return payload, ok, nil
}

func (s *memoryProductCacheStore) Save(_ context.Context, key string, payload []byte, _ time.Duration) error {
	s.items.Add(key, payload)
	return nil
}

func (s *memoryProductCacheStore) Scan(_ context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, key := range s.items.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if payload, ok := s.items.Peek(key); ok {
			out[key] = payload
		}
	}
	return out, nil
}

func (s *memoryProductCacheStore) Delete(_ context.Context, prefix string) (int, error) {
	n := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) && s.items.Remove(key) {
			n++
		}
	}
	return n, nil
}

type redisCacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisProductCacheStore struct {
	client redisCacheClient
	prefix string
}

func NewRedisProductCacheStore(client *redis.Client) ProductCacheStore {
	if client == nil {
		return nil
	}
	return newRedisProductCacheStore(client)
}

func newRedisProductCacheStore(client redisCacheClient) *redisProductCacheStore {
	return &redisProductCacheStore{
		client: client,
		prefix: "recs:cache:",
	}
}

func (s *redisProductCacheStore) Backend() string { return cacheBackendRedis }

func (s *redisProductCacheStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCacheOpTimeout)
	defer cancel()
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *redisProductCacheStore) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisCacheOpTimeout)
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

func (s *redisProductCacheStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil || len(keys) == 0 {
		return map[string][]byte{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, redisCacheOpTimeout)
	defer cancel()
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[strings.TrimPrefix(keys[i], s.prefix)] = []byte(str)
	}
	return out, nil
}

func (s *redisProductCacheStore) Delete(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, redisCacheOpTimeout)
	defer cancel()
	n, err := s.client.Del(ctx, keys...).Result()
	return int(n), err
}

func (s *redisProductCacheStore) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*redisCacheOpTimeout)
	defer cancel()

	var (
		keys   []string
		cursor uint64
	)
	match := s.prefix + prefix + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, redisScanCount).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
