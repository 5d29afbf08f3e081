package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures a RedisStore from the environment.
type RedisStoreConfig struct {
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
	Key      string `env:"SESSIONKIT_JWKS_KEY,default=sessionkit:jwks"`
}

// RedisStoreConfigFromEnv decodes RedisStoreConfig from environment variables.
func RedisStoreConfigFromEnv() (RedisStoreConfig, error) {
	var cfg RedisStoreConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("jwtx: decode redis store config: %w", err)
	}
	return cfg, nil
}

// RedisStore shares fetched keys between processes through one Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client. An empty key uses "sessionkit:jwks".
func NewRedisStore(client *redis.Client, key string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("jwtx: redis client is required")
	}
	if key == "" {
		key = "sessionkit:jwks"
	}
	return &RedisStore{client: client, key: key}, nil
}

// NewRedisStoreFromConfig dials Redis using cfg.
func NewRedisStoreFromConfig(cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStore(client, cfg.Key)
}

func (s *RedisStore) Load(ctx context.Context) (CachedJWKS, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedJWKS{}, false, nil
		}
		return CachedJWKS{}, false, fmt.Errorf("jwtx: redis get %s: %w", s.key, err)
	}

	var entry CachedJWKS
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CachedJWKS{}, false, fmt.Errorf("jwtx: decode cached jwks: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Save(ctx context.Context, entry CachedJWKS, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("jwtx: encode cached jwks: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("jwtx: redis set %s: %w", s.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
