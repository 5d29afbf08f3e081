package jwtx

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// KeySource fetches the current JWKS from wherever the signing keys live.
type KeySource interface {
	FetchJWKS(ctx context.Context) (JWKS, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context) (JWKS, error)

func (f KeySourceFunc) FetchJWKS(ctx context.Context) (JWKS, error) { return f(ctx) }

// CachedJWKS is a JWKS together with the time it was fetched from the source.
type CachedJWKS struct {
	JWKS      JWKS      `json:"jwks"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheStore holds the last fetched JWKS. Shared stores let several SDK
// processes reuse one fetch.
type CacheStore interface {
	// Load returns the stored entry. ok is false when nothing is stored.
	Load(ctx context.Context) (entry CachedJWKS, ok bool, err error)
	Save(ctx context.Context, entry CachedJWKS, ttl time.Duration) error
}

// MemoryStore is a process local CacheStore.
type MemoryStore struct {
	mu      sync.Mutex
	entry   CachedJWKS
	expires time.Time
	ok      bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(_ context.Context) (CachedJWKS, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok || time.Now().After(m.expires) {
		return CachedJWKS{}, false, nil
	}
	return m.entry, true, nil
}

func (m *MemoryStore) Save(_ context.Context, entry CachedJWKS, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry, m.ok = entry, true
	m.expires = time.Now().Add(ttl)
	return nil
}

// Defaults for KeyCacheConfig.
const (
	DefaultKeyCacheTTL        = time.Minute
	DefaultMinRefreshInterval = 5 * time.Second
)

// KeyCacheConfig configures a KeyCache.
type KeyCacheConfig struct {
	// Source is where keys come from. Required.
	Source KeySource

	// Store shares fetched keys. Default: a MemoryStore.
	Store CacheStore

	// TTL is how long fetched keys are trusted. Default: 1 minute.
	TTL time.Duration

	// MinRefreshInterval bounds how often an unknown kid can force a refetch
	// of otherwise fresh keys. Default: 5 seconds.
	MinRefreshInterval time.Duration

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// KeyCache resolves verification keys lazily. Nothing is fetched until the
// first lookup and there is no background refresh.
type KeyCache struct {
	source     KeySource
	store      CacheStore
	ttl        time.Duration
	minRefresh time.Duration
	logger     *slog.Logger
	now        func() time.Time

	keys  *KeySet
	group singleflight.Group

	mu          sync.Mutex
	fetchedAt   time.Time
	lastRefresh time.Time
	invalidated bool
}

// NewKeyCache returns a KeyCache. It panics if cfg.Source is nil.
func NewKeyCache(cfg KeyCacheConfig) *KeyCache {
	if cfg.Source == nil {
		panic("jwtx: KeyCacheConfig.Source is required")
	}
	c := &KeyCache{
		source:     cfg.Source,
		store:      cfg.Store,
		ttl:        cfg.TTL,
		minRefresh: cfg.MinRefreshInterval,
		logger:     cfg.Logger,
		now:        cfg.Now,
		keys:       NewKeySet(),
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.ttl <= 0 {
		c.ttl = DefaultKeyCacheTTL
	}
	if c.minRefresh <= 0 {
		c.minRefresh = DefaultMinRefreshInterval
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Key implements KeyResolver. An unknown kid triggers at most one refetch per
// MinRefreshInterval.
func (c *KeyCache) Key(ctx context.Context, kid string) (any, error) {
	if !c.fresh() {
		if err := c.refresh(ctx, false); err != nil {
			return nil, err
		}
	}
	if pk, err := c.keys.Get(kid); err == nil {
		return pk, nil
	}

	if !c.mayForceRefresh() {
		return nil, ErrNoKey
	}
	c.logger.Debug("unknown kid, refreshing signing keys", "kid", kid)
	if err := c.refresh(ctx, true); err != nil {
		return nil, err
	}
	return c.keys.Get(kid)
}

// Keys returns every cached key of the given JWK kty, fetching if stale.
func (c *KeyCache) Keys(ctx context.Context, kty string) ([]any, error) {
	if !c.fresh() {
		if err := c.refresh(ctx, false); err != nil {
			return nil, err
		}
	}
	return c.keys.Keys(kty), nil
}

// RSAKeys returns every cached RSA key, for legacy token verification.
func (c *KeyCache) RSAKeys(ctx context.Context) ([]*rsa.PublicKey, error) {
	if !c.fresh() {
		if err := c.refresh(ctx, false); err != nil {
			return nil, err
		}
	}
	return c.keys.RSAKeys(), nil
}

// RSAKeysRefreshed refetches keys from the source and returns every RSA key.
// Legacy tokens carry no kid, so a signature that matches no cached key is
// the only sign of a rotation. ok is false when a forced refetch already ran
// within MinRefreshInterval.
func (c *KeyCache) RSAKeysRefreshed(ctx context.Context) (keys []*rsa.PublicKey, ok bool, err error) {
	if !c.mayForceRefresh() {
		return nil, false, nil
	}
	c.logger.Debug("legacy token matched no cached key, refreshing signing keys")
	if err := c.refresh(ctx, true); err != nil {
		return nil, false, err
	}
	return c.keys.RSAKeys(), true, nil
}

// Invalidate marks the cached keys stale so the next lookup fetches from the
// source, bypassing the store.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
	c.lastRefresh = time.Time{}
	c.invalidated = true
}

func (c *KeyCache) fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
}

func (c *KeyCache) mayForceRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh.IsZero() || c.now().Sub(c.lastRefresh) >= c.minRefresh
}

// refresh loads keys through singleflight so concurrent misses share one
// fetch. Unless force is set, a fresh entry in the store is used before the
// source is asked.
func (c *KeyCache) refresh(ctx context.Context, force bool) error {
	key := "load"
	if force {
		key = "fetch"
	}
	_, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		skipStore := force || c.invalidated
		if force {
			c.lastRefresh = c.now()
		}
		c.mu.Unlock()

		if !skipStore {
			if entry, ok := c.loadFromStore(ctx); ok {
				return nil, c.install(entry)
			}
		}

		jwks, err := c.source.FetchJWKS(ctx)
		if err != nil {
			return nil, fmt.Errorf("jwtx: fetch signing keys: %w", err)
		}
		entry := CachedJWKS{JWKS: jwks, FetchedAt: c.now()}
		if err := c.install(entry); err != nil {
			return nil, err
		}
		if err := c.store.Save(ctx, entry, c.ttl); err != nil {
			c.logger.Warn("failed to save signing keys to cache store", "error", err)
		}
		c.logger.Debug("refreshed signing keys", "keys", len(jwks.Keys))
		return nil, nil
	})
	return err
}

func (c *KeyCache) loadFromStore(ctx context.Context) (CachedJWKS, bool) {
	entry, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load signing keys from cache store", "error", err)
		return CachedJWKS{}, false
	}
	if !ok || c.now().Sub(entry.FetchedAt) >= c.ttl {
		return CachedJWKS{}, false
	}
	return entry, true
}

func (c *KeyCache) install(entry CachedJWKS) error {
	if len(entry.JWKS.Keys) == 0 {
		return errors.New("jwtx: key source returned no keys")
	}
	if err := c.keys.ResetFromJWKS(entry.JWKS); err != nil {
		return fmt.Errorf("jwtx: load signing keys: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = entry.FetchedAt
	c.invalidated = false
	return nil
}
