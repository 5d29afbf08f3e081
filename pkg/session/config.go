package session

import (
	"log/slog"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
)

// AntiCsrfMode selects how requests prove they come from the session's origin.
type AntiCsrfMode string

const (
	// AntiCsrfViaToken binds a random value into the access token that the
	// client must echo back.
	AntiCsrfViaToken AntiCsrfMode = "VIA_TOKEN"

	// AntiCsrfViaCustomHeader requires the request to carry a custom header,
	// which browsers do not send cross-site without a preflight.
	AntiCsrfViaCustomHeader AntiCsrfMode = "VIA_CUSTOM_HEADER"

	AntiCsrfNone AntiCsrfMode = "NONE"
)

// Config configures a Recipe. Token validity windows are core settings.
type Config struct {
	// AntiCsrf defaults to AntiCsrfNone.
	AntiCsrf AntiCsrfMode

	// AccessTokenBlacklisting makes every GetSession ask the core whether the
	// session still exists.
	AccessTokenBlacklisting bool

	// Issuer, when set, must match the iss claim of v3 access tokens.
	Issuer string

	// KeyCacheTTL is how long fetched signing keys are trusted. Default: 1 minute.
	KeyCacheTTL time.Duration

	// KeyStore shares fetched signing keys between processes, e.g. a
	// jwtx.RedisStore. Default: in-process memory.
	KeyStore jwtx.CacheStore

	// Overrides wrap the default RecipeInterface, applied in order.
	Overrides []Override

	// Logger default: slog.Default().
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c Config) normalized() Config {
	cfg := c
	if cfg.AntiCsrf == "" {
		cfg.AntiCsrf = AntiCsrfNone
	}
	if cfg.KeyCacheTTL <= 0 {
		cfg.KeyCacheTTL = jwtx.DefaultKeyCacheTTL
	}
	if cfg.KeyStore == nil {
		cfg.KeyStore = jwtx.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

func validAntiCsrfMode(m AntiCsrfMode) bool {
	switch m {
	case AntiCsrfViaToken, AntiCsrfViaCustomHeader, AntiCsrfNone:
		return true
	default:
		return false
	}
}
