// Package coretest runs the reference core in process for tests.
package coretest

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	corehttp "github.com/aussiebroadwan/sessionkit/internal/core/http"
	"github.com/aussiebroadwan/sessionkit/internal/core/service"
	"github.com/aussiebroadwan/sessionkit/internal/core/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const Issuer = "https://core.test"

type Options struct {
	// Algorithm defaults to ES256. Legacy tokens need RS256.
	Algorithm string

	// LegacyAccessTokens makes new sessions carry v2 access tokens.
	LegacyAccessTokens bool

	// APIKey, when set, is the only key the core accepts.
	APIKey string

	AccessTTL  time.Duration // default 1h
	RefreshTTL time.Duration // default 24h
	Versions   []string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Core is a running in-process core.
type Core struct {
	*httptest.Server

	Store       *sqlite.Store
	KeyManager  *jwtx.KeyManager
	Sessions    *service.SessionService
	KeyRotation *service.KeyRotationService
}

// New starts a core backed by an in-memory database. It is closed when the
// test ends.
func New(t testing.TB, opts Options) *Core {
	t.Helper()

	if opts.Algorithm == "" {
		opts.Algorithm = jwtx.AlgorithmES256
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: opts.Algorithm, Issuer: Issuer})
	require.NoError(t, err)

	var hashes []string
	if opts.APIKey != "" {
		h, err := cryptox.HashSecret(opts.APIKey)
		require.NoError(t, err)
		hashes = []string{h}
	}

	c := &Core{
		Store:      st,
		KeyManager: km,
		Sessions: &service.SessionService{
			Store:              st,
			KeyManager:         km,
			Issuer:             Issuer,
			AccessTTL:          opts.AccessTTL,
			RefreshTTL:         opts.RefreshTTL,
			LegacyAccessTokens: opts.LegacyAccessTokens,
			Now:                opts.Now,
		},
		KeyRotation: &service.KeyRotationService{
			KeyManager: km,
			Algorithm:  opts.Algorithm,
			Now:        opts.Now,
		},
	}

	router := corehttp.NewRouter(corehttp.RouterOptions{
		Keys:         km.KeySet,
		Store:        st,
		Logger:       opts.Logger,
		BuildVersion: "test",
		Versions:     opts.Versions,
		APIKeyHashes: hashes,
	})
	router.SessionService = c.Sessions
	router.KeyRotationService = c.KeyRotation
	router.ApplyRoutes()

	c.Server = httptest.NewServer(router)
	t.Cleanup(func() {
		c.Server.Close()
		_ = st.Close()
	})
	return c
}
