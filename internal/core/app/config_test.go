package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3567, cfg.Port)
	require.Equal(t, "RS256", cfg.Algorithm)
	require.Equal(t, KeyStorageEphemeral, cfg.KeyStorageMode)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 100*24*time.Hour, cfg.RefreshTokenTTL)
	require.Empty(t, cfg.APIKeyHashes)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CORE_PORT", "9000")
	t.Setenv("CORE_API_KEY_HASHES", "hash-a;hash-b")
	t.Setenv("CORE_API_VERSIONS", "3.0;4.0")
	t.Setenv("CORE_ACCESS_TOKEN_VALIDITY", "15m")
	t.Setenv("CORE_SIGNING_ALGORITHM", "ES256")
	t.Setenv("CORE_KEY_STORAGE_MODE", "persistent")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, []string{"hash-a", "hash-b"}, cfg.APIKeyHashes)
	require.Equal(t, []string{"3.0", "4.0"}, cfg.APIVersions)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, KeyStoragePersistent, cfg.KeyStorageMode)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Algorithm:       "RS256",
		KeyStorageMode:  KeyStorageEphemeral,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown algorithm", func(c *Config) { c.Algorithm = "HS256" }},
		{"legacy needs rsa", func(c *Config) { c.Algorithm = "EdDSA"; c.LegacyAccessTokens = true }},
		{"unknown storage mode", func(c *Config) { c.KeyStorageMode = "vault" }},
		{"access outlives refresh", func(c *Config) { c.AccessTokenTTL = 48 * time.Hour }},
		{"zero ttl", func(c *Config) { c.RefreshTokenTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
