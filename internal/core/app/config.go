package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/joeshaw/envdecode"
)

const (
	KeyStorageEphemeral  = "ephemeral"
	KeyStoragePersistent = "persistent"
)

type Config struct {
	Port                int           `env:"CORE_PORT,default=3567"`
	DatabaseFile        string        `env:"CORE_DATABASE_FILE,default=core.db"`
	ShutdownGracePeriod time.Duration `env:"CORE_SHUTDOWN_GRACE_PERIOD,default=10s"`

	// APIKeyHashes are Argon2id hashes, separated by semicolons. Empty
	// leaves the session API open.
	APIKeyHashes []string `env:"CORE_API_KEY_HASHES"`
	PepperFile   string   `env:"CORE_PEPPER_FILE,default=pepper"`
	APIVersions  []string `env:"CORE_API_VERSIONS"`

	Issuer             string        `env:"CORE_ISSUER"`
	AccessTokenTTL     time.Duration `env:"CORE_ACCESS_TOKEN_VALIDITY,default=1h"`
	RefreshTokenTTL    time.Duration `env:"CORE_REFRESH_TOKEN_VALIDITY,default=2400h"`
	LegacyAccessTokens bool          `env:"CORE_LEGACY_ACCESS_TOKENS,default=false"`

	Algorithm      string        `env:"CORE_SIGNING_ALGORITHM,default=RS256"`
	RSABits        int           `env:"CORE_RSA_BITS,default=2048"`
	NumKeys        int           `env:"CORE_NUM_KEYS,default=1"`
	KeyStorageMode string        `env:"CORE_KEY_STORAGE_MODE,default=ephemeral"`
	KeyGracePeriod time.Duration `env:"CORE_KEY_GRACE_PERIOD,default=720h"`
	MasterKeyPath  string        `env:"CORE_MASTER_KEY_PATH"`

	HousekeepingInterval time.Duration `env:"CORE_HOUSEKEEPING_INTERVAL,default=1h"`

	Env       string `env:"ENV,default=dev"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// LoadConfig reads Config from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Algorithm {
	case jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA:
	default:
		return fmt.Errorf("CORE_SIGNING_ALGORITHM: unsupported algorithm %q", c.Algorithm)
	}
	if c.LegacyAccessTokens && c.Algorithm != jwtx.AlgorithmRS256 {
		return errors.New("CORE_LEGACY_ACCESS_TOKENS requires CORE_SIGNING_ALGORITHM=RS256")
	}
	switch c.KeyStorageMode {
	case KeyStorageEphemeral, KeyStoragePersistent:
	default:
		return fmt.Errorf("CORE_KEY_STORAGE_MODE: unknown mode %q", c.KeyStorageMode)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token validity windows must be positive")
	}
	if c.AccessTokenTTL > c.RefreshTokenTTL {
		return errors.New("CORE_ACCESS_TOKEN_VALIDITY must not exceed CORE_REFRESH_TOKEN_VALIDITY")
	}
	return nil
}
