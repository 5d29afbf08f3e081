package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
)

// InitKeys creates the KeyManager for the configured storage mode.
//
// Storage modes:
//   - "ephemeral": keys exist in memory only. Every issued token stops
//     verifying when the core restarts.
//   - "persistent": keys are encrypted with the master key and stored in the
//     database, so tokens survive restarts and retired keys get a grace period.
func InitKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	}

	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	}

	if cfg.KeyStorageMode == KeyStoragePersistent {
		km, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			KeyManagerOptions: opts,
			Store:             store.NewKeyStoreAdapter(db),
			GracePeriod:       cfg.KeyGracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}
		logger.Info("persistent signing keys loaded",
			"algorithm", km.Algorithm(),
			"num_keys", km.NumSigners(),
			"grace_period", cfg.KeyGracePeriod,
		)
		return km, nil
	}

	km, err := jwtx.NewEphemeralKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}
	logger.Info("generated ephemeral signing keys", "algorithm", km.Algorithm(), "num_keys", km.NumSigners())
	logger.Warn("signing keys are ephemeral, tokens issued before a restart will not verify")
	return km, nil
}
