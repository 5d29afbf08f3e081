package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/idx"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
)

// DefaultKeyGracePeriod is how long a retired key keeps verifying.
const DefaultKeyGracePeriod = 30 * 24 * time.Hour

var ErrKeyRetired = errors.New("key is already retired")

// KeyRotationService rotates the core's signing keys at runtime.
//
// With a nil Store the keys live in the KeyManager only and retired keys keep
// verifying until the process restarts. With a Store, new keys are encrypted
// and persisted, and retired keys verify for GracePeriod.
type KeyRotationService struct {
	Store       store.Store
	KeyManager  *jwtx.KeyManager
	Algorithm   string
	RSABits     int
	GracePeriod time.Duration
	Now         func() time.Time
}

type RotateKeyRequest struct {
	// RetireExisting retires every active key once the new one is in place.
	RetireExisting bool `json:"retireExisting"`
}

type RotateKeyResponse struct {
	NewKey      domain.SigningKey   `json:"newKey"`
	RetiredKeys []domain.SigningKey `json:"retiredKeys,omitempty"`
	ActiveKeys  int                 `json:"activeKeys"`
}

func (s *KeyRotationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *KeyRotationService) grace() time.Duration {
	if s.GracePeriod > 0 {
		return s.GracePeriod
	}
	return DefaultKeyGracePeriod
}

// RotateKey generates a signing key and optionally retires the current ones.
func (s *KeyRotationService) RotateKey(ctx context.Context, req RotateKeyRequest) (*RotateKeyResponse, error) {
	if s.KeyManager == nil {
		return nil, errors.New("KeyManager is required")
	}

	pemData, signer, err := jwtx.GenerateSigner(s.Algorithm, s.RSABits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	now := s.now()
	newKey := domain.SigningKey{
		Kid:       signer.KID(),
		Algorithm: s.Algorithm,
		CreatedAt: now,
	}

	var retired []domain.SigningKey
	if s.Store != nil {
		encrypted, err := cryptox.EncryptPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt private key: %w", err)
		}
		newKey.ID = idx.New().String()
		newKey.PrivateKeyEncrypted = encrypted
		newKey.ExpiresAt = now.Add(s.grace())

		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.SigningKeys().CreateSigningKey(ctx, newKey); err != nil {
				return fmt.Errorf("failed to create signing key: %w", err)
			}
			if !req.RetireExisting {
				return nil
			}

			active, err := tx.SigningKeys().ListActiveSigningKeys(ctx)
			if err != nil {
				return fmt.Errorf("failed to list active keys: %w", err)
			}
			for _, key := range active {
				if key.Kid == newKey.Kid {
					continue
				}
				if err := tx.SigningKeys().RetireSigningKey(ctx, key.Kid, now, s.grace()); err != nil {
					return fmt.Errorf("failed to retire key %s: %w", key.Kid, err)
				}
				key.RetiredAt = &now
				key.ExpiresAt = now.Add(s.grace())
				key.PrivateKeyEncrypted = nil
				retired = append(retired, key)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else if req.RetireExisting {
		for _, current := range s.KeyManager.GetSigners() {
			retired = append(retired, domain.SigningKey{
				Kid:       current.KID(),
				Algorithm: current.Alg(),
				RetiredAt: &now,
			})
		}
	}

	// Add before retiring so the manager never runs out of signers.
	if err := s.KeyManager.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to add signer to key manager: %w", err)
	}
	log := slogx.FromContext(ctx)
	for _, key := range retired {
		if err := s.KeyManager.RetireSignerByKid(key.Kid); err != nil {
			log.Warn("retired key was not loaded", "kid", key.Kid, "error", err)
		}
	}

	log.Info("signing key rotated",
		slog.String("kid", newKey.Kid),
		slog.Int("retired", len(retired)),
	)

	newKey.PrivateKeyEncrypted = nil
	return &RotateKeyResponse{
		NewKey:      newKey,
		RetiredKeys: retired,
		ActiveKeys:  s.KeyManager.NumSigners(),
	}, nil
}

// ListSigningKeys returns the stored keys, or the loaded signers when keys are
// not persisted. Private key material is never returned.
func (s *KeyRotationService) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	if s.Store != nil {
		keys, err := s.Store.SigningKeys().ListAllSigningKeys(ctx, s.now())
		if err != nil {
			return nil, err
		}
		for i := range keys {
			keys[i].PrivateKeyEncrypted = nil
		}
		return keys, nil
	}

	if s.KeyManager == nil {
		return nil, errors.New("KeyManager is required")
	}
	signers := s.KeyManager.GetSigners()
	keys := make([]domain.SigningKey, len(signers))
	for i, signer := range signers {
		keys[i] = domain.SigningKey{Kid: signer.KID(), Algorithm: signer.Alg()}
	}
	return keys, nil
}

// RetireKey stops kid from signing. It keeps verifying for the grace period,
// or until restart when keys are not persisted.
func (s *KeyRotationService) RetireKey(ctx context.Context, kid string) error {
	if s.KeyManager == nil {
		return errors.New("KeyManager is required")
	}
	if s.KeyManager.NumSigners() <= 1 {
		return jwtx.ErrLastSigner
	}

	if s.Store != nil {
		key, err := s.Store.SigningKeys().GetSigningKeyByKid(ctx, kid)
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		if key.RetiredAt != nil {
			return fmt.Errorf("%w: %s", ErrKeyRetired, kid)
		}
		if err := s.Store.SigningKeys().RetireSigningKey(ctx, kid, s.now(), s.grace()); err != nil {
			return fmt.Errorf("failed to retire key: %w", err)
		}
	}

	if err := s.KeyManager.RetireSignerByKid(kid); err != nil {
		if s.Store == nil {
			return fmt.Errorf("failed to retire key: %w", err)
		}
		slogx.FromContext(ctx).Warn("retired key was not loaded", "kid", kid, "error", err)
	}
	return nil
}
