package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/idx"
)

// SigningKeyRecord is a signing key as the key store persists it. The
// private key is encrypted with cryptox.EncryptPrivateKey.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore is the persistence the persistent key manager needs.
type KeyStore interface {
	// ListAllSigningKeys returns every unexpired key, retired or not.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns keys that may still sign.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new signing key.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a KeyManager with persistent key storage.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	// Store provides access to the signing keys table.
	Store KeyStore

	// GracePeriod is how long a key keeps verifying after it is retired.
	// Defaults to 30 days.
	GracePeriod time.Duration
}

// NewPersistentKeyManager loads keys from opts.Store and tops the active set
// up to NumKeys, storing any keys it has to generate.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, errors.New("jwtx: Store is required for persistent key manager")
	}
	if !supportedAlgorithm(opts.Algorithm) {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", opts.Algorithm)
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * 24 * time.Hour
	}

	allKeys, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}
	activeKeys, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load active keys: %w", err)
	}

	keyset := NewKeySet()
	for _, rec := range allKeys {
		signer, err := signerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", rec.Kid, err)
		}
	}

	active := make([]Signer, 0, len(activeKeys))
	for _, rec := range activeKeys {
		signer, err := signerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		active = append(active, signer)
	}

	for len(active) < opts.numKeys() {
		signer, err := CreatePersistentSigner(ctx, opts.Store, opts.Algorithm, opts.RSABits, opts.GracePeriod)
		if err != nil {
			return nil, err
		}
		active = append(active, signer)
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add new key to keyset: %w", err)
		}
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, VerifyOptions{Issuer: opts.Issuer}),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   active,
	}, nil
}

// CreatePersistentSigner generates a key, stores it encrypted and returns its signer.
func CreatePersistentSigner(ctx context.Context, store KeyStore, alg string, rsaBits int, grace time.Duration) (Signer, error) {
	pemData, signer, err := GenerateSigner(alg, rsaBits)
	if err != nil {
		return nil, err
	}

	encrypted, err := cryptox.EncryptPrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
	}

	now := time.Now().UTC()
	rec := SigningKeyRecord{
		ID:                  idx.New().String(),
		Kid:                 signer.KID(),
		Algorithm:           alg,
		PrivateKeyEncrypted: encrypted,
		CreatedAt:           now,
		ExpiresAt:           now.Add(grace), // pushed out again on retirement
	}
	if err := store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
	}
	return signer, nil
}

func signerFromRecord(rec SigningKeyRecord) (Signer, error) {
	pemData, err := cryptox.DecryptPrivateKey(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.Kid, err)
	}
	signer, err := SignerFromPEM(rec.Algorithm, rec.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", rec.Kid, err)
	}
	return signer, nil
}
