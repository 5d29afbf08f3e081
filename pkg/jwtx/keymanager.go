package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// ErrNoLegacySigner is returned when a v2 token is requested from a key
// manager that holds no RSA keys.
var (
	ErrNoLegacySigner = errors.New("jwtx: legacy tokens require an RS256 signing key")
	ErrLastSigner     = errors.New("jwtx: cannot retire the last signing key")
)

// KeyManager owns the core's signing keys. Signing picks one active key at
// random; verification accepts every key still in the KeySet, including
// retired ones inside their grace period.
type KeyManager struct {
	Verifier  *Verifier
	KeySet    *KeySet
	algorithm string

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager for a specific use case.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "RS256", "ES256", "EdDSA"
	Algorithm string

	// Issuer is written to and checked against the iss claim. Optional.
	Issuer string

	// RSABits specifies the RSA key size for RS256. Defaults to 2048, must be
	// at least 2048.
	RSABits int

	// NumKeys specifies how many signing keys to generate.
	// Defaults to 1. Capped at 10.
	NumKeys int
}

func (o KeyManagerOptions) numKeys() int {
	switch {
	case o.NumKeys <= 0:
		return 1
	case o.NumKeys > 10:
		return 10
	default:
		return o.NumKeys
	}
}

// NewEphemeralKeyManager creates a KeyManager whose keys only exist in
// memory. Every token becomes unverifiable when the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if !supportedAlgorithm(opts.Algorithm) {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", opts.Algorithm)
	}

	n := opts.numKeys()
	keyset := NewKeySet()
	signers := make([]Signer, 0, n)

	for i := range n {
		keyID, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		_, signer, err := generateNewKeyAndSigner(opts.Algorithm, keyID, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, VerifyOptions{Issuer: opts.Issuer}),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

func supportedAlgorithm(alg string) bool {
	switch alg {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
		return true
	default:
		return false
	}
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady() && km.NumSigners() > 0
}

// GetSigner returns a randomly selected active signer.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// GetLegacySigner returns a random active signer able to mint v2 tokens.
func (km *KeyManager) GetLegacySigner() (LegacySigner, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	var candidates []LegacySigner
	for _, s := range km.signers {
		if ls, ok := s.(LegacySigner); ok {
			candidates = append(candidates, ls)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoLegacySigner
	}
	return candidates[rand.IntN(len(candidates))], nil
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a new signing key to both the active list and the KeySet.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// RetireSignerByKid removes a signing key from active signing operations.
// The key stays in the KeySet so tokens it signed keep verifying.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return ErrLastSigner
	}

	kept := make([]Signer, 0, len(km.signers)-1)
	for _, s := range km.signers {
		if s.KID() != kid {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(km.signers) {
		return fmt.Errorf("%w: no active signer with kid %q", ErrNoKey, kid)
	}

	km.signers = kept
	return nil
}

// ForgetKid drops a retired key from verification entirely.
func (km *KeyManager) ForgetKid(kid string) {
	km.mu.Lock()
	defer km.mu.Unlock()
	for _, s := range km.signers {
		if s.KID() == kid {
			return
		}
	}
	km.KeySet.Remove(kid)
}

// GetSigners returns a copy of all active signing keys.
func (km *KeyManager) GetSigners() []Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	signers := make([]Signer, len(km.signers))
	copy(signers, km.signers)
	return signers
}

// GenerateSigner creates a fresh key for alg and returns its PEM encoding
// alongside the signer.
func GenerateSigner(alg string, rsaBits int) ([]byte, Signer, error) {
	kid, err := generateRandomKeyID()
	if err != nil {
		return nil, nil, err
	}
	return generateNewKeyAndSigner(alg, kid, rsaBits)
}

// generateNewKeyAndSigner generates a new key pair and returns both the PEM data and signer.
func generateNewKeyAndSigner(algorithm, kid string, rsaBits int) ([]byte, Signer, error) {
	var pemData []byte
	var err error

	switch algorithm {
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = 2048
		}
		pemData, err = cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		pemData, err = cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		pemData, err = cryptox.GenerateEd25519Key()
	default:
		return nil, nil, fmt.Errorf("jwtx: unsupported algorithm %q", algorithm)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("jwtx: generate %s key: %w", algorithm, err)
	}

	signer, err := SignerFromPEM(algorithm, kid, pemData)
	if err != nil {
		return nil, nil, err
	}
	return pemData, signer, nil
}

// SignerFromPEM creates a signer for algorithm from PEM-encoded private key data.
func SignerFromPEM(algorithm, kid string, pemData []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmRS256:
		return NewSignerRS256(kid, pemData)
	case AlgorithmES256:
		return NewSignerES256(kid, pemData)
	case AlgorithmEdDSA:
		return NewSignerEdDSA(kid, pemData)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", algorithm)
	}
}

// generateRandomKeyID creates a random key identifier: "s-{128-bit token}".
func generateRandomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to generate random key ID: %w", err)
	}
	return "s-" + token, nil
}
