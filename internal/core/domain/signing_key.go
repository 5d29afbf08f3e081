package domain

import "time"

// SigningKey is a token signing key stored in the core database. The private
// key is encrypted at rest. Retired keys stop signing but keep verifying
// until ExpiresAt.
type SigningKey struct {
	ID                  string     `json:"id,omitempty"`        // ULID
	Kid                 string     `json:"kid"`                 // Key identifier published in the JWKS
	Algorithm           string     `json:"algorithm"`           // RS256, ES256 or EdDSA
	PrivateKeyEncrypted []byte     `json:"-"`                   // AES-256-GCM encrypted private key PEM
	CreatedAt           time.Time  `json:"createdAt,omitzero"`
	RetiredAt           *time.Time `json:"retiredAt,omitempty"` // nil while the key signs
	ExpiresAt           time.Time  `json:"expiresAt,omitzero"`  // retired keys are deleted after this
}

// IsActive reports whether the key still signs.
func (k *SigningKey) IsActive() bool {
	return k.RetiredAt == nil
}

// IsExpired reports whether a retired key has outlived its grace period.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return k.RetiredAt != nil && now.After(k.ExpiresAt)
}
