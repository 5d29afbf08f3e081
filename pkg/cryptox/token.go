package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token sizes, counted in random bytes before encoding.
const (
	// TokenSize128 carries 128 bits of entropy and encodes to 22 characters.
	// Used for key ids, where uniqueness matters more than secrecy.
	TokenSize128 = 16
	// TokenSize256 carries 256 bits of entropy and encodes to 43 characters.
	// Used for refresh tokens and API keys.
	TokenSize256 = 32
)

// GenerateToken reads size bytes from crypto/rand and returns them base64url
// encoded without padding, so the result is safe in URLs, headers and
// cookies. It fails only when size is not positive or the system random
// source is broken.
//
// Pick the size by what the token guards:
//   - TokenSize128: identifiers that are public anyway, such as key ids
//   - TokenSize256: bearer secrets such as refresh tokens and API keys
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the SHA-256 digest of token as 43 base64url
// characters. It is deterministic, so the core stores only fingerprints of
// refresh tokens and still finds the row when the token is presented.
//
// Tokens are already high entropy, so no salt or slow hash is needed here;
// API keys, which users may choose, go through HashSecret instead.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
