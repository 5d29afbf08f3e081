package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// APIKeyPrefix marks generated core API keys so they are easy to spot in
// configs and logs.
const APIKeyPrefix = "sk_"

// ErrSecretMismatch is returned by VerifySecret when the secret is wrong.
var ErrSecretMismatch = errors.New("secret does not match")

// HashSecret returns a PHC-format Argon2id hash of secret, salted and peppered.
// The encoded string carries the parameters and salt, for example
// "$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>", so VerifySecret needs
// nothing else but the same pepper.
func HashSecret(secret string) (string, error) {
	pepper, err := Pepper()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret+pepper), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifySecret compares secret against a hash made by HashSecret.
func VerifySecret(secret, encodedHash string) error {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return errors.New("invalid hash format: expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return errors.New("invalid hash format: not argon2id")
	}
	if parts[2] != "v=19" {
		return errors.New("invalid hash format: wrong version")
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("invalid hash format: failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("invalid hash format: failed to decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("invalid hash format: failed to decode hash: %w", err)
	}

	pepper, err := Pepper()
	if err != nil {
		return err
	}
	computed := argon2.IDKey(
		[]byte(secret+pepper),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrSecretMismatch
}

// GenerateAPIKey returns a new API key and its HashSecret hash. The key is
// APIKeyPrefix followed by a TokenSize256 token and is shown to the operator
// once; the core only ever stores the hash (CORE_API_KEY_HASHES).
//
// The hash depends on the pepper, so call SetPepperPath with the core's
// pepper file first.
func GenerateAPIKey() (key, hash string, err error) {
	token, err := GenerateToken(TokenSize256)
	if err != nil {
		return "", "", err
	}
	key = APIKeyPrefix + token
	hash, err = HashSecret(key)
	if err != nil {
		return "", "", err
	}
	return key, hash, nil
}
