package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// MasterKeyEnv holds the master key when no key file is configured.
const MasterKeyEnv = "CORE_MASTER_KEY"

var (
	masterKeyOnce sync.Once
	masterKey     []byte
	masterKeyErr  error
	masterKeyPath string
)

// SetMasterKeyPath makes the master key load from path. Call it before the
// first EncryptPrivateKey or DecryptPrivateKey.
func SetMasterKeyPath(path string) {
	masterKeyPath = path
}

// loadMasterKey derives the AES-256 key from the key file, then the
// CORE_MASTER_KEY environment variable. With neither set it falls back to a
// random key, so persisted signing keys do not survive a restart.
func loadMasterKey() ([]byte, error) {
	var material []byte
	switch {
	case masterKeyPath != "":
		data, err := os.ReadFile(masterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		material = data
	case os.Getenv(MasterKeyEnv) != "":
		material = []byte(os.Getenv(MasterKeyEnv))
	default:
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
	}

	sum := sha256.Sum256(material)
	return sum[:], nil
}

func masterAEAD() (cipher.AEAD, error) {
	masterKeyOnce.Do(func() {
		masterKey, masterKeyErr = loadMasterKey()
	})
	if masterKeyErr != nil {
		return nil, fmt.Errorf("failed to get master key: %w", masterKeyErr)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptPrivateKey seals a PEM private key with AES-256-GCM under the master
// key. The output is the nonce followed by the ciphertext and tag.
func EncryptPrivateKey(pemData []byte) ([]byte, error) {
	gcm, err := masterAEAD()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, pemData, nil), nil
}

// DecryptPrivateKey opens data sealed by EncryptPrivateKey.
func DecryptPrivateKey(encryptedData []byte) ([]byte, error) {
	gcm, err := masterAEAD()
	if err != nil {
		return nil, err
	}

	n := gcm.NonceSize()
	if len(encryptedData) < n {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, encryptedData[:n], encryptedData[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// ResetMasterKeyForTesting forgets the loaded master key. Tests only.
func ResetMasterKeyForTesting() {
	masterKeyOnce = sync.Once{}
	masterKey = nil
	masterKeyErr = nil
}
