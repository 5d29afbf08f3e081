package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Token format versions carried in the "version" header.
const (
	HeaderVersion = "version"
	VersionV2     = "2"
	VersionV3     = "3"
)

// Signer is our interface for anything that can sign access tokens.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// LegacySigner can additionally mint v2 tokens. Only RSA signers implement it.
type LegacySigner interface {
	Signer
	SignLegacy(LegacyPayload) (string, error)
}

// NewSignerRS256 creates an RS256 signer from PEM bytes. Both PKCS1 and
// PKCS8 encodings are accepted.
func NewSignerRS256(kid string, pemKey []byte) (LegacySigner, error) {
	priv, err := parsePrivateKeyPEM(pemKey, true)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not RSA private key")
	}
	jwk, err := NewJWK(kid, AlgorithmRS256, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &rsaSigner{keySigner{
		kid:    kid,
		method: jwt.SigningMethodRS256,
		key:    key,
		jwk:    jwk,
	}}, nil
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePrivateKeyPEM(pemKey, false)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not Ed25519 private key")
	}
	jwk, err := NewJWK(kid, AlgorithmEdDSA, key.Public())
	if err != nil {
		return nil, err
	}
	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodEdDSA,
		key:    key,
		jwk:    jwk,
	}, nil
}

// NewSignerES256 creates an ES256 signer from PEM bytes.
// ECDSA P-256 keys must be in PKCS8 format.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePrivateKeyPEM(pemKey, false)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires a P-256 key")
	}
	jwk, err := NewJWK(kid, AlgorithmES256, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodES256,
		key:    key,
		jwk:    jwk,
	}, nil
}

func parsePrivateKeyPEM(pemKey []byte, allowPKCS1 bool) (crypto.Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM private key")
	}

	switch {
	case block.Type == "RSA PRIVATE KEY" && allowPKCS1:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
		}
		return key, nil

	case block.Type == "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		s, ok := priv.(crypto.Signer)
		if !ok {
			return nil, errors.New("jwtx: unsupported private key type")
		}
		return s, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}

// keySigner signs v3 tokens with a single private key.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign turns claims into a compact JWT carrying kid and version headers.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, jwt.MapClaims(claims))
	t.Header["kid"] = s.kid
	t.Header[HeaderVersion] = VersionV3
	return t.SignedString(s.key)
}

// Validate does a quick sanity check to make sure we actually have keys.
func (s *keySigner) Validate() error {
	if s.key == nil || s.key.Public() == nil {
		return fmt.Errorf("jwtx: nil %s key", s.method.Alg())
	}
	return nil
}

type rsaSigner struct {
	keySigner
}

func (s *rsaSigner) SignLegacy(p LegacyPayload) (string, error) {
	return SignLegacy(s.key.(*rsa.PrivateKey), p)
}
