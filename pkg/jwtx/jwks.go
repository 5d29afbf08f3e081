package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// JWK is one public signing key of the core (RFC 7517). Only the members the
// core publishes are kept.
type JWK struct {
	Kty string `json:"kty"`           // "RSA", "OKP", "EC"
	Use string `json:"use,omitempty"` // "sig"
	Alg string `json:"alg,omitempty"` // "RS256", "ES256", "EdDSA"
	Kid string `json:"kid,omitempty"`

	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Find returns the key published under kid.
func (s JWKS) Find(kid string) (JWK, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// Kids lists the key ids in document order.
func (s JWKS) Kids() []string {
	out := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		out[i] = k.Kid
	}
	return out
}

// NewJWK encodes the public half of a signing key. RSA, P-256 and Ed25519
// keys are supported.
func NewJWK(kid, alg string, pub crypto.PublicKey) (JWK, error) {
	if err := checkKeyType(pub); err != nil {
		return JWK{}, err
	}
	raw, err := jose.JSONWebKey{Key: pub, KeyID: kid, Algorithm: alg, Use: "sig"}.MarshalJSON()
	if err != nil {
		return JWK{}, fmt.Errorf("jwtx: encode jwk %s: %w", kid, err)
	}
	var j JWK
	if err := json.Unmarshal(raw, &j); err != nil {
		return JWK{}, fmt.Errorf("jwtx: encode jwk %s: %w", kid, err)
	}
	return j, nil
}

// PublicKey decodes the key material into *rsa.PublicKey, *ecdsa.PublicKey
// or ed25519.PublicKey.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA", "EC", "OKP":
	default:
		return nil, fmt.Errorf("jwtx: unsupported kty %q", j.Kty)
	}

	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("jwtx: decode jwk %s: %w", j.Kid, err)
	}
	if !jk.IsPublic() {
		return nil, fmt.Errorf("jwtx: jwk %s is not a public key", j.Kid)
	}
	if err := checkKeyType(jk.Key); err != nil {
		return nil, err
	}
	return jk.Key, nil
}

func checkKeyType(pub crypto.PublicKey) error {
	switch k := pub.(type) {
	case *rsa.PublicKey, ed25519.PublicKey:
		return nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return fmt.Errorf("jwtx: unsupported EC curve %s", k.Curve.Params().Name)
		}
		return nil
	default:
		return fmt.Errorf("jwtx: unsupported public key type %T", pub)
	}
}

// PEM converts the JWK to a PKIX "PUBLIC KEY" block, handy for debugging
// tokens with external tools.
func (j JWK) PEM() (string, error) {
	publicKey, err := j.PublicKey()
	if err != nil {
		return "", err
	}

	derBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	})), nil
}
