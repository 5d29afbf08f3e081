package jwtx

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// KeyResolver finds the public key for a kid. KeySet and KeyCache both
// implement it.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (any, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have. Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp.
	Leeway time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Header is the decoded JOSE header of a verified token.
type Header struct {
	Alg     string
	Kid     string
	Version string
}

// Verifier validates v3 access tokens signed with RS256, ES256 or EdDSA. The
// key type registered for the kid must match the token's alg.
type Verifier struct {
	keys KeyResolver
	opts VerifyOptions
}

// NewVerifier creates a Verifier resolving keys through keys.
func NewVerifier(keys KeyResolver, opts VerifyOptions) *Verifier {
	return &Verifier{keys: keys, opts: opts}
}

func (v *Verifier) now() time.Time {
	if v.opts.Now != nil {
		return v.opts.Now()
	}
	return time.Now()
}

// Verify checks the signature and expiry of tokenStr and returns its claims.
// Errors wrap one of the package sentinels. Expiry is only reported for tokens
// whose signature is valid.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (Claims, Header, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.now),
	)

	var header Header
	mc := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenStr, mc, func(t *jwt.Token) (any, error) {
		header.Alg = t.Method.Alg()
		header.Kid, _ = t.Header["kid"].(string)
		header.Version = headerVersion(t.Header)
		if header.Kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
		}

		pub, err := v.keys.Key(ctx, header.Kid)
		if err != nil {
			if errors.Is(err, ErrNoKey) {
				return nil, fmt.Errorf("%w %q", ErrUnknownKID, header.Kid)
			}
			return nil, err
		}
		if !keyMatchesAlg(pub, header.Alg) {
			return nil, fmt.Errorf("%w: kid %q cannot verify %s", ErrAlgMismatch, header.Kid, header.Alg)
		}
		return pub, nil
	})
	if err != nil {
		return nil, header, classifyParseError(err)
	}

	claims := Claims(mc)
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, header, err
	}
	return claims, header, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID), errors.Is(err, ErrAlgMismatch):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// key lookup failed for a reason other than an unknown kid
		return fmt.Errorf("jwtx: resolve key: %w", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	default:
		return fmt.Errorf("jwtx: parse or verify: %w", err)
	}
}

func keyMatchesAlg(pub any, alg string) bool {
	switch pub.(type) {
	case *rsa.PublicKey:
		return alg == AlgorithmRS256
	case *ecdsa.PublicKey:
		return alg == AlgorithmES256
	case ed25519.PublicKey:
		return alg == AlgorithmEdDSA
	default:
		return false
	}
}

func headerVersion(h map[string]any) string {
	switch v := h[HeaderVersion].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

// PeekVersion reads the version header of a compact JWS without verifying it.
// Tokens without a version header are treated as v2.
func PeekVersion(token string) (string, error) {
	if strings.Count(token, ".") != 2 {
		return "", ErrMalformed
	}
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v := headerVersion(t.Header); v != "" {
		return v, nil
	}
	return VersionV2, nil
}

// DecodeUnverified returns the payload of a v2 or v3 token in the v3 claim
// layout without checking its signature. Only use it on tokens that came
// straight from the core.
func DecodeUnverified(token string) (Claims, string, error) {
	if strings.Count(token, ".") != 2 {
		return nil, "", ErrMalformed
	}
	mc := jwt.MapClaims{}
	t, _, err := jwt.NewParser().ParseUnverified(token, mc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	version := headerVersion(t.Header)
	if version == "" {
		version = VersionV2
	}
	if version != VersionV2 {
		return Claims(mc), version, nil
	}

	raw, err := json.Marshal(mc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var p LegacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p.Claims(), version, nil
}
