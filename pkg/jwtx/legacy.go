package jwtx

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// LegacyPayload is the body of a v2 access token. Timestamps are unix milliseconds.
type LegacyPayload struct {
	SessionHandle          string         `json:"sessionHandle"`
	UserID                 string         `json:"userId"`
	RefreshTokenHash       string         `json:"refreshTokenHash1"`
	ParentRefreshTokenHash string         `json:"parentRefreshTokenHash1,omitempty"`
	UserData               map[string]any `json:"userData"`
	AntiCsrfToken          string         `json:"antiCsrfToken,omitempty"`
	ExpiryTime             int64          `json:"expiryTime"`
	TimeCreated            int64          `json:"timeCreated"`
}

// LegacyPayloadFromClaims converts v3 claims into the v2 layout. Application
// keys move under userData.
func LegacyPayloadFromClaims(c Claims) LegacyPayload {
	p := LegacyPayload{
		SessionHandle:          c.SessionHandle(),
		UserID:                 c.Subject(),
		RefreshTokenHash:       c.RefreshTokenHash(),
		ParentRefreshTokenHash: c.ParentRefreshTokenHash(),
		UserData:               c.UserPayload(),
		AntiCsrfToken:          c.AntiCsrfToken(),
	}
	if exp, ok := c.ExpiresAt(); ok {
		p.ExpiryTime = exp.UnixMilli()
	}
	if iat, ok := c.IssuedAt(); ok {
		p.TimeCreated = iat.UnixMilli()
	}
	return p
}

// Claims returns the payload in the v3 claim layout so callers can treat both
// versions alike.
func (p LegacyPayload) Claims() Claims {
	c := make(Claims, len(p.UserData)+8)
	for k, v := range p.UserData {
		if !IsProtectedClaim(k) {
			c[k] = v
		}
	}
	c[ClaimSubject] = p.UserID
	c[ClaimRecipeUserID] = p.UserID
	c[ClaimSessionHandle] = p.SessionHandle
	c[ClaimRefreshTokenHash] = p.RefreshTokenHash
	c[ClaimExpiry] = float64(p.ExpiryTime) / 1000
	c[ClaimIssuedAt] = float64(p.TimeCreated) / 1000
	if p.ParentRefreshTokenHash != "" {
		c[ClaimParentRefreshTokenHash] = p.ParentRefreshTokenHash
	}
	if p.AntiCsrfToken != "" {
		c[ClaimAntiCsrfToken] = p.AntiCsrfToken
	}
	return c
}

// SignLegacy mints a v2 token: an RS256 compact JWS with no kid and a
// version header of "2".
func SignLegacy(key *rsa.PrivateKey, p LegacyPayload) (string, error) {
	if key == nil {
		return "", errors.New("jwtx: nil RSA key")
	}
	if p.UserData == nil {
		p.UserData = map[string]any{}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("jwtx: encode legacy payload: %w", err)
	}

	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader(jose.HeaderKey(HeaderVersion), VersionV2)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, opts)
	if err != nil {
		return "", fmt.Errorf("jwtx: create legacy signer: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign legacy payload: %w", err)
	}
	return jws.CompactSerialize()
}

// VerifyLegacy checks a v2 token against each candidate key in turn. v2
// tokens carry no kid, so every published RSA key is a candidate.
func VerifyLegacy(token string, keys []*rsa.PublicKey, now time.Time) (LegacyPayload, error) {
	jws, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return LegacyPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(jws.Signatures) != 1 {
		return LegacyPayload{}, fmt.Errorf("%w: unexpected signatures: %d", ErrMalformed, len(jws.Signatures))
	}
	if len(keys) == 0 {
		return LegacyPayload{}, fmt.Errorf("%w: no RSA keys available", ErrUnknownKID)
	}

	var raw []byte
	for _, pub := range keys {
		if raw, err = jws.Verify(pub); err == nil {
			break
		}
	}
	if err != nil {
		return LegacyPayload{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	var p LegacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return LegacyPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.SessionHandle == "" || p.UserID == "" || p.RefreshTokenHash == "" || p.ExpiryTime == 0 {
		return LegacyPayload{}, ErrInvalidClaim
	}
	if now.UnixMilli() > p.ExpiryTime {
		return p, ErrExpired
	}
	return p, nil
}
