package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"time"
)

// Default token TTL constants. The core applies them at mint time.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 100 * 24 * time.Hour
)

// Access token payload keys owned by the session layer.
const (
	ClaimSubject                = "sub"
	ClaimIssuedAt               = "iat"
	ClaimExpiry                 = "exp"
	ClaimIssuer                 = "iss"
	ClaimSessionHandle          = "sessionHandle"
	ClaimRefreshTokenHash       = "refreshTokenHash1"
	ClaimParentRefreshTokenHash = "parentRefreshTokenHash1"
	ClaimAntiCsrfToken          = "antiCsrfToken"
	ClaimTenantID               = "tId"
	ClaimRecipeUserID           = "rsub"
)

// ProtectedClaims may never be set from a user supplied payload.
var ProtectedClaims = []string{
	ClaimSubject,
	ClaimIssuedAt,
	ClaimExpiry,
	ClaimSessionHandle,
	ClaimRefreshTokenHash,
	ClaimParentRefreshTokenHash,
	ClaimAntiCsrfToken,
	ClaimTenantID,
	ClaimRecipeUserID,
	ClaimIssuer,
}

// requiredClaims must be present in every v3 access token.
var requiredClaims = []string{
	ClaimSubject,
	ClaimIssuedAt,
	ClaimExpiry,
	ClaimSessionHandle,
	ClaimRefreshTokenHash,
}

// IsProtectedClaim reports whether key is reserved for the session layer.
func IsProtectedClaim(key string) bool {
	return slices.Contains(ProtectedClaims, key)
}

// Claims is the body of a v3 access token: the protected session keys next to
// whatever the application merged in.
type Claims map[string]any

// AccessClaimsParams are the inputs of NewAccessClaims.
type AccessClaimsParams struct {
	UserID                 string
	RecipeUserID           string
	TenantID               string
	SessionHandle          string
	RefreshTokenHash       string
	ParentRefreshTokenHash string
	AntiCsrfToken          string
	Issuer                 string
	TTL                    time.Duration
	UserPayload            map[string]any
}

// NewAccessClaims builds the payload of a fresh access token. Protected keys in
// the user payload are dropped.
func NewAccessClaims(p AccessClaimsParams, now time.Time) Claims {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	c := make(Claims, len(p.UserPayload)+len(ProtectedClaims))
	for k, v := range p.UserPayload {
		if !IsProtectedClaim(k) {
			c[k] = v
		}
	}

	recipeUserID := p.RecipeUserID
	if recipeUserID == "" {
		recipeUserID = p.UserID
	}

	c[ClaimSubject] = p.UserID
	c[ClaimRecipeUserID] = recipeUserID
	c[ClaimTenantID] = p.TenantID
	c[ClaimSessionHandle] = p.SessionHandle
	c[ClaimRefreshTokenHash] = p.RefreshTokenHash
	c[ClaimIssuedAt] = now.Unix()
	c[ClaimExpiry] = now.Add(ttl).Unix()
	if p.ParentRefreshTokenHash != "" {
		c[ClaimParentRefreshTokenHash] = p.ParentRefreshTokenHash
	}
	if p.AntiCsrfToken != "" {
		c[ClaimAntiCsrfToken] = p.AntiCsrfToken
	}
	if p.Issuer != "" {
		c[ClaimIssuer] = p.Issuer
	}
	return c
}

// NewJTI returns a URL-safe random identifier.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c Claims) Subject() string                { return c.str(ClaimSubject) }
func (c Claims) RecipeUserID() string           { return c.str(ClaimRecipeUserID) }
func (c Claims) TenantID() string               { return c.str(ClaimTenantID) }
func (c Claims) SessionHandle() string          { return c.str(ClaimSessionHandle) }
func (c Claims) RefreshTokenHash() string       { return c.str(ClaimRefreshTokenHash) }
func (c Claims) ParentRefreshTokenHash() string { return c.str(ClaimParentRefreshTokenHash) }
func (c Claims) AntiCsrfToken() string          { return c.str(ClaimAntiCsrfToken) }
func (c Claims) Issuer() string                 { return c.str(ClaimIssuer) }

// ExpiresAt returns the exp claim.
func (c Claims) ExpiresAt() (time.Time, bool) { return numericDate(c[ClaimExpiry]) }

// IssuedAt returns the iat claim.
func (c Claims) IssuedAt() (time.Time, bool) { return numericDate(c[ClaimIssuedAt]) }

// Missing lists required keys that are absent or empty.
func (c Claims) Missing() []string {
	var missing []string
	for _, k := range requiredClaims {
		switch v := c[k].(type) {
		case nil:
			missing = append(missing, k)
		case string:
			if v == "" {
				missing = append(missing, k)
			}
		}
	}
	return missing
}

// UserPayload returns a copy of the application owned part of the payload.
func (c Claims) UserPayload() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		if !IsProtectedClaim(k) {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy.
func (c Claims) Clone() Claims {
	return maps.Clone(c)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer() != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiryWithLeeway checks exp against now with a grace period for clock skew.
func (c Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	exp, ok := c.ExpiresAt()
	if !ok {
		return ErrInvalidClaim
	}
	if now.After(exp.Add(leeway)) {
		return ErrExpired
	}
	return nil
}

func numericDate(v any) (time.Time, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		f = parsed
	default:
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
