package session

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
)

// RecipeInterface is the set of session operations an Override can wrap.
// Every method takes plain values and returns plain values or typed errors.
type RecipeInterface interface {
	CreateNewSession(ctx context.Context, tenantID, userID string, accessPayload, sessionData map[string]any, disableAntiCsrf bool) (*Session, error)

	// GetSession verifies an access token. It does not run claim validators.
	GetSession(ctx context.Context, accessToken, antiCsrfToken string, opts VerifyOptions) (*Session, error)

	RefreshSession(ctx context.Context, refreshToken, antiCsrfToken string, disableAntiCsrf bool) (*Session, error)

	RevokeSession(ctx context.Context, handle string) (bool, error)
	RevokeAllSessionsForUser(ctx context.Context, tenantID, userID string) ([]string, error)
	RevokeMultipleSessions(ctx context.Context, handles []string) ([]string, error)

	// GetSessionInformation returns ErrSessionNotFound for unknown handles.
	GetSessionInformation(ctx context.Context, handle string) (*SessionInformation, error)
	GetAllSessionHandlesForUser(ctx context.Context, tenantID, userID string) ([]string, error)

	UpdateSessionDataInDatabase(ctx context.Context, handle string, data map[string]any) error

	// MergeIntoAccessTokenPayload updates the payload the core stores for
	// handle. Tokens already issued keep their payload until regenerated or
	// refreshed.
	MergeIntoAccessTokenPayload(ctx context.Context, handle string, update map[string]any) (map[string]any, error)

	// RegenerateAccessToken re-signs accessToken with newPayload. A nil
	// payload keeps the current one.
	RegenerateAccessToken(ctx context.Context, accessToken string, newPayload map[string]any) (*RegenerateResult, error)

	// ValidateClaims refetches the claims validators ask for and validates
	// payload. It does not write anything back to the core.
	ValidateClaims(ctx context.Context, userID, tenantID string, payload map[string]any, validators []claims.Validator) (*ClaimsValidation, error)

	// GetGlobalClaimValidators picks the validators GetSession applies when
	// the caller does not override them. defaults are the registered ones.
	GetGlobalClaimValidators(ctx context.Context, tenantID, userID string, defaults []claims.Validator) ([]claims.Validator, error)
}

// Override wraps a RecipeInterface. Embed the original to change only some
// methods:
//
//	func audit(next session.RecipeInterface) session.RecipeInterface {
//		return &auditing{RecipeInterface: next}
//	}
type Override func(RecipeInterface) RecipeInterface

// VerifyOptions tune GetSession.
type VerifyOptions struct {
	// AntiCsrfCheck enforces the configured anti-CSRF mode.
	AntiCsrfCheck bool

	// HasCustomHeader reports whether the request carried the anti-CSRF
	// header, for AntiCsrfViaCustomHeader.
	HasCustomHeader bool

	// CheckDatabase asks the core whether the session still exists.
	CheckDatabase bool

	// OverrideGlobalClaimValidators replaces the global validators for this
	// call. It receives them and the verified session.
	OverrideGlobalClaimValidators func(globals []claims.Validator, s *Session) []claims.Validator
}

// SessionInformation is what the core stores for a session.
type SessionInformation struct {
	SessionHandle                    string
	UserID                           string
	RecipeUserID                     string
	TenantID                         string
	SessionDataInDatabase            map[string]any
	CustomClaimsInAccessTokenPayload map[string]any
	Expiry                           time.Time
	TimeCreated                      time.Time
}

// TokenInfo is a token with its validity window.
type TokenInfo struct {
	Token       string
	Expiry      time.Time
	CreatedTime time.Time
}

// RegenerateResult is the outcome of RegenerateAccessToken.
type RegenerateResult struct {
	SessionHandle      string
	UserID             string
	TenantID           string
	AccessTokenPayload map[string]any

	// AccessToken is nil when the core kept the presented token.
	AccessToken *TokenInfo
}

// ClaimsValidation is the outcome of ValidateClaims.
type ClaimsValidation struct {
	Failures []claims.ValidationFailure

	// PayloadUpdate holds refetched claim values to merge into the access
	// token payload, nil when nothing was refetched.
	PayloadUpdate map[string]any
}

func wrap(base RecipeInterface, overrides []Override) RecipeInterface {
	ri := base
	for _, o := range overrides {
		if o != nil {
			ri = o(ri)
		}
	}
	return ri
}
