package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
	"github.com/aussiebroadwan/sessionkit/pkg/coreclient"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
)

// Recipe is the session engine. Build one per process with New and share it.
type Recipe struct {
	cfg  Config
	impl RecipeInterface
	keys *jwtx.KeyCache

	mu     sync.RWMutex
	claims []claims.Claim
}

// New builds a Recipe on top of client. Overrides in cfg are applied in order.
func New(client *coreclient.Client, cfg Config) (*Recipe, error) {
	if client == nil {
		return nil, errors.New("session: core client is required")
	}
	cfg = cfg.normalized()
	if !validAntiCsrfMode(cfg.AntiCsrf) {
		return nil, fmt.Errorf("session: unknown anti-csrf mode %q", cfg.AntiCsrf)
	}

	keys := jwtx.NewKeyCache(jwtx.KeyCacheConfig{
		Source: jwtx.KeySourceFunc(func(ctx context.Context) (jwtx.JWKS, error) {
			resp, err := client.Get(ctx, pathJWKS, nil)
			if err != nil {
				return jwtx.JWKS{}, err
			}
			var jwks jwtx.JWKS
			if err := resp.Decode(&jwks); err != nil {
				return jwtx.JWKS{}, err
			}
			return jwks, nil
		}),
		Store:  cfg.KeyStore,
		TTL:    cfg.KeyCacheTTL,
		Logger: cfg.Logger,
		Now:    cfg.Now,
	})

	base := &recipeImpl{
		cfg:      cfg,
		client:   client,
		keys:     keys,
		verifier: jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: cfg.Issuer, Now: cfg.Now}),
	}
	base.self = wrap(base, cfg.Overrides)

	return &Recipe{cfg: cfg, impl: base.self, keys: keys}, nil
}

// Interface returns the wrapped RecipeInterface.
func (r *Recipe) Interface() RecipeInterface { return r.impl }

// KeyCache returns the cache holding the core's verification keys.
func (r *Recipe) KeyCache() *jwtx.KeyCache { return r.keys }

// RegisterClaim adds claim to the set built into every new session. Its
// default validator, if any, joins the global validators. A claim with the
// same key replaces the earlier one.
func (r *Recipe) RegisterClaim(claim claims.Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.claims {
		if c.Key() == claim.Key() {
			r.claims[i] = claim
			return
		}
	}
	r.claims = append(r.claims, claim)
}

// GlobalClaimValidators returns the default validators of registered claims.
func (r *Recipe) GlobalClaimValidators() []claims.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []claims.Validator
	for _, c := range r.claims {
		if v := c.DefaultValidator(); v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (r *Recipe) registeredClaims() []claims.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]claims.Claim, len(r.claims))
	copy(out, r.claims)
	return out
}

// CreateNewSession creates a session for userID in tenantID. Registered claims
// are fetched and added to accessPayload first.
func (r *Recipe) CreateNewSession(ctx context.Context, tenantID, userID string, accessPayload, sessionData map[string]any, disableAntiCsrf bool) (*Session, error) {
	if userID == "" {
		return nil, &BadInputError{Message: "userID is required"}
	}
	if err := checkReservedKeys(accessPayload); err != nil {
		return nil, err
	}
	if tenantID == "" {
		tenantID = coreclient.DefaultTenant
	}

	payload := maps.Clone(accessPayload)
	if payload == nil {
		payload = map[string]any{}
	}
	for _, c := range r.registeredClaims() {
		fragment, err := c.Build(ctx, userID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("session: build claim %s: %w", c.Key(), err)
		}
		maps.Copy(payload, fragment)
	}

	return r.impl.CreateNewSession(ctx, tenantID, userID, payload, sessionData, disableAntiCsrf)
}

// GetSession verifies accessToken and then asserts the global claim
// validators, or the ones opts.OverrideGlobalClaimValidators picks.
//
// Failures come back as *UnauthorizedError, *TryRefreshTokenError or
// *InvalidClaimsError. Core errors pass through unchanged.
func (r *Recipe) GetSession(ctx context.Context, accessToken, antiCsrfToken string, opts VerifyOptions) (*Session, error) {
	s, err := r.impl.GetSession(ctx, accessToken, antiCsrfToken, opts)
	if err != nil {
		return nil, err
	}

	validators, err := r.impl.GetGlobalClaimValidators(ctx, s.TenantID(), s.UserID(), r.GlobalClaimValidators())
	if err != nil {
		return nil, err
	}
	if opts.OverrideGlobalClaimValidators != nil {
		validators = opts.OverrideGlobalClaimValidators(validators, s)
	}
	if len(validators) > 0 {
		if err := s.AssertClaims(ctx, validators); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RefreshSession exchanges refreshToken for a new token pair. The new access
// token is always the current version, whatever the session started with.
func (r *Recipe) RefreshSession(ctx context.Context, refreshToken, antiCsrfToken string, disableAntiCsrf bool) (*Session, error) {
	return r.impl.RefreshSession(ctx, refreshToken, antiCsrfToken, disableAntiCsrf)
}

// RevokeSession reports whether a session with handle existed.
func (r *Recipe) RevokeSession(ctx context.Context, handle string) (bool, error) {
	return r.impl.RevokeSession(ctx, handle)
}

func (r *Recipe) RevokeAllSessionsForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	return r.impl.RevokeAllSessionsForUser(ctx, tenantID, userID)
}

func (r *Recipe) RevokeMultipleSessions(ctx context.Context, handles []string) ([]string, error) {
	return r.impl.RevokeMultipleSessions(ctx, handles)
}

func (r *Recipe) GetSessionInformation(ctx context.Context, handle string) (*SessionInformation, error) {
	return r.impl.GetSessionInformation(ctx, handle)
}

func (r *Recipe) GetAllSessionHandlesForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	return r.impl.GetAllSessionHandlesForUser(ctx, tenantID, userID)
}

func (r *Recipe) UpdateSessionDataInDatabase(ctx context.Context, handle string, data map[string]any) error {
	return r.impl.UpdateSessionDataInDatabase(ctx, handle, data)
}

// MergeIntoAccessTokenPayload updates the stored payload of handle. Nil
// values delete keys. Live access tokens pick the change up on their next
// refresh.
func (r *Recipe) MergeIntoAccessTokenPayload(ctx context.Context, handle string, update map[string]any) (map[string]any, error) {
	return r.impl.MergeIntoAccessTokenPayload(ctx, handle, update)
}

func (r *Recipe) RegenerateAccessToken(ctx context.Context, accessToken string, newPayload map[string]any) (*RegenerateResult, error) {
	return r.impl.RegenerateAccessToken(ctx, accessToken, newPayload)
}

// ValidateClaimsForSessionHandle validates the stored payload of handle
// against validators, or the global validators when validators is nil.
// Refetched values are written back to the core. It returns the failures,
// which are empty when every validator passed.
func (r *Recipe) ValidateClaimsForSessionHandle(ctx context.Context, handle string, validators []claims.Validator) ([]claims.ValidationFailure, error) {
	info, err := r.impl.GetSessionInformation(ctx, handle)
	if err != nil {
		return nil, err
	}

	if validators == nil {
		validators, err = r.impl.GetGlobalClaimValidators(ctx, info.TenantID, info.UserID, r.GlobalClaimValidators())
		if err != nil {
			return nil, err
		}
	}

	res, err := r.impl.ValidateClaims(ctx, info.UserID, info.TenantID, info.CustomClaimsInAccessTokenPayload, validators)
	if err != nil {
		return nil, err
	}
	if res.PayloadUpdate != nil {
		if _, err := r.impl.MergeIntoAccessTokenPayload(ctx, handle, res.PayloadUpdate); err != nil {
			return nil, err
		}
	}
	return res.Failures, nil
}
