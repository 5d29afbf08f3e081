package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
	"github.com/aussiebroadwan/sessionkit/pkg/coreclient"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
)

// recipeImpl is the RecipeInterface that talks to the core.
type recipeImpl struct {
	cfg      Config
	client   *coreclient.Client
	keys     *jwtx.KeyCache
	verifier *jwtx.Verifier

	// self is the fully wrapped interface, handed to the sessions this
	// implementation creates so their methods go through overrides.
	self RecipeInterface
}

func (r *recipeImpl) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, r.cfg.Logger)
}

func (r *recipeImpl) CreateNewSession(ctx context.Context, tenantID, userID string, accessPayload, sessionData map[string]any, disableAntiCsrf bool) (*Session, error) {
	if userID == "" {
		return nil, &BadInputError{Message: "userID is required"}
	}
	if err := checkReservedKeys(accessPayload); err != nil {
		return nil, err
	}
	if accessPayload == nil {
		accessPayload = map[string]any{}
	}
	if sessionData == nil {
		sessionData = map[string]any{}
	}

	resp, err := r.client.Post(ctx, coreclient.TenantPath(tenantID, pathSession), createSessionRequest{
		UserID:             userID,
		UserDataInJWT:      accessPayload,
		UserDataInDatabase: sessionData,
		EnableAntiCsrf:     !disableAntiCsrf && r.cfg.AntiCsrf == AntiCsrfViaToken,
	})
	if err != nil {
		return nil, err
	}

	var out tokenPairResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != statusOK {
		return nil, unexpectedStatus("create session", out.wireStatus)
	}
	return r.sessionFromPair(out)
}

func (r *recipeImpl) GetSession(ctx context.Context, accessToken, antiCsrfToken string, opts VerifyOptions) (*Session, error) {
	if accessToken == "" {
		return nil, &UnauthorizedError{Message: "access token missing"}
	}

	payload, err := r.verifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if opts.AntiCsrfCheck {
		switch r.cfg.AntiCsrf {
		case AntiCsrfViaToken:
			if want := payload.AntiCsrfToken(); want != "" {
				if antiCsrfToken == "" {
					return nil, tryRefresh("anti-csrf token missing")
				}
				if subtle.ConstantTimeCompare([]byte(want), []byte(antiCsrfToken)) != 1 {
					return nil, tryRefresh("anti-csrf token mismatch")
				}
			}
		case AntiCsrfViaCustomHeader:
			if !opts.HasCustomHeader {
				return nil, tryRefresh("anti-csrf custom header missing")
			}
		}
	}

	if opts.CheckDatabase || r.cfg.AccessTokenBlacklisting {
		if err := r.checkDatabase(ctx, accessToken); err != nil {
			return nil, err
		}
	}

	exp, _ := payload.ExpiresAt()
	iat, _ := payload.IssuedAt()
	return &Session{
		ri:          r.self,
		payload:     payload,
		accessToken: accessToken,
		expiry:      exp,
		timeCreated: iat,
	}, nil
}

func (r *recipeImpl) checkDatabase(ctx context.Context, accessToken string) error {
	resp, err := r.client.Post(ctx, pathSessionVerify, verifySessionRequest{AccessToken: accessToken})
	if err != nil {
		return err
	}
	var out verifySessionResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}
	switch out.Status {
	case statusOK:
		return nil
	case statusUnauthorised:
		return unauthorised(out.Message)
	case statusTryRefreshToken:
		return tryRefresh(out.Message)
	default:
		return unexpectedStatus("verify session", out.wireStatus)
	}
}

func (r *recipeImpl) RefreshSession(ctx context.Context, refreshToken, antiCsrfToken string, disableAntiCsrf bool) (*Session, error) {
	if refreshToken == "" {
		return nil, &UnauthorizedError{Message: "refresh token missing"}
	}

	resp, err := r.client.Post(ctx, pathSessionRefresh, refreshSessionRequest{
		RefreshToken:   refreshToken,
		AntiCsrfToken:  antiCsrfToken,
		EnableAntiCsrf: !disableAntiCsrf && r.cfg.AntiCsrf == AntiCsrfViaToken,
	})
	if err != nil {
		return nil, err
	}

	status, err := peekStatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("session: decode refresh reply: %w", err)
	}

	switch status.Status {
	case statusOK:
		var out tokenPairResponse
		if err := resp.Decode(&out); err != nil {
			return nil, err
		}
		return r.sessionFromPair(out)

	case statusUnauthorised:
		return nil, unauthorised(status.Message)

	case statusTokenTheftDetected:
		var out theftResponse
		if err := resp.Decode(&out); err != nil {
			return nil, err
		}
		r.log(ctx).Warn("refresh token theft detected",
			"session_handle", out.Session.Handle,
			"user_id", out.Session.UserID,
		)
		return nil, &TokenTheftDetectedError{SessionHandle: out.Session.Handle, UserID: out.Session.UserID}

	default:
		return nil, unexpectedStatus("refresh session", status)
	}
}

func (r *recipeImpl) RevokeSession(ctx context.Context, handle string) (bool, error) {
	revoked, err := r.self.RevokeMultipleSessions(ctx, []string{handle})
	if err != nil {
		return false, err
	}
	return slices.Contains(revoked, handle), nil
}

func (r *recipeImpl) RevokeAllSessionsForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	if userID == "" {
		return nil, &BadInputError{Message: "userID is required"}
	}
	if tenantID == "" {
		tenantID = coreclient.DefaultTenant
	}
	return r.removeSessions(ctx, removeSessionsRequest{UserID: userID, TenantID: tenantID})
}

func (r *recipeImpl) RevokeMultipleSessions(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	return r.removeSessions(ctx, removeSessionsRequest{SessionHandles: handles})
}

func (r *recipeImpl) removeSessions(ctx context.Context, req removeSessionsRequest) ([]string, error) {
	resp, err := r.client.Post(ctx, pathSessionRemove, req)
	if err != nil {
		return nil, err
	}
	var out removeSessionsResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != statusOK {
		return nil, unexpectedStatus("remove sessions", out.wireStatus)
	}
	return out.SessionHandlesRevoked, nil
}

func (r *recipeImpl) GetSessionInformation(ctx context.Context, handle string) (*SessionInformation, error) {
	resp, err := r.client.Get(ctx, pathSession, url.Values{"sessionHandle": {handle}})
	if err != nil {
		return nil, err
	}
	var out sessionInfoResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	switch out.Status {
	case statusOK:
	case statusUnauthorised:
		return nil, ErrSessionNotFound
	default:
		return nil, unexpectedStatus("get session", out.wireStatus)
	}

	return &SessionInformation{
		SessionHandle:                    out.SessionHandle,
		UserID:                           out.UserID,
		RecipeUserID:                     out.RecipeUserID,
		TenantID:                         out.TenantID,
		SessionDataInDatabase:            nonNil(out.UserDataInDatabase),
		CustomClaimsInAccessTokenPayload: nonNil(out.UserDataInJWT),
		Expiry:                           fromMillis(out.Expiry),
		TimeCreated:                      fromMillis(out.TimeCreated),
	}, nil
}

func (r *recipeImpl) GetAllSessionHandlesForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	if userID == "" {
		return nil, &BadInputError{Message: "userID is required"}
	}
	resp, err := r.client.Get(ctx, coreclient.TenantPath(tenantID, pathSessionUser), url.Values{"userId": {userID}})
	if err != nil {
		return nil, err
	}
	var out sessionHandlesResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != statusOK {
		return nil, unexpectedStatus("list sessions", out.wireStatus)
	}
	return out.SessionHandles, nil
}

func (r *recipeImpl) UpdateSessionDataInDatabase(ctx context.Context, handle string, data map[string]any) error {
	return r.putData(ctx, pathSessionData, updateDataRequest{SessionHandle: handle, UserDataInDatabase: nonNil(data)})
}

func (r *recipeImpl) MergeIntoAccessTokenPayload(ctx context.Context, handle string, update map[string]any) (map[string]any, error) {
	if err := checkReservedKeys(update); err != nil {
		return nil, err
	}

	info, err := r.self.GetSessionInformation(ctx, handle)
	if err != nil {
		return nil, err
	}

	merged := mergePayload(info.CustomClaimsInAccessTokenPayload, update)
	if err := r.putData(ctx, pathJWTData, updateDataRequest{SessionHandle: handle, UserDataInJWT: merged}); err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *recipeImpl) putData(ctx context.Context, path string, req updateDataRequest) error {
	resp, err := r.client.Put(ctx, path, req)
	if err != nil {
		return err
	}
	var out wireStatus
	if err := resp.Decode(&out); err != nil {
		return err
	}
	switch out.Status {
	case statusOK:
		return nil
	case statusUnauthorised:
		return ErrSessionNotFound
	default:
		return unexpectedStatus("update session data", out)
	}
}

func (r *recipeImpl) RegenerateAccessToken(ctx context.Context, accessToken string, newPayload map[string]any) (*RegenerateResult, error) {
	if err := checkReservedKeys(newPayload); err != nil {
		return nil, err
	}

	resp, err := r.client.Post(ctx, pathSessionRegenerate, regenerateRequest{
		AccessToken:   accessToken,
		UserDataInJWT: newPayload,
	})
	if err != nil {
		return nil, err
	}
	var out regenerateResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	switch out.Status {
	case statusOK:
	case statusUnauthorised:
		return nil, unauthorised(out.Message)
	default:
		return nil, unexpectedStatus("regenerate access token", out.wireStatus)
	}

	res := &RegenerateResult{
		SessionHandle:      out.Session.Handle,
		UserID:             out.Session.UserID,
		TenantID:           out.Session.TenantID,
		AccessTokenPayload: nonNil(out.Session.UserDataInJWT),
	}
	if out.AccessToken != nil {
		res.AccessToken = &TokenInfo{
			Token:       out.AccessToken.Token,
			Expiry:      fromMillis(out.AccessToken.Expiry),
			CreatedTime: fromMillis(out.AccessToken.CreatedTime),
		}
	}
	return res, nil
}

func (r *recipeImpl) ValidateClaims(ctx context.Context, userID, tenantID string, payload map[string]any, validators []claims.Validator) (*ClaimsValidation, error) {
	now := r.cfg.Now()
	current := maps.Clone(payload)
	if current == nil {
		current = map[string]any{}
	}

	var update map[string]any
	refetched := map[string]bool{}
	for _, v := range validators {
		c := v.Claim()
		if c == nil || refetched[c.Key()] || !v.ShouldRefetch(current, now) {
			continue
		}
		refetched[c.Key()] = true

		fragment, err := c.Build(ctx, userID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("session: fetch claim %s: %w", c.Key(), err)
		}
		if update == nil {
			update = map[string]any{}
		}
		if len(fragment) == 0 {
			// no value any more, drop the stale one
			if _, had := current[c.Key()]; had {
				delete(current, c.Key())
				update[c.Key()] = nil
			}
			continue
		}
		maps.Copy(current, fragment)
		maps.Copy(update, fragment)
	}
	if len(update) == 0 {
		update = nil
	}

	return &ClaimsValidation{
		Failures:      claims.Assert(current, validators, now),
		PayloadUpdate: update,
	}, nil
}

func (r *recipeImpl) GetGlobalClaimValidators(_ context.Context, _, _ string, defaults []claims.Validator) ([]claims.Validator, error) {
	return defaults, nil
}

// verifyAccessToken checks a v2 or v3 access token locally and returns its
// payload in the v3 layout.
func (r *recipeImpl) verifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error) {
	version, err := jwtx.PeekVersion(token)
	if err != nil {
		return nil, unauthorised("malformed access token")
	}

	var payload jwtx.Claims
	switch version {
	case jwtx.VersionV2:
		keys, err := r.keys.RSAKeys(ctx)
		if err != nil {
			return nil, err
		}
		p, err := jwtx.VerifyLegacy(token, keys, r.cfg.Now())
		if errors.Is(err, jwtx.ErrInvalidSig) || errors.Is(err, jwtx.ErrUnknownKID) {
			p, err = r.verifyLegacyRefreshed(ctx, token, err)
		}
		if err != nil {
			return nil, classifyVerifyError(err)
		}
		payload = p.Claims()
	default:
		payload, _, err = r.verifier.Verify(ctx, token)
		if err != nil {
			return nil, classifyVerifyError(err)
		}
	}

	if missing := payload.Missing(); len(missing) > 0 {
		return nil, unauthorised(fmt.Sprintf("access token is missing %v", missing))
	}
	return payload, nil
}

// verifyLegacyRefreshed retries a legacy token against freshly fetched keys,
// returning cause when no refetch is allowed yet.
func (r *recipeImpl) verifyLegacyRefreshed(ctx context.Context, token string, cause error) (jwtx.LegacyPayload, error) {
	keys, ok, err := r.keys.RSAKeysRefreshed(ctx)
	if err != nil {
		return jwtx.LegacyPayload{}, err
	}
	if !ok {
		return jwtx.LegacyPayload{}, cause
	}
	return jwtx.VerifyLegacy(token, keys, r.cfg.Now())
}

// classifyVerifyError splits token failures into the soft expired case and
// hard failures. Key fetch errors pass through unchanged.
func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return tryRefresh("access token expired")
	case errors.Is(err, jwtx.ErrMalformed),
		errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrUnknownKID),
		errors.Is(err, jwtx.ErrAlgMismatch),
		errors.Is(err, jwtx.ErrInvalidClaim),
		errors.Is(err, jwtx.ErrIssuer):
		return unauthorised(err.Error())
	default:
		return err
	}
}

func (r *recipeImpl) sessionFromPair(out tokenPairResponse) (*Session, error) {
	payload, _, err := jwtx.DecodeUnverified(out.AccessToken.Token)
	if err != nil {
		return nil, fmt.Errorf("session: core returned an unreadable access token: %w", err)
	}
	return &Session{
		ri:                 r.self,
		payload:            payload,
		accessToken:        out.AccessToken.Token,
		refreshToken:       out.RefreshToken.Token,
		antiCsrfToken:      out.AntiCsrfToken,
		expiry:             fromMillis(out.AccessToken.Expiry),
		timeCreated:        fromMillis(out.AccessToken.CreatedTime),
		accessTokenUpdated: true,
	}, nil
}

func unexpectedStatus(op string, s wireStatus) error {
	return fmt.Errorf("session: %s: unexpected core status %q: %s", op, s.Status, s.Message)
}

// checkReservedKeys rejects payloads that try to set session owned keys.
func checkReservedKeys(payload map[string]any) error {
	for k := range payload {
		if jwtx.IsProtectedClaim(k) {
			return &BadInputError{Message: fmt.Sprintf("%q is reserved and cannot be set in the access token payload", k)}
		}
	}
	return nil
}

// mergePayload applies update to a copy of base. Nil values delete keys.
func mergePayload(base, update map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range update {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
