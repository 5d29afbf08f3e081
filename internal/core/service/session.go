package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/idx"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
	"github.com/google/uuid"
)

// DefaultTenant is the tenant sessions belong to when none is given.
const DefaultTenant = "public"

var (
	ErrUnauthorised    = errors.New("unauthorised")
	ErrTryRefreshToken = errors.New("try_refresh_token")
	ErrBadInput        = errors.New("bad_input")
)

// errAlreadyRotated means another refresh used the token first.
var errAlreadyRotated = errors.New("refresh token already rotated")

// TokenTheftError reports a refresh token that was presented after it had
// already been rotated. The session it belonged to has been revoked.
type TokenTheftError struct {
	SessionHandle string
	UserID        string
}

func (e *TokenTheftError) Error() string {
	return "token_theft_detected: session " + e.SessionHandle
}

type SessionService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// LegacyAccessTokens mints v2 access tokens for new sessions. Refreshes
	// always mint v3 tokens.
	LegacyAccessTokens bool

	// Now defaults to time.Now.
	Now func() time.Time
}

type CreateSessionParams struct {
	TenantID           string
	UserID             string
	UserDataInJWT      map[string]any
	UserDataInDatabase map[string]any
	EnableAntiCsrf     bool
}

// Regenerated is the outcome of RegenerateAccessToken. AccessToken is nil
// when the presented token was a legacy one, which is never re-signed.
type Regenerated struct {
	Session       domain.Session
	AccessToken   *domain.Token
	UserDataInJWT map[string]any
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// CreateSession starts a session and mints its first token pair.
func (s *SessionService) CreateSession(ctx context.Context, p CreateSessionParams) (*domain.TokenPair, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadInput)
	}
	if err := checkProtected(p.UserDataInJWT); err != nil {
		return nil, err
	}
	tenantID := p.TenantID
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	now := s.now()
	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	refreshFP := cryptox.FingerprintToken(refreshOpaque)

	var antiCsrf string
	if p.EnableAntiCsrf {
		antiCsrf = uuid.NewString()
	}

	sess := domain.Session{
		Handle:             idx.NewAt(now).String(),
		UserID:             p.UserID,
		RecipeUserID:       p.UserID,
		TenantID:           tenantID,
		UserDataInJWT:      nonNil(p.UserDataInJWT),
		UserDataInDatabase: nonNil(p.UserDataInDatabase),
		RefreshTokenHash:   refreshFP,
		ExpiresAt:          now.Add(s.refreshTTL()),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	rt := domain.RefreshToken{
		ID:            idx.New().String(),
		SessionHandle: sess.Handle,
		TokenHash:     refreshFP,
		AntiCsrfToken: antiCsrf,
		ExpiresAt:     sess.ExpiresAt,
		CreatedAt:     now,
	}

	// Sign before storing so a signing failure leaves nothing behind.
	access, err := s.mint(sess, mintParams{
		refreshHash: refreshFP,
		antiCsrf:    antiCsrf,
		legacy:      s.LegacyAccessTokens,
		ttl:         s.accessTTL(),
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, rt)
	}); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Debug("session created",
		"session_handle", sess.Handle,
		"tenant_id", tenantID,
		"legacy", s.LegacyAccessTokens,
	)

	return &domain.TokenPair{
		Session:       sess,
		AccessToken:   access,
		RefreshToken:  domain.Token{Value: refreshOpaque, ExpiresAt: sess.ExpiresAt, CreatedAt: now},
		AntiCsrfToken: antiCsrf,
	}, nil
}

// RefreshSession rotates a refresh token. Every refresh token works once;
// presenting a used one revokes its session and returns *TokenTheftError.
func (s *SessionService) RefreshSession(ctx context.Context, refreshOpaque, antiCsrf string, enableAntiCsrf bool) (*domain.TokenPair, error) {
	now := s.now()

	// 1. Lookup the persisted refresh row by token fingerprint
	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: refresh token not recognised", ErrUnauthorised)
	}
	if err != nil {
		return nil, err
	}

	// 2. Anti-CSRF before anything that could revoke the session
	if enableAntiCsrf && rt.AntiCsrfToken != "" &&
		subtle.ConstantTimeCompare([]byte(rt.AntiCsrfToken), []byte(antiCsrf)) != 1 {
		return nil, fmt.Errorf("%w: anti-csrf check failed", ErrUnauthorised)
	}

	sess, err := s.Store.Sessions().GetSession(ctx, rt.SessionHandle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: session does not exist", ErrUnauthorised)
	}
	if err != nil {
		return nil, err
	}

	// 3. A used token that still names a live session was copied
	if rt.Used {
		return nil, s.theft(ctx, sess)
	}
	if now.After(rt.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrUnauthorised)
	}

	// 4. Rotate
	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	newFP := cryptox.FingerprintToken(newOpaque)

	var newAntiCsrf string
	if enableAntiCsrf {
		newAntiCsrf = uuid.NewString()
	}

	sess.RefreshTokenHash = newFP
	sess.ExpiresAt = now.Add(s.refreshTTL())
	sess.UpdatedAt = now

	access, err := s.mint(sess, mintParams{
		refreshHash: newFP,
		parentHash:  fp,
		antiCsrf:    newAntiCsrf,
		ttl:         s.accessTTL(),
	}, now)
	if err != nil {
		return nil, err
	}

	newRT := domain.RefreshToken{
		ID:            idx.New().String(),
		SessionHandle: sess.Handle,
		TokenHash:     newFP,
		ParentHash:    fp,
		AntiCsrfToken: newAntiCsrf,
		ExpiresAt:     sess.ExpiresAt,
		CreatedAt:     now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().MarkRefreshTokenUsed(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errAlreadyRotated
			}
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, newRT); err != nil {
			return err
		}
		return tx.Sessions().RotateRefreshToken(ctx, sess.Handle, newFP, sess.ExpiresAt)
	})
	if errors.Is(err, errAlreadyRotated) {
		return nil, s.theft(ctx, sess)
	}
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		Session:       sess,
		AccessToken:   access,
		RefreshToken:  domain.Token{Value: newOpaque, ExpiresAt: sess.ExpiresAt, CreatedAt: now},
		AntiCsrfToken: newAntiCsrf,
	}, nil
}

// theft revokes sess and reports it.
func (s *SessionService) theft(ctx context.Context, sess domain.Session) error {
	log := slogx.FromContext(ctx)
	if _, err := s.Store.Sessions().DeleteSessions(ctx, []string{sess.Handle}); err != nil {
		log.Error("failed to revoke session after token theft", "session_handle", sess.Handle, "error", err)
		return err
	}
	log.Warn("refresh token reuse detected, session revoked",
		"session_handle", sess.Handle,
		"user_id", sess.UserID,
	)
	return &TokenTheftError{SessionHandle: sess.Handle, UserID: sess.UserID}
}

// VerifySession checks an access token and that its session still exists.
func (s *SessionService) VerifySession(ctx context.Context, accessToken string) (domain.Session, error) {
	claims, _, err := s.verifyAccessToken(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	return s.GetSession(ctx, claims.SessionHandle())
}

// RegenerateAccessToken re-signs a valid access token with a new payload,
// keeping its expiry. A nil payload keeps the token's own payload; a non-nil
// one also replaces the payload stored for the session.
func (s *SessionService) RegenerateAccessToken(ctx context.Context, accessToken string, payload map[string]any) (*Regenerated, error) {
	if err := checkProtected(payload); err != nil {
		return nil, err
	}

	claims, version, err := s.verifyAccessToken(ctx, accessToken)
	if errors.Is(err, ErrTryRefreshToken) {
		return nil, fmt.Errorf("%w: access token expired", ErrUnauthorised)
	}
	if err != nil {
		return nil, err
	}

	sess, err := s.GetSession(ctx, claims.SessionHandle())
	if err != nil {
		return nil, err
	}

	userData := claims.UserPayload()
	if payload != nil {
		if err := s.Store.Sessions().UpdateSessionDataInJWT(ctx, sess.Handle, payload); err != nil {
			return nil, mapMissing(err)
		}
		sess.UserDataInJWT = payload
		userData = payload
	}

	out := &Regenerated{Session: sess, UserDataInJWT: userData}
	if version == jwtx.VersionV2 {
		return out, nil
	}

	now := s.now()
	exp, _ := claims.ExpiresAt()
	withData := sess
	withData.UserDataInJWT = userData
	access, err := s.mint(withData, mintParams{
		refreshHash: claims.RefreshTokenHash(),
		parentHash:  claims.ParentRefreshTokenHash(),
		antiCsrf:    claims.AntiCsrfToken(),
		ttl:         exp.Sub(now),
	}, now)
	if err != nil {
		return nil, err
	}
	out.AccessToken = &access
	return out, nil
}

// GetSession returns a live session or ErrUnauthorised.
func (s *SessionService) GetSession(ctx context.Context, handle string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSession(ctx, handle)
	if err != nil {
		return domain.Session{}, mapMissing(err)
	}
	if sess.IsExpired(s.now()) {
		return domain.Session{}, fmt.Errorf("%w: session expired", ErrUnauthorised)
	}
	return sess, nil
}

func (s *SessionService) ListSessionHandles(ctx context.Context, tenantID, userID string) ([]string, error) {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	return s.Store.Sessions().ListSessionHandles(ctx, tenantID, userID, s.now())
}

func (s *SessionService) UpdateSessionData(ctx context.Context, handle string, data map[string]any) error {
	return mapMissing(s.Store.Sessions().UpdateSessionDataInDatabase(ctx, handle, nonNil(data)))
}

// UpdateJWTData replaces the stored access token payload. Tokens already
// issued keep theirs until they are regenerated or refreshed.
func (s *SessionService) UpdateJWTData(ctx context.Context, handle string, data map[string]any) error {
	if err := checkProtected(data); err != nil {
		return err
	}
	return mapMissing(s.Store.Sessions().UpdateSessionDataInJWT(ctx, handle, nonNil(data)))
}

func (s *SessionService) RevokeSessions(ctx context.Context, handles []string) ([]string, error) {
	var revoked []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		revoked, err = tx.Sessions().DeleteSessions(ctx, handles)
		return err
	})
	return revoked, err
}

func (s *SessionService) RevokeAllForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadInput)
	}
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	var revoked []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		revoked, err = tx.Sessions().DeleteSessionsForUser(ctx, tenantID, userID)
		return err
	})
	return revoked, err
}

// verifyAccessToken checks a v2 or v3 token against the core's own keys.
func (s *SessionService) verifyAccessToken(ctx context.Context, token string) (jwtx.Claims, string, error) {
	version, err := jwtx.PeekVersion(token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnauthorised, err)
	}

	var claims jwtx.Claims
	if version == jwtx.VersionV2 {
		var p jwtx.LegacyPayload
		p, err = jwtx.VerifyLegacy(token, s.KeyManager.KeySet.RSAKeys(), s.now())
		claims = p.Claims()
	} else {
		claims, _, err = s.KeyManager.Verifier.Verify(ctx, token)
	}
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return nil, version, fmt.Errorf("%w: %v", ErrTryRefreshToken, err)
	case err != nil:
		return nil, version, fmt.Errorf("%w: %v", ErrUnauthorised, err)
	}

	if missing := claims.Missing(); len(missing) > 0 {
		return nil, version, fmt.Errorf("%w: access token is missing %v", ErrUnauthorised, missing)
	}
	return claims, version, nil
}

type mintParams struct {
	refreshHash string
	parentHash  string
	antiCsrf    string
	legacy      bool
	ttl         time.Duration
}

func (s *SessionService) mint(sess domain.Session, p mintParams, now time.Time) (domain.Token, error) {
	claims := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		UserID:                 sess.UserID,
		RecipeUserID:           sess.RecipeUserID,
		TenantID:               sess.TenantID,
		SessionHandle:          sess.Handle,
		RefreshTokenHash:       p.refreshHash,
		ParentRefreshTokenHash: p.parentHash,
		AntiCsrfToken:          p.antiCsrf,
		Issuer:                 s.Issuer,
		TTL:                    p.ttl,
		UserPayload:            sess.UserDataInJWT,
	}, now)

	var (
		token string
		err   error
	)
	if p.legacy {
		var signer jwtx.LegacySigner
		if signer, err = s.KeyManager.GetLegacySigner(); err != nil {
			return domain.Token{}, err
		}
		token, err = signer.SignLegacy(jwtx.LegacyPayloadFromClaims(claims))
	} else {
		signer := s.KeyManager.GetSigner()
		if signer == nil {
			return domain.Token{}, errors.New("no active signing key")
		}
		token, err = signer.Sign(claims)
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign access token: %w", err)
	}

	exp, _ := claims.ExpiresAt()
	iat, _ := claims.IssuedAt()
	return domain.Token{Value: token, ExpiresAt: exp, CreatedAt: iat}, nil
}

func checkProtected(payload map[string]any) error {
	for k := range payload {
		if jwtx.IsProtectedClaim(k) {
			return fmt.Errorf("%w: %q is reserved", ErrBadInput, k)
		}
	}
	return nil
}

func mapMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: session does not exist", ErrUnauthorised)
	}
	return err
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
