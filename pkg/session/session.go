package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
	"github.com/aussiebroadwan/sessionkit/pkg/coreclient"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
)

// Session is a verified or freshly issued session. Its methods go through the
// recipe's overrides. It is safe for concurrent use.
type Session struct {
	ri RecipeInterface

	mu                 sync.RWMutex
	payload            jwtx.Claims
	accessToken        string
	refreshToken       string
	antiCsrfToken      string
	expiry             time.Time
	timeCreated        time.Time
	accessTokenUpdated bool
}

// SessionTokens are the raw tokens of a session, for callers that move them
// without an HTTP response, and the front token a browser client reads.
type SessionTokens struct {
	AccessToken                string
	RefreshToken               string
	AntiCsrfToken              string
	FrontToken                 string
	AccessAndFrontTokenUpdated bool
}

func (s *Session) Handle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload.SessionHandle()
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload.Subject()
}

// TenantID is the tenant the session was created in. Legacy tokens carry no
// tenant and report the default one.
func (s *Session) TenantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.payload.TenantID(); t != "" {
		return t
	}
	return coreclient.DefaultTenant
}

// AccessTokenPayload returns a copy of the full access token payload,
// session keys included.
func (s *Session) AccessTokenPayload() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(map[string]any(s.payload))
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken is empty for sessions obtained from GetSession.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) AntiCsrfToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.antiCsrfToken
}

// Expiry is when the access token expires.
func (s *Session) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

func (s *Session) TimeCreated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeCreated
}

// RevokeSession revokes this session in the core. The access token keeps
// verifying locally until it expires unless blacklisting is on.
func (s *Session) RevokeSession(ctx context.Context) error {
	_, err := s.ri.RevokeSession(ctx, s.Handle())
	return err
}

// GetSessionDataFromDatabase returns the data the core stores for this session.
func (s *Session) GetSessionDataFromDatabase(ctx context.Context) (map[string]any, error) {
	info, err := s.ri.GetSessionInformation(ctx, s.Handle())
	if errors.Is(err, ErrSessionNotFound) {
		return nil, unauthorised("session does not exist anymore")
	}
	if err != nil {
		return nil, err
	}
	return info.SessionDataInDatabase, nil
}

func (s *Session) UpdateSessionDataInDatabase(ctx context.Context, data map[string]any) error {
	err := s.ri.UpdateSessionDataInDatabase(ctx, s.Handle(), data)
	if errors.Is(err, ErrSessionNotFound) {
		return unauthorised("session does not exist anymore")
	}
	return err
}

// MergeIntoAccessTokenPayload merges update into the payload and regenerates
// the access token this session holds. Nil values delete keys.
func (s *Session) MergeIntoAccessTokenPayload(ctx context.Context, update map[string]any) error {
	if err := checkReservedKeys(update); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newPayload := mergePayload(s.payload.UserPayload(), update)
	res, err := s.ri.RegenerateAccessToken(ctx, s.accessToken, newPayload)
	if err != nil {
		return err
	}

	if res.AccessToken == nil {
		next := s.payload.Clone()
		for k := range s.payload.UserPayload() {
			delete(next, k)
		}
		maps.Copy(next, res.AccessTokenPayload)
		s.payload = next
		return nil
	}

	payload, _, err := jwtx.DecodeUnverified(res.AccessToken.Token)
	if err != nil {
		return fmt.Errorf("session: core returned an unreadable access token: %w", err)
	}
	s.payload = payload
	s.accessToken = res.AccessToken.Token
	s.expiry = res.AccessToken.Expiry
	s.accessTokenUpdated = true
	return nil
}

// AssertClaims refetches what the validators ask for, stores refetched values
// in the access token, then fails with *InvalidClaimsError listing every
// validator that did not pass.
func (s *Session) AssertClaims(ctx context.Context, validators []claims.Validator) error {
	res, err := s.ri.ValidateClaims(ctx, s.UserID(), s.TenantID(), s.AccessTokenPayload(), validators)
	if err != nil {
		return err
	}
	if res.PayloadUpdate != nil {
		if err := s.MergeIntoAccessTokenPayload(ctx, res.PayloadUpdate); err != nil {
			return err
		}
	}
	if len(res.Failures) > 0 {
		return &InvalidClaimsError{Payload: res.Failures}
	}
	return nil
}

// FetchAndSetClaim rebuilds claim for this session's user and stores it.
func (s *Session) FetchAndSetClaim(ctx context.Context, claim claims.Claim) error {
	fragment, err := claim.Build(ctx, s.UserID(), s.TenantID())
	if err != nil {
		return err
	}
	if len(fragment) == 0 {
		return nil
	}
	return s.MergeIntoAccessTokenPayload(ctx, fragment)
}

// SetClaimValue stores value for claim without fetching it.
func (s *Session) SetClaimValue(ctx context.Context, claim claims.ValueAccessor, value any) error {
	fragment, err := claim.AddValueToPayload(nil, value)
	if err != nil {
		return &BadInputError{Message: err.Error()}
	}
	return s.MergeIntoAccessTokenPayload(ctx, fragment)
}

// GetClaimValue reads claim from the access token payload.
func (s *Session) GetClaimValue(claim claims.ValueAccessor) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claim.ValueFromPayload(s.payload)
}

// RemoveClaim deletes claim from the access token payload.
func (s *Session) RemoveClaim(ctx context.Context, claim claims.Claim) error {
	return s.MergeIntoAccessTokenPayload(ctx, claim.RemoveFromPayloadByMerge(nil))
}

// GetAllSessionTokensDangerously exposes the raw tokens. Only use it when the
// tokens travel some other way than response headers or cookies.
func (s *Session) GetAllSessionTokensDangerously() (SessionTokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	front, err := buildFrontToken(s.payload.Subject(), s.expiry, s.payload)
	if err != nil {
		return SessionTokens{}, err
	}
	return SessionTokens{
		AccessToken:                s.accessToken,
		RefreshToken:               s.refreshToken,
		AntiCsrfToken:              s.antiCsrfToken,
		FrontToken:                 front,
		AccessAndFrontTokenUpdated: s.accessTokenUpdated,
	}, nil
}

// ClaimValue is the typed form of Session.GetClaimValue:
//
//	roles, ok := session.ClaimValue[[]string](s, rolesClaim)
func ClaimValue[T any](s *Session, claim interface {
	GetValueFromPayload(map[string]any) (T, bool)
}) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claim.GetValueFromPayload(s.payload)
}

type frontToken struct {
	UID string         `json:"uid"`
	ATE int64          `json:"ate"`
	UP  map[string]any `json:"up"`
}

// buildFrontToken encodes what a browser client may read about its session:
// the user, the access token expiry in milliseconds and the payload.
func buildFrontToken(userID string, expiry time.Time, payload map[string]any) (string, error) {
	raw, err := json.Marshal(frontToken{UID: userID, ATE: expiry.UnixMilli(), UP: payload})
	if err != nil {
		return "", fmt.Errorf("session: encode front token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseFrontToken decodes a front token.
func ParseFrontToken(token string) (userID string, expiry time.Time, payload map[string]any, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("session: decode front token: %w", err)
	}
	var ft frontToken
	if err := json.Unmarshal(raw, &ft); err != nil {
		return "", time.Time{}, nil, fmt.Errorf("session: decode front token: %w", err)
	}
	return ft.UID, time.UnixMilli(ft.ATE), ft.UP, nil
}
