package http

import (
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
)

// Reply statuses. Session endpoints answer 200 with one of these; only
// malformed requests get a 4xx.
const (
	StatusOK                 = "OK"
	StatusUnauthorised       = "UNAUTHORISED"
	StatusTryRefreshToken    = "TRY_REFRESH_TOKEN"
	StatusTokenTheftDetected = "TOKEN_THEFT_DETECTED"
)

type StatusResponse struct {
	Status  string `json:"status" example:"OK"`
	Message string `json:"message,omitempty"`
}

// Token is a token with its validity window in Unix milliseconds.
type Token struct {
	Token       string `json:"token"`
	Expiry      int64  `json:"expiry"`
	CreatedTime int64  `json:"createdTime"`
}

type Session struct {
	Handle        string         `json:"handle"`
	UserID        string         `json:"userId"`
	RecipeUserID  string         `json:"recipeUserId,omitempty"`
	TenantID      string         `json:"tenantId"`
	UserDataInJWT map[string]any `json:"userDataInJWT,omitempty"`
}

type CreateSessionRequest struct {
	UserID             string         `json:"userId"`
	UserDataInJWT      map[string]any `json:"userDataInJWT"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
	EnableAntiCsrf     bool           `json:"enableAntiCsrf"`
}

// TokenPairResponse answers create and refresh.
type TokenPairResponse struct {
	StatusResponse
	Session       Session `json:"session"`
	AccessToken   Token   `json:"accessToken"`
	RefreshToken  Token   `json:"refreshToken"`
	AntiCsrfToken string  `json:"antiCsrfToken,omitempty"`
}

type RefreshSessionRequest struct {
	RefreshToken   string `json:"refreshToken"`
	AntiCsrfToken  string `json:"antiCsrfToken,omitempty"`
	EnableAntiCsrf bool   `json:"enableAntiCsrf"`
}

type VerifySessionRequest struct {
	AccessToken string `json:"accessToken"`
}

type VerifySessionResponse struct {
	StatusResponse
	Session Session `json:"session"`
}

type RegenerateRequest struct {
	AccessToken   string         `json:"accessToken"`
	UserDataInJWT map[string]any `json:"userDataInJWT"`
}

// RegenerateResponse carries no access token when the presented one was a
// legacy token.
type RegenerateResponse struct {
	StatusResponse
	Session     Session `json:"session"`
	AccessToken *Token  `json:"accessToken,omitempty"`
}

// RemoveSessionsRequest names either handles or a user.
type RemoveSessionsRequest struct {
	SessionHandles []string `json:"sessionHandles,omitempty"`
	UserID         string   `json:"userId,omitempty"`
	TenantID       string   `json:"tenantId,omitempty"`
}

type RemoveSessionsResponse struct {
	StatusResponse
	SessionHandlesRevoked []string `json:"sessionHandlesRevoked"`
}

type SessionHandlesResponse struct {
	StatusResponse
	SessionHandles []string `json:"sessionHandles"`
}

type SessionInfoResponse struct {
	StatusResponse
	SessionHandle      string         `json:"sessionHandle"`
	UserID             string         `json:"userId"`
	RecipeUserID       string         `json:"recipeUserId"`
	TenantID           string         `json:"tenantId"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
	UserDataInJWT      map[string]any `json:"userDataInJWT"`
	Expiry             int64          `json:"expiry"`
	TimeCreated        int64          `json:"timeCreated"`
}

type SessionDataResponse struct {
	StatusResponse
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
}

type UpdateDataRequest struct {
	SessionHandle      string         `json:"sessionHandle"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase,omitempty"`
	UserDataInJWT      map[string]any `json:"userDataInJWT,omitempty"`
}

type TheftSession struct {
	Handle string `json:"handle"`
	UserID string `json:"userId"`
}

type TheftResponse struct {
	StatusResponse
	Session TheftSession `json:"session"`
}

type APIVersionResponse struct {
	Versions []string `json:"versions" example:"3.0,3.1,4.0"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func toToken(t domain.Token) Token {
	return Token{Token: t.Value, Expiry: millis(t.ExpiresAt), CreatedTime: millis(t.CreatedAt)}
}

func toSession(s domain.Session) Session {
	return Session{
		Handle:        s.Handle,
		UserID:        s.UserID,
		RecipeUserID:  s.RecipeUserID,
		TenantID:      s.TenantID,
		UserDataInJWT: s.UserDataInJWT,
	}
}

func toTokenPair(p *domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		StatusResponse: StatusResponse{Status: StatusOK},
		Session:        toSession(p.Session),
		AccessToken:    toToken(p.AccessToken),
		RefreshToken:   toToken(p.RefreshToken),
		AntiCsrfToken:  p.AntiCsrfToken,
	}
}
