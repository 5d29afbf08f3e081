package session

import (
	"encoding/json"
	"time"
)

// Core paths.
const (
	pathSession           = "/recipe/session"
	pathSessionRefresh    = "/recipe/session/refresh"
	pathSessionVerify     = "/recipe/session/verify"
	pathSessionRegenerate = "/recipe/session/regenerate"
	pathSessionRemove     = "/recipe/session/remove"
	pathSessionUser       = "/recipe/session/user"
	pathSessionData       = "/recipe/session/data"
	pathJWTData           = "/recipe/jwt/data"
	pathJWKS              = "/.well-known/jwks.json"
)

// Core reply statuses.
const (
	statusOK                 = "OK"
	statusUnauthorised       = "UNAUTHORISED"
	statusTryRefreshToken    = "TRY_REFRESH_TOKEN"
	statusTokenTheftDetected = "TOKEN_THEFT_DETECTED"
)

type wireToken struct {
	Token       string `json:"token"`
	Expiry      int64  `json:"expiry"`
	CreatedTime int64  `json:"createdTime"`
}

type wireSession struct {
	Handle        string         `json:"handle"`
	UserID        string         `json:"userId"`
	RecipeUserID  string         `json:"recipeUserId,omitempty"`
	TenantID      string         `json:"tenantId"`
	UserDataInJWT map[string]any `json:"userDataInJWT,omitempty"`
}

type wireStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type createSessionRequest struct {
	UserID             string         `json:"userId"`
	UserDataInJWT      map[string]any `json:"userDataInJWT"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
	EnableAntiCsrf     bool           `json:"enableAntiCsrf"`
}

// tokenPairResponse is the reply to create and refresh.
type tokenPairResponse struct {
	wireStatus
	Session       wireSession `json:"session"`
	AccessToken   wireToken   `json:"accessToken"`
	RefreshToken  wireToken   `json:"refreshToken"`
	AntiCsrfToken string      `json:"antiCsrfToken,omitempty"`
}

type refreshSessionRequest struct {
	RefreshToken   string `json:"refreshToken"`
	AntiCsrfToken  string `json:"antiCsrfToken,omitempty"`
	EnableAntiCsrf bool   `json:"enableAntiCsrf"`
}

type verifySessionRequest struct {
	AccessToken string `json:"accessToken"`
}

type verifySessionResponse struct {
	wireStatus
	Session wireSession `json:"session"`
}

type regenerateRequest struct {
	AccessToken   string         `json:"accessToken"`
	UserDataInJWT map[string]any `json:"userDataInJWT"`
}

type regenerateResponse struct {
	wireStatus
	Session     wireSession `json:"session"`
	AccessToken *wireToken  `json:"accessToken,omitempty"`
}

type removeSessionsRequest struct {
	SessionHandles []string `json:"sessionHandles,omitempty"`
	UserID         string   `json:"userId,omitempty"`
	TenantID       string   `json:"tenantId,omitempty"`
}

type removeSessionsResponse struct {
	wireStatus
	SessionHandlesRevoked []string `json:"sessionHandlesRevoked"`
}

type sessionHandlesResponse struct {
	wireStatus
	SessionHandles []string `json:"sessionHandles"`
}

type sessionInfoResponse struct {
	wireStatus
	SessionHandle      string         `json:"sessionHandle"`
	UserID             string         `json:"userId"`
	RecipeUserID       string         `json:"recipeUserId"`
	TenantID           string         `json:"tenantId"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
	UserDataInJWT      map[string]any `json:"userDataInJWT"`
	Expiry             int64          `json:"expiry"`
	TimeCreated        int64          `json:"timeCreated"`
}

type updateDataRequest struct {
	SessionHandle      string         `json:"sessionHandle"`
	UserDataInDatabase map[string]any `json:"userDataInDatabase"`
	UserDataInJWT      map[string]any `json:"userDataInJWT"`
}

type theftResponse struct {
	wireStatus
	Session struct {
		Handle string `json:"handle"`
		UserID string `json:"userId"`
	} `json:"session"`
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// peekStatus reads the status field of a core reply.
func peekStatus(body json.RawMessage) (wireStatus, error) {
	var s wireStatus
	if err := json.Unmarshal(body, &s); err != nil {
		return s, err
	}
	return s, nil
}
