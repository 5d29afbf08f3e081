package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sessionkit/internal/core/service"
	"github.com/aussiebroadwan/sessionkit/pkg/httpx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
)

// SessionHandler serves the session recipe endpoints.
type SessionHandler struct {
	Sessions *service.SessionService
}

// writeError maps a service error onto a status reply, or a 4xx/5xx for
// errors that are not part of the session protocol.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var theft *service.TokenTheftError
	switch {
	case errors.As(err, &theft):
		httpx.WriteJSON(w, http.StatusOK, TheftResponse{
			StatusResponse: StatusResponse{Status: StatusTokenTheftDetected},
			Session:        TheftSession{Handle: theft.SessionHandle, UserID: theft.UserID},
		})
	case errors.Is(err, service.ErrTryRefreshToken):
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: StatusTryRefreshToken, Message: err.Error()})
	case errors.Is(err, service.ErrUnauthorised):
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: StatusUnauthorised, Message: err.Error()})
	case errors.Is(err, service.ErrBadInput):
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
	default:
		slogx.FromContext(r.Context()).Error("session request failed", "path", r.URL.Path, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// HandleCreate creates a session in the tenant named by the path.
//
//	@Summary		Create a session
//	@Description	Starts a session and returns its access token, refresh token and optional anti-CSRF token.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			tenant	path		string					true	"Tenant id"
//	@Param			body	body		CreateSessionRequest	true	"Session"
//	@Success		200		{object}	TokenPairResponse
//	@Failure		400		{object}	MessageResponse
//	@Failure		401		{object}	MessageResponse	"Missing or invalid api-key"
//	@Failure		429		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/{tenant}/recipe/session [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.Sessions.CreateSession(r.Context(), service.CreateSessionParams{
		TenantID:           r.PathValue("tenant"),
		UserID:             req.UserID,
		UserDataInJWT:      req.UserDataInJWT,
		UserDataInDatabase: req.UserDataInDatabase,
		EnableAntiCsrf:     req.EnableAntiCsrf,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}

// HandleRefresh rotates a refresh token.
//
//	@Summary		Refresh a session
//	@Description	Exchanges a refresh token for a new token pair. Reusing a rotated refresh token revokes the session and answers TOKEN_THEFT_DETECTED.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RefreshSessionRequest	true	"Refresh token"
//	@Success		200		{object}	TokenPairResponse	"OK, or a TheftResponse with status TOKEN_THEFT_DETECTED"
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/refresh [post]
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshSessionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, err := h.Sessions.RefreshSession(r.Context(), req.RefreshToken, req.AntiCsrfToken, req.EnableAntiCsrf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}

// HandleVerify checks an access token against the session store.
//
//	@Summary		Verify a session
//	@Description	Verifies an access token and confirms its session still exists.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		VerifySessionRequest	true	"Access token"
//	@Success		200		{object}	VerifySessionResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/verify [post]
func (h *SessionHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifySessionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.Sessions.VerifySession(r.Context(), req.AccessToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, VerifySessionResponse{
		StatusResponse: StatusResponse{Status: StatusOK},
		Session:        toSession(sess),
	})
}

// HandleRegenerate re-signs an access token with a new payload.
//
//	@Summary		Regenerate an access token
//	@Description	Re-signs a valid access token keeping its expiry. A null userDataInJWT keeps the current payload. Legacy tokens are not re-signed.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RegenerateRequest	true	"Access token and payload"
//	@Success		200		{object}	RegenerateResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/regenerate [post]
func (h *SessionHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Sessions.RegenerateAccessToken(r.Context(), req.AccessToken, req.UserDataInJWT)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess := toSession(res.Session)
	sess.UserDataInJWT = res.UserDataInJWT
	out := RegenerateResponse{
		StatusResponse: StatusResponse{Status: StatusOK},
		Session:        sess,
	}
	if res.AccessToken != nil {
		t := toToken(*res.AccessToken)
		out.AccessToken = &t
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRemove revokes sessions by handle or by user.
//
//	@Summary		Revoke sessions
//	@Description	Revokes the listed session handles, or every session of userId in tenantId.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RemoveSessionsRequest	true	"Handles or user"
//	@Success		200		{object}	RemoveSessionsResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/remove [post]
func (h *SessionHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req RemoveSessionsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		revoked []string
		err     error
	)
	switch {
	case len(req.SessionHandles) > 0:
		revoked, err = h.Sessions.RevokeSessions(r.Context(), req.SessionHandles)
	case req.UserID != "":
		revoked, err = h.Sessions.RevokeAllForUser(r.Context(), req.TenantID, req.UserID)
	default:
		httpx.WriteMessage(w, http.StatusBadRequest, "sessionHandles or userId is required")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if revoked == nil {
		revoked = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, RemoveSessionsResponse{
		StatusResponse:        StatusResponse{Status: StatusOK},
		SessionHandlesRevoked: revoked,
	})
}

// HandleGet returns what the core stores for a session.
//
//	@Summary		Get session information
//	@Tags			Session
//	@Produce		json
//	@Param			sessionHandle	query		string	true	"Session handle"
//	@Success		200				{object}	SessionInfoResponse
//	@Failure		400				{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session [get]
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(r.URL.Query().Get("sessionHandle"))
	if handle == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "sessionHandle is required")
		return
	}

	sess, err := h.Sessions.GetSession(r.Context(), handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, SessionInfoResponse{
		StatusResponse:     StatusResponse{Status: StatusOK},
		SessionHandle:      sess.Handle,
		UserID:             sess.UserID,
		RecipeUserID:       sess.RecipeUserID,
		TenantID:           sess.TenantID,
		UserDataInDatabase: sess.UserDataInDatabase,
		UserDataInJWT:      sess.UserDataInJWT,
		Expiry:             millis(sess.ExpiresAt),
		TimeCreated:        millis(sess.CreatedAt),
	})
}

// HandleListForUser lists the live session handles of a user.
//
//	@Summary		List a user's sessions
//	@Tags			Session
//	@Produce		json
//	@Param			tenant	path		string	true	"Tenant id"
//	@Param			userId	query		string	true	"User id"
//	@Success		200		{object}	SessionHandlesResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/{tenant}/recipe/session/user [get]
func (h *SessionHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	handles, err := h.Sessions.ListSessionHandles(r.Context(), r.PathValue("tenant"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if handles == nil {
		handles = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, SessionHandlesResponse{
		StatusResponse: StatusResponse{Status: StatusOK},
		SessionHandles: handles,
	})
}

// HandleGetData returns the database side data of a session.
//
//	@Summary		Get session data
//	@Tags			Session
//	@Produce		json
//	@Param			sessionHandle	query		string	true	"Session handle"
//	@Success		200				{object}	SessionDataResponse
//	@Failure		400				{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/data [get]
func (h *SessionHandler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("sessionHandle")
	if handle == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "sessionHandle is required")
		return
	}

	sess, err := h.Sessions.GetSession(r.Context(), handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, SessionDataResponse{
		StatusResponse:     StatusResponse{Status: StatusOK},
		UserDataInDatabase: sess.UserDataInDatabase,
	})
}

// HandleUpdateData replaces the database side data of a session.
//
//	@Summary		Update session data
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateDataRequest	true	"Handle and userDataInDatabase"
//	@Success		200		{object}	StatusResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/session/data [put]
func (h *SessionHandler) HandleUpdateData(w http.ResponseWriter, r *http.Request) {
	var req UpdateDataRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionHandle == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "sessionHandle is required")
		return
	}

	if err := h.Sessions.UpdateSessionData(r.Context(), req.SessionHandle, req.UserDataInDatabase); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: StatusOK})
}

// HandleUpdateJWTData replaces the stored access token payload of a session.
//
//	@Summary		Update access token payload
//	@Description	Replaces the payload future access tokens of the session carry. Issued tokens are unchanged.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateDataRequest	true	"Handle and userDataInJWT"
//	@Success		200		{object}	StatusResponse
//	@Failure		400		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/jwt/data [put]
func (h *SessionHandler) HandleUpdateJWTData(w http.ResponseWriter, r *http.Request) {
	var req UpdateDataRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionHandle == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "sessionHandle is required")
		return
	}

	if err := h.Sessions.UpdateJWTData(r.Context(), req.SessionHandle, req.UserDataInJWT); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: StatusOK})
}
