package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/sessionkit/internal/core/service"
	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/httpx"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
)

// JWKSHandler exposes the public keys access tokens are verified with.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens, retired keys in their grace period included.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	jwtx.JWKS	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}

// KeyRotationHandler rotates and lists signing keys.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate handles POST /recipe/keys/rotate
//
//	@Summary		Rotate signing keys
//	@Description	Generates a signing key and optionally retires the active ones. Retired keys stay in the JWKS for the grace period.
//	@Tags			Keys
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.RotateKeyRequest	false	"Rotation options"
//	@Success		200		{object}	service.RotateKeyResponse
//	@Failure		400		{object}	MessageResponse
//	@Failure		401		{object}	MessageResponse
//	@Failure		500		{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/keys/rotate [post]
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	var req service.RotateKeyRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.KeyRotationService.RotateKey(r.Context(), req)
	if err != nil {
		slogx.FromContext(r.Context()).Error("key rotation failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "key rotation failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleListKeys handles GET /recipe/keys
//
//	@Summary		List signing keys
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{array}		domain.SigningKey
//	@Failure		401	{object}	MessageResponse
//	@Security		APIKey
//	@Router			/recipe/keys [get]
func (h *KeyRotationHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.KeyRotationService.ListSigningKeys(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("list signing keys failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "could not list signing keys")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, keys)
}

// HandleRetireKey handles POST /recipe/keys/{kid}/retire
//
//	@Summary		Retire a signing key
//	@Tags			Keys
//	@Param			kid	path	string	true	"Key id"
//	@Success		204
//	@Failure		404	{object}	MessageResponse
//	@Failure		409	{object}	MessageResponse	"Key already retired or last active key"
//	@Security		APIKey
//	@Router			/recipe/keys/{kid}/retire [post]
func (h *KeyRotationHandler) HandleRetireKey(w http.ResponseWriter, r *http.Request) {
	kid := r.PathValue("kid")

	err := h.KeyRotationService.RetireKey(r.Context(), kid)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jwtx.ErrUnknownKID):
		httpx.WriteMessage(w, http.StatusNotFound, "unknown key "+kid)
	case errors.Is(err, service.ErrKeyRetired), errors.Is(err, jwtx.ErrLastSigner):
		httpx.WriteMessage(w, http.StatusConflict, err.Error())
	default:
		slogx.FromContext(r.Context()).Error("retire signing key failed", "kid", kid, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "could not retire key")
	}
}
