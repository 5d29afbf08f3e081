package http

import (
	"net/http"
	"slices"

	"github.com/aussiebroadwan/sessionkit/pkg/httpx"
)

// HeaderVersion carries the API version a caller negotiated.
const HeaderVersion = "cdi-version"

// DefaultVersions are the API versions the core speaks.
var DefaultVersions = []string{"3.0", "3.1", "4.0"}

// APIVersionHandler lists the supported API versions.
//
//	@Summary		Supported API versions
//	@Description	Callers pick the greatest version they share with the core and send it in the cdi-version header.
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	APIVersionResponse
//	@Router			/apiversion [get]
func APIVersionHandler(versions []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, APIVersionResponse{Versions: versions})
	}
}

// RequireVersion rejects requests whose cdi-version header names a version
// the core does not speak. Requests without the header pass.
func RequireVersion(versions []string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := r.Header.Get(HeaderVersion); v != "" && !slices.Contains(versions, v) {
				httpx.WriteMessage(w, http.StatusBadRequest, "unsupported cdi-version "+v)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
