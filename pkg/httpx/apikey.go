package httpx

import (
	"net/http"
	"sync"

	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "api-key"

// apiKeyVerifier checks presented keys against Argon2id hashes. Keys that
// verified once are remembered by fingerprint.
type apiKeyVerifier struct {
	hashes   []string
	verified sync.Map // fingerprint -> index into hashes
}

func (v *apiKeyVerifier) match(key string) (int, bool) {
	fp := cryptox.FingerprintToken(key)
	if i, ok := v.verified.Load(fp); ok {
		return i.(int), true
	}
	for i, h := range v.hashes {
		if cryptox.VerifySecret(key, h) == nil {
			v.verified.Store(fp, i)
			return i, true
		}
	}
	return 0, false
}

// RequireAPIKey rejects requests whose api-key header matches none of hashes.
// With no hashes configured every request passes. The matching key's
// fingerprint prefix is stored with WithAPIKeyID.
func RequireAPIKey(hashes []string) Middleware {
	if len(hashes) == 0 {
		return nil
	}
	v := &apiKeyVerifier{hashes: hashes}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAPIKey)
			if key == "" {
				WriteMessage(w, http.StatusUnauthorized, "API key missing")
				return
			}
			if _, ok := v.match(key); !ok {
				slogx.FromContext(r.Context()).Warn("invalid api key")
				WriteMessage(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			id := cryptox.FingerprintToken(key)[:8]
			next.ServeHTTP(w, r.WithContext(WithAPIKeyID(r.Context(), id)))
		})
	}
}
