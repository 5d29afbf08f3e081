package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/coretest"
	corehttp "github.com/aussiebroadwan/sessionkit/internal/core/http"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// call sends body as JSON and decodes the JSON reply into out when non-nil.
func call(t *testing.T, c *coretest.Core, method, path string, body any, out any, headers ...string) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, c.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createSession(t *testing.T, c *coretest.Core, tenant, userID string, antiCsrf bool) corehttp.TokenPairResponse {
	t.Helper()

	var pair corehttp.TokenPairResponse
	code := call(t, c, http.MethodPost, "/"+tenant+"/recipe/session", corehttp.CreateSessionRequest{
		UserID:             userID,
		UserDataInJWT:      map[string]any{"role": "admin"},
		UserDataInDatabase: map[string]any{"theme": "dark"},
		EnableAntiCsrf:     antiCsrf,
	}, &pair)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, corehttp.StatusOK, pair.Status)
	return pair
}

func TestAPIVersion(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		c := coretest.New(t, coretest.Options{})

		var out corehttp.APIVersionResponse
		require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/apiversion", nil, &out))
		require.Equal(t, corehttp.DefaultVersions, out.Versions)
	})

	t.Run("unsupported version header", func(t *testing.T) {
		t.Parallel()
		c := coretest.New(t, coretest.Options{Versions: []string{"3.0"}})

		var msg corehttp.MessageResponse
		code := call(t, c, http.MethodGet, "/recipe/session?sessionHandle=x", nil, &msg, corehttp.HeaderVersion, "9.9")
		require.Equal(t, http.StatusBadRequest, code)
		require.Contains(t, msg.Message, "9.9")

		code = call(t, c, http.MethodGet, "/recipe/session?sessionHandle=x", nil, nil, corehttp.HeaderVersion, "3.0")
		require.Equal(t, http.StatusOK, code)
	})
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{APIKey: "sk_test"})
	body := corehttp.CreateSessionRequest{UserID: "u1"}

	require.Equal(t, http.StatusUnauthorized, call(t, c, http.MethodPost, "/public/recipe/session", body, nil))
	require.Equal(t, http.StatusUnauthorized, call(t, c, http.MethodPost, "/public/recipe/session", body, nil, "api-key", "wrong"))
	require.Equal(t, http.StatusOK, call(t, c, http.MethodPost, "/public/recipe/session", body, nil, "api-key", "sk_test"))

	// public endpoints stay open
	require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/.well-known/jwks.json", nil, nil))
	require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/livez", nil, nil))
}

func TestContentType(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, c.URL+"/public/recipe/session",
		bytes.NewBufferString(`{"userId":"u1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{})
	pair := createSession(t, c, "public", "user-1", true)

	require.Equal(t, "public", pair.Session.TenantID)
	require.NotEmpty(t, pair.AntiCsrfToken)
	require.Greater(t, pair.AccessToken.Expiry, time.Now().UnixMilli())
	require.Equal(t, "admin", pair.Session.UserDataInJWT["role"])

	t.Run("verify", func(t *testing.T) {
		var out corehttp.VerifySessionResponse
		call(t, c, http.MethodPost, "/recipe/session/verify",
			corehttp.VerifySessionRequest{AccessToken: pair.AccessToken.Token}, &out)
		require.Equal(t, corehttp.StatusOK, out.Status)
		require.Equal(t, pair.Session.Handle, out.Session.Handle)
	})

	t.Run("session information", func(t *testing.T) {
		var out corehttp.SessionInfoResponse
		call(t, c, http.MethodGet, "/recipe/session?sessionHandle="+pair.Session.Handle, nil, &out)
		require.Equal(t, corehttp.StatusOK, out.Status)
		require.Equal(t, "user-1", out.UserID)
		require.Equal(t, "dark", out.UserDataInDatabase["theme"])
		require.InDelta(t, pair.RefreshToken.Expiry, out.Expiry, 1000)
	})

	t.Run("update data", func(t *testing.T) {
		var st corehttp.StatusResponse
		call(t, c, http.MethodPut, "/recipe/session/data", corehttp.UpdateDataRequest{
			SessionHandle:      pair.Session.Handle,
			UserDataInDatabase: map[string]any{"theme": "light"},
		}, &st)
		require.Equal(t, corehttp.StatusOK, st.Status)

		var out corehttp.SessionDataResponse
		call(t, c, http.MethodGet, "/recipe/session/data?sessionHandle="+pair.Session.Handle, nil, &out)
		require.Equal(t, "light", out.UserDataInDatabase["theme"])
	})

	t.Run("regenerate", func(t *testing.T) {
		var out corehttp.RegenerateResponse
		call(t, c, http.MethodPost, "/recipe/session/regenerate", corehttp.RegenerateRequest{
			AccessToken:   pair.AccessToken.Token,
			UserDataInJWT: map[string]any{"role": "viewer"},
		}, &out)
		require.Equal(t, corehttp.StatusOK, out.Status)
		require.NotNil(t, out.AccessToken)
		require.Equal(t, pair.AccessToken.Expiry/1000, out.AccessToken.Expiry/1000)

		claims, _, err := jwtx.DecodeUnverified(out.AccessToken.Token)
		require.NoError(t, err)
		require.Equal(t, "viewer", claims["role"])
	})

	t.Run("refresh rotates and detects reuse", func(t *testing.T) {
		var bad corehttp.StatusResponse
		call(t, c, http.MethodPost, "/recipe/session/refresh", corehttp.RefreshSessionRequest{
			RefreshToken:   pair.RefreshToken.Token,
			AntiCsrfToken:  "wrong",
			EnableAntiCsrf: true,
		}, &bad)
		require.Equal(t, corehttp.StatusUnauthorised, bad.Status)

		var next corehttp.TokenPairResponse
		call(t, c, http.MethodPost, "/recipe/session/refresh", corehttp.RefreshSessionRequest{
			RefreshToken:   pair.RefreshToken.Token,
			AntiCsrfToken:  pair.AntiCsrfToken,
			EnableAntiCsrf: true,
		}, &next)
		require.Equal(t, corehttp.StatusOK, next.Status)
		require.NotEqual(t, pair.RefreshToken.Token, next.RefreshToken.Token)
		require.Equal(t, pair.Session.Handle, next.Session.Handle)

		var theft corehttp.TheftResponse
		call(t, c, http.MethodPost, "/recipe/session/refresh", corehttp.RefreshSessionRequest{
			RefreshToken:   pair.RefreshToken.Token,
			AntiCsrfToken:  pair.AntiCsrfToken,
			EnableAntiCsrf: true,
		}, &theft)
		require.Equal(t, corehttp.StatusTokenTheftDetected, theft.Status)
		require.Equal(t, pair.Session.Handle, theft.Session.Handle)
		require.Equal(t, "user-1", theft.Session.UserID)

		var gone corehttp.VerifySessionResponse
		call(t, c, http.MethodPost, "/recipe/session/verify",
			corehttp.VerifySessionRequest{AccessToken: next.AccessToken.Token}, &gone)
		require.Equal(t, corehttp.StatusUnauthorised, gone.Status)
	})
}

func TestSessionErrors(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{})

	t.Run("reserved payload key", func(t *testing.T) {
		code := call(t, c, http.MethodPost, "/public/recipe/session", corehttp.CreateSessionRequest{
			UserID:        "u1",
			UserDataInJWT: map[string]any{"sub": "someone-else"},
		}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown session", func(t *testing.T) {
		var out corehttp.SessionInfoResponse
		require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/recipe/session?sessionHandle=nope", nil, &out))
		require.Equal(t, corehttp.StatusUnauthorised, out.Status)
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		var out corehttp.StatusResponse
		call(t, c, http.MethodPost, "/recipe/session/refresh",
			corehttp.RefreshSessionRequest{RefreshToken: "nope"}, &out)
		require.Equal(t, corehttp.StatusUnauthorised, out.Status)
	})

	t.Run("garbage access token", func(t *testing.T) {
		var out corehttp.StatusResponse
		call(t, c, http.MethodPost, "/recipe/session/verify",
			corehttp.VerifySessionRequest{AccessToken: "a.b.c"}, &out)
		require.Equal(t, corehttp.StatusUnauthorised, out.Status)
	})

	t.Run("missing fields", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest,
			call(t, c, http.MethodPost, "/recipe/session/remove", corehttp.RemoveSessionsRequest{}, nil))
		require.Equal(t, http.StatusBadRequest,
			call(t, c, http.MethodGet, "/public/recipe/session/user", nil, nil))
	})
}

func TestExpiredAccessToken(t *testing.T) {
	t.Parallel()

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	c := coretest.New(t, coretest.Options{Now: past})
	pair := createSession(t, c, "public", "u1", false)

	var out corehttp.StatusResponse
	call(t, c, http.MethodPost, "/recipe/session/verify",
		corehttp.VerifySessionRequest{AccessToken: pair.AccessToken.Token}, &out)
	require.Equal(t, corehttp.StatusTryRefreshToken, out.Status)
}

func TestRevokeByUserIsTenantScoped(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{})
	a := createSession(t, c, "public", "u1", false)
	createSession(t, c, "public", "u1", false)
	other := createSession(t, c, "acme", "u1", false)

	var handles corehttp.SessionHandlesResponse
	call(t, c, http.MethodGet, "/public/recipe/session/user?userId=u1", nil, &handles)
	require.Len(t, handles.SessionHandles, 2)
	require.Contains(t, handles.SessionHandles, a.Session.Handle)

	var removed corehttp.RemoveSessionsResponse
	call(t, c, http.MethodPost, "/recipe/session/remove",
		corehttp.RemoveSessionsRequest{UserID: "u1", TenantID: "public"}, &removed)
	require.Len(t, removed.SessionHandlesRevoked, 2)

	call(t, c, http.MethodGet, "/acme/recipe/session/user?userId=u1", nil, &handles)
	require.Equal(t, []string{other.Session.Handle}, handles.SessionHandles)

	call(t, c, http.MethodPost, "/recipe/session/remove",
		corehttp.RemoveSessionsRequest{SessionHandles: []string{other.Session.Handle, "missing"}}, &removed)
	require.Equal(t, []string{other.Session.Handle}, removed.SessionHandlesRevoked)
}

func TestLegacySessions(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{Algorithm: jwtx.AlgorithmRS256, LegacyAccessTokens: true})
	pair := createSession(t, c, "public", "u1", false)

	version, err := jwtx.PeekVersion(pair.AccessToken.Token)
	require.NoError(t, err)
	require.Equal(t, jwtx.VersionV2, version)

	var regen corehttp.RegenerateResponse
	call(t, c, http.MethodPost, "/recipe/session/regenerate", corehttp.RegenerateRequest{
		AccessToken:   pair.AccessToken.Token,
		UserDataInJWT: map[string]any{"role": "viewer"},
	}, &regen)
	require.Equal(t, corehttp.StatusOK, regen.Status)
	require.Nil(t, regen.AccessToken)
	require.Equal(t, "viewer", regen.Session.UserDataInJWT["role"])

	var next corehttp.TokenPairResponse
	call(t, c, http.MethodPost, "/recipe/session/refresh",
		corehttp.RefreshSessionRequest{RefreshToken: pair.RefreshToken.Token}, &next)
	require.Equal(t, corehttp.StatusOK, next.Status)

	version, err = jwtx.PeekVersion(next.AccessToken.Token)
	require.NoError(t, err)
	require.Equal(t, jwtx.VersionV3, version)
}

func TestKeysAndHealth(t *testing.T) {
	t.Parallel()

	c := coretest.New(t, coretest.Options{})

	var jwks jwtx.JWKS
	require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/.well-known/jwks.json", nil, &jwks))
	require.Len(t, jwks.Keys, 1)
	oldKid := jwks.Keys[0].Kid

	var rotated struct {
		NewKey struct {
			Kid string `json:"kid"`
		} `json:"newKey"`
		ActiveKeys int `json:"activeKeys"`
	}
	require.Equal(t, http.StatusOK, call(t, c, http.MethodPost, "/recipe/keys/rotate",
		map[string]bool{"retireExisting": true}, &rotated))
	require.Equal(t, 1, rotated.ActiveKeys)
	require.NotEqual(t, oldKid, rotated.NewKey.Kid)

	require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/.well-known/jwks.json", nil, &jwks))
	require.Len(t, jwks.Keys, 2, "retired keys keep verifying")

	require.Equal(t, http.StatusConflict,
		call(t, c, http.MethodPost, "/recipe/keys/"+rotated.NewKey.Kid+"/retire", nil, nil),
		"the last signing key cannot be retired")

	var health corehttp.HealthResponse
	require.Equal(t, http.StatusOK, call(t, c, http.MethodGet, "/readyz", nil, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Signer)
}
