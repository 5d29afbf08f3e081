package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
	"github.com/aussiebroadwan/sessionkit/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "httpx-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, tag("outer"), nil, tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	key, hash, err := cryptox.GenerateAPIKey()
	require.NoError(t, err)

	var gotID string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = httpx.APIKeyIDFromContext(r.Context())
	}), httpx.RequireAPIKey([]string{hash}))

	call := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set(httpx.HeaderAPIKey, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, call("").Code)
	require.Equal(t, http.StatusUnauthorized, call("sk_wrong").Code)

	for range 2 {
		rec := call(key)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, cryptox.FingerprintToken(key)[:8], gotID)
	}

	require.Nil(t, httpx.RequireAPIKey(nil), "no configured keys means no check")
}

func TestRequireJSON(t *testing.T) {
	t.Parallel()

	h := httpx.RequireJSON(okHandler)

	cases := []struct {
		method, contentType string
		want                int
	}{
		{http.MethodPost, "application/json", http.StatusOK},
		{http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "", http.StatusUnsupportedMediaType},
		{http.MethodGet, "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/", strings.NewReader("{}"))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code, "%s %q", tc.method, tc.contentType)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	decode := func(body string) (map[string]any, error) {
		var v map[string]any
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return v, httpx.DecodeJSON(httptest.NewRecorder(), req, &v)
	}

	v, err := decode(`{"userId":"u1"}`)
	require.NoError(t, err)
	require.Equal(t, "u1", v["userId"])

	_, err = decode("")
	require.ErrorContains(t, err, "empty")

	_, err = decode(`{"a":1}{"b":2}`)
	require.Error(t, err)

	_, err = decode(`{"a":`)
	require.Error(t, err)
}

func TestWriteMessage(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.WriteMessage(rec, http.StatusBadRequest, "bad")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bad", body["message"])
}
