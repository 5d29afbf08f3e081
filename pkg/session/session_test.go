package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/coretest"
	"github.com/aussiebroadwan/sessionkit/internal/core/service"
	"github.com/aussiebroadwan/sessionkit/pkg/claims"
	"github.com/aussiebroadwan/sessionkit/pkg/coreclient"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/session"
	"github.com/stretchr/testify/require"
)

func newRecipe(t *testing.T, core *coretest.Core, cfg session.Config) *session.Recipe {
	t.Helper()

	client, err := coreclient.New(coreclient.Config{
		Hosts:  []string{core.URL},
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	r, err := session.New(client, cfg)
	require.NoError(t, err)
	return r
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := session.New(nil, session.Config{})
	require.Error(t, err)

	client, err := coreclient.New(coreclient.Config{Hosts: []string{"http://localhost:1"}})
	require.NoError(t, err)
	_, err = session.New(client, session.Config{AntiCsrf: "SOMETIMES"})
	require.Error(t, err)
}

func TestCreateGetAndRefresh(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{Issuer: coretest.Issuer})

	s, err := r.CreateNewSession(ctx, "", "user-1",
		map[string]any{"plan": "pro"},
		map[string]any{"cart": float64(3)},
		false,
	)
	require.NoError(t, err)
	require.Equal(t, "user-1", s.UserID())
	require.Equal(t, coreclient.DefaultTenant, s.TenantID())
	require.NotEmpty(t, s.Handle())
	require.NotEmpty(t, s.RefreshToken())
	require.Empty(t, s.AntiCsrfToken())
	require.Equal(t, "pro", s.AccessTokenPayload()["plan"])
	require.WithinDuration(t, time.Now().Add(time.Hour), s.Expiry(), 5*time.Second)

	t.Run("get session", func(t *testing.T) {
		got, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
		require.NoError(t, err)
		require.Equal(t, s.Handle(), got.Handle())
		require.Empty(t, got.RefreshToken())

		data, err := got.GetSessionDataFromDatabase(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"cart": float64(3)}, data)
	})

	t.Run("session information", func(t *testing.T) {
		info, err := r.GetSessionInformation(ctx, s.Handle())
		require.NoError(t, err)
		require.Equal(t, "user-1", info.UserID)
		require.Equal(t, map[string]any{"plan": "pro"}, info.CustomClaimsInAccessTokenPayload)

		_, err = r.GetSessionInformation(ctx, "no-such-handle")
		require.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("refresh", func(t *testing.T) {
		next, err := r.RefreshSession(ctx, s.RefreshToken(), "", false)
		require.NoError(t, err)
		require.Equal(t, s.Handle(), next.Handle())
		require.NotEqual(t, s.RefreshToken(), next.RefreshToken())
		require.Equal(t, "pro", next.AccessTokenPayload()["plan"])

		_, err = r.GetSession(ctx, next.AccessToken(), "", session.VerifyOptions{})
		require.NoError(t, err)
	})

	t.Run("missing tokens", func(t *testing.T) {
		var unauthorised *session.UnauthorizedError

		_, err := r.GetSession(ctx, "", "", session.VerifyOptions{})
		require.ErrorAs(t, err, &unauthorised)

		_, err = r.RefreshSession(ctx, "", "", false)
		require.ErrorAs(t, err, &unauthorised)

		_, err = r.GetSession(ctx, "not.a.jwt", "", session.VerifyOptions{})
		require.ErrorAs(t, err, &unauthorised)
	})
}

func TestTokenTheft(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})

	s, err := r.CreateNewSession(ctx, "public", "user-1", nil, nil, false)
	require.NoError(t, err)

	_, err = r.RefreshSession(ctx, s.RefreshToken(), "", false)
	require.NoError(t, err)

	_, err = r.RefreshSession(ctx, s.RefreshToken(), "", false)
	var theft *session.TokenTheftDetectedError
	require.ErrorAs(t, err, &theft)
	require.Equal(t, s.Handle(), theft.SessionHandle)
	require.Equal(t, "user-1", theft.UserID)

	_, err = r.GetSessionInformation(ctx, s.Handle())
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestAntiCsrf(t *testing.T) {
	t.Parallel()

	core := coretest.New(t, coretest.Options{})

	t.Run("via token", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		r := newRecipe(t, core, session.Config{AntiCsrf: session.AntiCsrfViaToken})

		s, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
		require.NoError(t, err)
		require.NotEmpty(t, s.AntiCsrfToken())

		var soft *session.TryRefreshTokenError
		_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{AntiCsrfCheck: true})
		require.ErrorAs(t, err, &soft)
		_, err = r.GetSession(ctx, s.AccessToken(), "wrong", session.VerifyOptions{AntiCsrfCheck: true})
		require.ErrorAs(t, err, &soft)

		_, err = r.GetSession(ctx, s.AccessToken(), s.AntiCsrfToken(), session.VerifyOptions{AntiCsrfCheck: true})
		require.NoError(t, err)

		// a failed check must not burn the refresh token
		var hard *session.UnauthorizedError
		_, err = r.RefreshSession(ctx, s.RefreshToken(), "wrong", false)
		require.ErrorAs(t, err, &hard)

		next, err := r.RefreshSession(ctx, s.RefreshToken(), s.AntiCsrfToken(), false)
		require.NoError(t, err)
		require.NotEmpty(t, next.AntiCsrfToken())
		require.NotEqual(t, s.AntiCsrfToken(), next.AntiCsrfToken())
	})

	t.Run("disabled per session", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		r := newRecipe(t, core, session.Config{AntiCsrf: session.AntiCsrfViaToken})

		s, err := r.CreateNewSession(ctx, "", "user-2", nil, nil, true)
		require.NoError(t, err)
		require.Empty(t, s.AntiCsrfToken())

		_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{AntiCsrfCheck: true})
		require.NoError(t, err)
	})

	t.Run("via custom header", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		r := newRecipe(t, core, session.Config{AntiCsrf: session.AntiCsrfViaCustomHeader})

		s, err := r.CreateNewSession(ctx, "", "user-3", nil, nil, false)
		require.NoError(t, err)

		var soft *session.TryRefreshTokenError
		_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{AntiCsrfCheck: true})
		require.ErrorAs(t, err, &soft)

		_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{AntiCsrfCheck: true, HasCustomHeader: true})
		require.NoError(t, err)
	})
}

func TestExpiredAccessToken(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	issuer := newRecipe(t, core, session.Config{})
	later := newRecipe(t, core, session.Config{
		Now: func() time.Time { return time.Now().Add(2 * time.Hour) },
	})

	s, err := issuer.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)

	_, err = later.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	var soft *session.TryRefreshTokenError
	require.ErrorAs(t, err, &soft)
}

func TestBlacklisting(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})
	strict := newRecipe(t, core, session.Config{AccessTokenBlacklisting: true})

	s, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)
	require.NoError(t, s.RevokeSession(ctx))

	// Local verification cannot see the revocation.
	_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)

	var hard *session.UnauthorizedError
	_, err = r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{CheckDatabase: true})
	require.ErrorAs(t, err, &hard)
	_, err = strict.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	require.ErrorAs(t, err, &hard)
}

func TestRevocation(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})

	var handles []string
	for range 3 {
		s, err := r.CreateNewSession(ctx, "public", "user-1", nil, nil, false)
		require.NoError(t, err)
		handles = append(handles, s.Handle())
	}
	other, err := r.CreateNewSession(ctx, "other", "user-1", nil, nil, false)
	require.NoError(t, err)

	listed, err := r.GetAllSessionHandlesForUser(ctx, "public", "user-1")
	require.NoError(t, err)
	require.ElementsMatch(t, handles, listed)

	ok, err := r.RevokeSession(ctx, handles[0])
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.RevokeSession(ctx, handles[0])
	require.NoError(t, err)
	require.False(t, ok)

	revoked, err := r.RevokeMultipleSessions(ctx, []string{handles[1], "missing"})
	require.NoError(t, err)
	require.Equal(t, []string{handles[1]}, revoked)

	revoked, err = r.RevokeAllSessionsForUser(ctx, "public", "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{handles[2]}, revoked)

	_, err = r.GetSessionInformation(ctx, other.Handle())
	require.NoError(t, err)

	var bad *session.BadInputError
	_, err = r.RevokeAllSessionsForUser(ctx, "public", "")
	require.ErrorAs(t, err, &bad)
}

func TestPayloadUpdates(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})

	s, err := r.CreateNewSession(ctx, "", "user-1", map[string]any{"plan": "free", "beta": true}, nil, false)
	require.NoError(t, err)
	before := s.AccessToken()

	require.NoError(t, s.MergeIntoAccessTokenPayload(ctx, map[string]any{"plan": "pro", "beta": nil}))
	require.NotEqual(t, before, s.AccessToken())
	require.Equal(t, "pro", s.AccessTokenPayload()["plan"])
	require.NotContains(t, s.AccessTokenPayload(), "beta")

	got, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "pro", got.AccessTokenPayload()["plan"])

	stored, err := r.MergeIntoAccessTokenPayload(ctx, s.Handle(), map[string]any{"seats": float64(5)})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"plan": "pro", "seats": float64(5)}, stored)

	require.NoError(t, s.UpdateSessionDataInDatabase(ctx, map[string]any{"theme": "dark"}))
	data, err := s.GetSessionDataFromDatabase(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"theme": "dark"}, data)

	require.ErrorIs(t, r.UpdateSessionDataInDatabase(ctx, "missing", nil), session.ErrSessionNotFound)
}

func TestReservedKeys(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})

	var bad *session.BadInputError
	_, err := r.CreateNewSession(ctx, "", "user-1", map[string]any{"sub": "someone-else"}, nil, false)
	require.ErrorAs(t, err, &bad)
	_, err = r.CreateNewSession(ctx, "", "", nil, nil, false)
	require.ErrorAs(t, err, &bad)

	s, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)
	require.ErrorAs(t, s.MergeIntoAccessTokenPayload(ctx, map[string]any{"sessionHandle": "x"}), &bad)
	_, err = r.RegenerateAccessToken(ctx, s.AccessToken(), map[string]any{"exp": 1})
	require.ErrorAs(t, err, &bad)
}

func TestFrontToken(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	r := newRecipe(t, core, session.Config{})

	s, err := r.CreateNewSession(ctx, "", "user-1", map[string]any{"plan": "pro"}, nil, false)
	require.NoError(t, err)

	tokens, err := s.GetAllSessionTokensDangerously()
	require.NoError(t, err)
	require.Equal(t, s.AccessToken(), tokens.AccessToken)
	require.Equal(t, s.RefreshToken(), tokens.RefreshToken)
	require.True(t, tokens.AccessAndFrontTokenUpdated)

	uid, exp, up, err := session.ParseFrontToken(tokens.FrontToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)
	require.Equal(t, s.Expiry().UnixMilli(), exp.UnixMilli())
	require.Equal(t, "pro", up["plan"])

	got, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)
	tokens, err = got.GetAllSessionTokensDangerously()
	require.NoError(t, err)
	require.False(t, tokens.AccessAndFrontTokenUpdated)
}

func TestLegacyAccessTokens(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{
		Algorithm:          jwtx.AlgorithmRS256,
		LegacyAccessTokens: true,
	})
	r := newRecipe(t, core, session.Config{})

	s, err := r.CreateNewSession(ctx, "", "user-1", map[string]any{"plan": "pro"}, nil, false)
	require.NoError(t, err)
	v, err := jwtx.PeekVersion(s.AccessToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.VersionV2, v)

	got, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID())
	require.Equal(t, coreclient.DefaultTenant, got.TenantID())
	require.Equal(t, "pro", got.AccessTokenPayload()["plan"])

	// Legacy tokens are not re-signed; the new payload waits for the refresh.
	require.NoError(t, got.MergeIntoAccessTokenPayload(ctx, map[string]any{"plan": "team"}))
	require.Equal(t, s.AccessToken(), got.AccessToken())
	require.Equal(t, "team", got.AccessTokenPayload()["plan"])

	next, err := r.RefreshSession(ctx, s.RefreshToken(), "", false)
	require.NoError(t, err)
	v, err = jwtx.PeekVersion(next.AccessToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.VersionV3, v)
	require.Equal(t, "team", next.AccessTokenPayload()["plan"])
}

func TestLegacyAccessTokensAfterKeyRotation(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{
		Algorithm:          jwtx.AlgorithmRS256,
		LegacyAccessTokens: true,
	})
	r := newRecipe(t, core, session.Config{})

	before, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)
	_, err = r.GetSession(ctx, before.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)

	_, err = core.KeyRotation.RotateKey(ctx, service.RotateKeyRequest{RetireExisting: true})
	require.NoError(t, err)

	// Signed with a key the cache has never seen and carrying no kid.
	after, err := r.CreateNewSession(ctx, "", "user-2", nil, nil, false)
	require.NoError(t, err)
	got, err := r.GetSession(ctx, after.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "user-2", got.UserID())

	got, err = r.GetSession(ctx, before.AccessToken(), "", session.VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID())
}

func TestLegacyAccessTokensAfterSwitchToV3(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{
		Algorithm:          jwtx.AlgorithmRS256,
		LegacyAccessTokens: true,
	})
	r := newRecipe(t, core, session.Config{})

	old, err := r.CreateNewSession(ctx, "", "user-1", map[string]any{"plan": "pro"}, nil, false)
	require.NoError(t, err)

	core.Sessions.LegacyAccessTokens = false

	current, err := r.CreateNewSession(ctx, "", "user-2", nil, nil, false)
	require.NoError(t, err)
	v, err := jwtx.PeekVersion(current.AccessToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.VersionV3, v)

	for _, opts := range []session.VerifyOptions{{}, {CheckDatabase: true}} {
		got, err := r.GetSession(ctx, old.AccessToken(), "", opts)
		require.NoError(t, err)
		require.Equal(t, "user-1", got.UserID())
		require.Equal(t, "pro", got.AccessTokenPayload()["plan"])

		got, err = r.GetSession(ctx, current.AccessToken(), "", opts)
		require.NoError(t, err)
		require.Equal(t, "user-2", got.UserID())
	}
}

func TestClaims(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})

	var verified atomic.Bool
	emailVerified := claims.NewBoolean("st-ev", func(context.Context, string, string) (bool, bool, error) {
		return verified.Load(), true, nil
	})
	role := claims.New("role", func(context.Context, string, string) (string, bool, error) {
		return "admin", true, nil
	})
	role.WithDefaultValidator(role.Validators.HasValue("admin"))

	r := newRecipe(t, core, session.Config{})
	r.RegisterClaim(role)
	r.RegisterClaim(emailVerified)
	require.Len(t, r.GlobalClaimValidators(), 1)

	s, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)

	got, ok := session.ClaimValue(s, role)
	require.True(t, ok)
	require.Equal(t, "admin", got)

	t.Run("global validators pass", func(t *testing.T) {
		_, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{})
		require.NoError(t, err)
	})

	t.Run("override adds a failing validator", func(t *testing.T) {
		_, err := r.GetSession(ctx, s.AccessToken(), "", session.VerifyOptions{
			OverrideGlobalClaimValidators: func(globals []claims.Validator, _ *session.Session) []claims.Validator {
				return append(globals, emailVerified.Validators.IsTrue())
			},
		})
		var invalid *session.InvalidClaimsError
		require.ErrorAs(t, err, &invalid)
		require.Len(t, invalid.Payload, 1)
		require.Equal(t, "st-ev", invalid.Payload[0].ID)
	})

	t.Run("set claim value", func(t *testing.T) {
		s, err := r.CreateNewSession(ctx, "", "user-2", nil, nil, false)
		require.NoError(t, err)

		require.NoError(t, s.SetClaimValue(ctx, emailVerified, true))
		v, ok := s.GetClaimValue(emailVerified)
		require.True(t, ok)
		require.Equal(t, true, v)
		require.NoError(t, s.AssertClaims(ctx, []claims.Validator{emailVerified.Validators.IsTrue()}))

		require.NoError(t, s.RemoveClaim(ctx, emailVerified))
		_, ok = s.GetClaimValue(emailVerified)
		require.False(t, ok)
	})

	t.Run("missing claims are fetched", func(t *testing.T) {
		_, err := r.MergeIntoAccessTokenPayload(ctx, s.Handle(), emailVerified.RemoveFromPayloadByMerge(nil))
		require.NoError(t, err)

		verified.Store(true)
		failures, err := r.ValidateClaimsForSessionHandle(ctx, s.Handle(), []claims.Validator{
			emailVerified.Validators.IsTrue(),
		})
		require.NoError(t, err)
		require.Empty(t, failures)

		info, err := r.GetSessionInformation(ctx, s.Handle())
		require.NoError(t, err)
		require.Contains(t, info.CustomClaimsInAccessTokenPayload, "st-ev")
	})
}

func TestArrayClaim(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})
	roles := claims.NewArray("st-role", func(context.Context, string, string) ([]string, bool, error) {
		return []string{"role1"}, true, nil
	})

	r := newRecipe(t, core, session.Config{})
	r.RegisterClaim(roles)

	s, err := r.CreateNewSession(ctx, "", "u1", nil, nil, false)
	require.NoError(t, err)

	got, ok := session.ClaimValue(s, roles)
	require.True(t, ok)
	require.Equal(t, []string{"role1"}, got)

	require.NoError(t, s.AssertClaims(ctx, []claims.Validator{roles.Validators.Includes("role1")}))

	err = s.AssertClaims(ctx, []claims.Validator{roles.Validators.Includes("role2")})
	var invalid *session.InvalidClaimsError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Payload, 1)
	require.Equal(t, "st-role", invalid.Payload[0].ID)
	require.Equal(t, claims.MsgWrongValue, invalid.Payload[0].Reason.Message)
}

type countingRecipe struct {
	session.RecipeInterface
	creates *atomic.Int32
	revokes *atomic.Int32
}

func (c countingRecipe) CreateNewSession(ctx context.Context, tenantID, userID string, accessPayload, sessionData map[string]any, disableAntiCsrf bool) (*session.Session, error) {
	c.creates.Add(1)
	return c.RecipeInterface.CreateNewSession(ctx, tenantID, userID, accessPayload, sessionData, disableAntiCsrf)
}

func (c countingRecipe) RevokeSession(ctx context.Context, handle string) (bool, error) {
	c.revokes.Add(1)
	return c.RecipeInterface.RevokeSession(ctx, handle)
}

var errDenied = errors.New("denied")

type denyUser struct {
	session.RecipeInterface
}

func (d denyUser) CreateNewSession(ctx context.Context, tenantID, userID string, accessPayload, sessionData map[string]any, disableAntiCsrf bool) (*session.Session, error) {
	if userID == "blocked" {
		return nil, errDenied
	}
	return d.RecipeInterface.CreateNewSession(ctx, tenantID, userID, accessPayload, sessionData, disableAntiCsrf)
}

func TestOverrides(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	core := coretest.New(t, coretest.Options{})

	var creates, revokes atomic.Int32
	r := newRecipe(t, core, session.Config{
		Overrides: []session.Override{
			func(next session.RecipeInterface) session.RecipeInterface {
				return countingRecipe{RecipeInterface: next, creates: &creates, revokes: &revokes}
			},
			func(next session.RecipeInterface) session.RecipeInterface {
				return denyUser{RecipeInterface: next}
			},
		},
	})

	_, err := r.CreateNewSession(ctx, "", "blocked", nil, nil, false)
	require.ErrorIs(t, err, errDenied)
	require.Zero(t, creates.Load())

	s, err := r.CreateNewSession(ctx, "", "user-1", nil, nil, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, creates.Load())

	// Session methods go through the wrapped interface.
	require.NoError(t, s.RevokeSession(ctx))
	require.EqualValues(t, 1, revokes.Load())
}
