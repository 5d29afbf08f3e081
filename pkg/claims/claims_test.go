package claims_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixed[T any](v T) claims.FetchFunc[T] {
	return func(context.Context, string, string) (T, bool, error) { return v, true, nil }
}

// roundTrip mimics a payload read back out of a signed token.
func roundTrip(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestPrimitive(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	role := claims.New("role", fixed("admin"), claims.WithNow(func() time.Time { return now }))

	t.Run("build stamps the fetch time", func(t *testing.T) {
		payload, err := role.Build(t.Context(), "u1", "public")
		require.NoError(t, err)

		want := map[string]any{"role": map[string]any{"v": "admin", "t": now.UnixMilli()}}
		if diff := cmp.Diff(want, payload); diff != "" {
			t.Fatalf("payload mismatch (-want +got):\n%s", diff)
		}

		got, ok := role.GetValueFromPayload(roundTrip(t, payload))
		require.True(t, ok)
		require.Equal(t, "admin", got)

		at, ok := role.GetLastRefetchTime(roundTrip(t, payload))
		require.True(t, ok)
		require.True(t, now.Equal(at))
	})

	t.Run("no value builds an empty fragment", func(t *testing.T) {
		none := claims.New("role", func(context.Context, string, string) (string, bool, error) {
			return "", false, nil
		})
		payload, err := none.Build(t.Context(), "u1", "public")
		require.NoError(t, err)
		require.Empty(t, payload)
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		boom := errors.New("db down")
		broken := claims.New("role", func(context.Context, string, string) (string, bool, error) {
			return "", false, boom
		})
		_, err := broken.Build(t.Context(), "u1", "public")
		require.ErrorIs(t, err, boom)
	})

	t.Run("remove", func(t *testing.T) {
		payload, err := role.AddToPayload(map[string]any{"other": 1}, "admin")
		require.NoError(t, err)

		require.Equal(t, map[string]any{"other": 1}, role.RemoveFromPayload(payload))
		require.Equal(t, map[string]any{"other": 1, "role": nil}, role.RemoveFromPayloadByMerge(payload))
		require.Contains(t, payload, "role")
	})
}

func TestHasValue(t *testing.T) {
	fetched := time.UnixMilli(1_700_000_000_000)
	role := claims.New("role", fixed("admin"), claims.WithNow(func() time.Time { return fetched }))
	payload, err := role.AddToPayload(nil, "admin")
	require.NoError(t, err)
	payload = roundTrip(t, payload)

	tests := []struct {
		name      string
		validator claims.Validator
		payload   map[string]any
		now       time.Time
		want      claims.Result
	}{
		{
			name:      "matching value",
			validator: role.Validators.HasValue("admin"),
			payload:   payload,
			now:       fetched.Add(time.Hour),
			want:      claims.Valid,
		},
		{
			name:      "missing value",
			validator: role.Validators.HasValue("admin"),
			payload:   map[string]any{},
			now:       fetched,
			want:      claims.Result{Reason: &claims.Reason{Message: claims.MsgValueDoesNotExist, Expected: "admin"}},
		},
		{
			name:      "wrong value",
			validator: role.Validators.HasValue("owner"),
			payload:   payload,
			now:       fetched,
			want:      claims.Result{Reason: &claims.Reason{Message: claims.MsgWrongValue, Expected: "owner", Actual: "admin"}},
		},
		{
			name:      "stale value reported before wrong value",
			validator: role.Validators.HasValue("owner", claims.WithMaxAge(60)),
			payload:   payload,
			now:       fetched.Add(2 * time.Minute),
			want:      claims.Result{Reason: &claims.Reason{Message: claims.MsgExpired, AgeInSeconds: 120, MaxAgeInSeconds: 60}},
		},
		{
			name:      "fresh enough",
			validator: role.Validators.HasValue("admin", claims.WithMaxAge(60)),
			payload:   payload,
			now:       fetched.Add(30 * time.Second),
			want:      claims.Valid,
		},
		{
			name:      "zero max age expires any older value",
			validator: role.Validators.HasValue("admin", claims.WithMaxAge(0)),
			payload:   payload,
			now:       fetched.Add(time.Hour),
			want:      claims.Result{Reason: &claims.Reason{Message: claims.MsgExpired, AgeInSeconds: 3600}},
		},
		{
			name:      "zero max age accepts a value fetched now",
			validator: role.Validators.HasValue("admin", claims.WithMaxAge(0)),
			payload:   payload,
			now:       fetched,
			want:      claims.Valid,
		},
		{
			name:      "no max age never expires",
			validator: role.Validators.HasValue("admin"),
			payload:   payload,
			now:       fetched.Add(365 * 24 * time.Hour),
			want:      claims.Valid,
		},
		{
			name:      "zero default max age",
			validator: claims.New("role", fixed("admin"), claims.WithDefaultMaxAge(0)).Validators.HasValue("admin"),
			payload:   payload,
			now:       fetched.Add(time.Minute),
			want:      claims.Result{Reason: &claims.Reason{Message: claims.MsgExpired, AgeInSeconds: 60}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.validator.Validate(tt.payload, tt.now))
		})
	}
}

func TestShouldRefetch(t *testing.T) {
	fetched := time.UnixMilli(1_700_000_000_000)
	verified := claims.NewBoolean("st-ev", fixed(true), claims.WithNow(func() time.Time { return fetched }))
	payload, err := verified.AddToPayload(nil, true)
	require.NoError(t, err)

	v := verified.Validators.IsTrue(claims.WithMaxAge(300))
	require.Equal(t, "st-ev", v.ID())
	require.Equal(t, "st-ev", v.Claim().Key())

	require.True(t, v.ShouldRefetch(map[string]any{}, fetched))
	require.False(t, v.ShouldRefetch(payload, fetched.Add(time.Minute)))
	require.True(t, v.ShouldRefetch(payload, fetched.Add(10*time.Minute)))

	noAge := verified.Validators.IsTrue(claims.WithID("custom"))
	require.Equal(t, "custom", noAge.ID())
	require.False(t, noAge.ShouldRefetch(payload, fetched.Add(24*time.Hour)))

	zeroAge := verified.Validators.IsTrue(claims.WithMaxAge(0))
	require.False(t, zeroAge.ShouldRefetch(payload, fetched))
	require.True(t, zeroAge.ShouldRefetch(payload, fetched.Add(time.Second)))
}

func TestBoolean(t *testing.T) {
	verified := claims.NewBoolean("st-ev", fixed(false))
	payload, err := verified.Build(t.Context(), "u1", "public")
	require.NoError(t, err)
	payload = roundTrip(t, payload)

	require.True(t, verified.Validators.IsFalse().Validate(payload, time.Now()).IsValid)

	res := verified.Validators.IsTrue().Validate(payload, time.Now())
	require.False(t, res.IsValid)
	require.Equal(t, claims.MsgWrongValue, res.Reason.Message)
	require.Equal(t, true, res.Reason.Expected)
	require.Equal(t, false, res.Reason.Actual)
}

func TestArray(t *testing.T) {
	now := time.Now()
	perms := claims.NewArray("perms", fixed([]string{"read", "write"}))
	payload, err := perms.Build(t.Context(), "u1", "public")
	require.NoError(t, err)
	payload = roundTrip(t, payload)

	got, ok := perms.GetValueFromPayload(payload)
	require.True(t, ok)
	require.Equal(t, []string{"read", "write"}, got)

	tests := []struct {
		name      string
		validator claims.Validator
		valid     bool
	}{
		{"includes present", perms.Validators.Includes("read"), true},
		{"includes absent", perms.Validators.Includes("admin"), false},
		{"excludes absent", perms.Validators.Excludes("admin"), true},
		{"excludes present", perms.Validators.Excludes("write"), false},
		{"includes all", perms.Validators.IncludesAll([]string{"write", "read"}), true},
		{"includes all partial", perms.Validators.IncludesAll([]string{"read", "admin"}), false},
		{"includes all empty", perms.Validators.IncludesAll(nil), true},
		{"includes any", perms.Validators.IncludesAny([]string{"admin", "write"}), true},
		{"includes any none", perms.Validators.IncludesAny([]string{"admin"}), false},
		{"includes any empty", perms.Validators.IncludesAny(nil), false},
		{"excludes all", perms.Validators.ExcludesAll([]string{"admin", "delete"}), true},
		{"excludes all hit", perms.Validators.ExcludesAll([]string{"admin", "read"}), false},
		{"excludes all empty", perms.Validators.ExcludesAll(nil), true},
		{"strict equals", perms.Validators.StrictEquals([]string{"read", "write"}), true},
		{"strict equals order", perms.Validators.StrictEquals([]string{"write", "read"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.validator.Validate(payload, now)
			require.Equal(t, tt.valid, res.IsValid)
			if !tt.valid {
				require.Equal(t, claims.MsgWrongValue, res.Reason.Message)
				require.Equal(t, []string{"read", "write"}, res.Reason.Actual)
			}
		})
	}

	t.Run("missing value fails every rule", func(t *testing.T) {
		for _, v := range []claims.Validator{
			perms.Validators.IncludesAll(nil),
			perms.Validators.ExcludesAll(nil),
			perms.Validators.Excludes("x"),
		} {
			res := v.Validate(map[string]any{}, now)
			require.False(t, res.IsValid)
			require.Equal(t, claims.MsgValueDoesNotExist, res.Reason.Message)
		}
	})

	t.Run("nil list is stored empty", func(t *testing.T) {
		p, err := perms.AddToPayload(nil, nil)
		require.NoError(t, err)
		got, ok := perms.GetValueFromPayload(roundTrip(t, p))
		require.True(t, ok)
		require.Empty(t, got)
	})
}

func TestAssert(t *testing.T) {
	role := claims.New("role", fixed("user"))
	perms := claims.NewArray("perms", fixed([]string{"read"}))

	payload, err := role.AddToPayload(nil, "user")
	require.NoError(t, err)
	payload, err = perms.AddToPayload(payload, []string{"read"})
	require.NoError(t, err)

	failures := claims.Assert(payload, []claims.Validator{
		role.Validators.HasValue("admin"),
		perms.Validators.Includes("read"),
		perms.Validators.Includes("write", claims.WithID("can-write")),
	}, time.Now())

	require.Len(t, failures, 2)
	require.Equal(t, "role", failures[0].ID)
	require.Equal(t, "can-write", failures[1].ID)

	raw, err := json.Marshal(failures[1])
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"can-write","reason":{"message":"wrong value","expectedToInclude":"write","actualValue":["read"]}}`, string(raw))

	require.Nil(t, claims.Assert(payload, []claims.Validator{role.Validators.HasValue("user")}, time.Now()))
}
