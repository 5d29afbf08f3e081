package service

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func jwksKids(km *jwtx.KeyManager) []string {
	var kids []string
	for _, k := range km.KeySet.PublicJWKS().Keys {
		kids = append(kids, k.Kid)
	}
	return kids
}

func TestRotateKeyEphemeral(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256})
	require.NoError(t, err)
	oldKid := km.GetSigner().KID()

	svc := &KeyRotationService{KeyManager: km, Algorithm: jwtx.AlgorithmES256}

	res, err := svc.RotateKey(t.Context(), RotateKeyRequest{RetireExisting: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.ActiveKeys)
	require.Len(t, res.RetiredKeys, 1)
	require.Equal(t, oldKid, res.RetiredKeys[0].Kid)

	require.Equal(t, res.NewKey.Kid, km.GetSigner().KID())
	require.ElementsMatch(t, []string{oldKid, res.NewKey.Kid}, jwksKids(km), "retired keys keep verifying")

	keys, err := svc.ListSigningKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.ErrorIs(t, svc.RetireKey(t.Context(), res.NewKey.Kid), jwtx.ErrLastSigner)
}

func TestRotateKeyPersistent(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.ApplyMigrations())
	t.Cleanup(func() { _ = store.Close() })

	km, err := jwtx.NewPersistentKeyManager(t.Context(), jwtx.PersistentKeyManagerOptions{
		KeyManagerOptions: jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA},
		Store:             newKeyStore(store),
		GracePeriod:       time.Hour,
	})
	require.NoError(t, err)
	oldKid := km.GetSigner().KID()

	svc := &KeyRotationService{
		Store:       store,
		KeyManager:  km,
		Algorithm:   jwtx.AlgorithmEdDSA,
		GracePeriod: time.Hour,
	}

	res, err := svc.RotateKey(t.Context(), RotateKeyRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, res.ActiveKeys)
	require.Empty(t, res.RetiredKeys)
	require.Nil(t, res.NewKey.PrivateKeyEncrypted)

	require.NoError(t, svc.RetireKey(t.Context(), oldKid))
	require.Error(t, svc.RetireKey(t.Context(), oldKid), "already retired")

	stored, err := store.SigningKeys().GetSigningKeyByKid(t.Context(), oldKid)
	require.NoError(t, err)
	require.NotNil(t, stored.RetiredAt)

	keys, err := svc.ListSigningKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, k := range keys {
		require.Nil(t, k.PrivateKeyEncrypted)
	}

	active, err := store.SigningKeys().ListActiveSigningKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, res.NewKey.Kid, active[0].Kid)
}
