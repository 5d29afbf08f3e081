package service

import (
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/internal/core/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newKeyStore(s store.Store) jwtx.KeyStore {
	return store.NewKeyStoreAdapter(s)
}

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	km, err := jwtx.NewPersistentKeyManager(t.Context(), jwtx.PersistentKeyManagerOptions{
		KeyManagerOptions: jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256},
		Store:             newKeyStore(db),
		GracePeriod:       time.Hour,
	})
	require.NoError(t, err)

	sessions := &SessionService{Store: db, KeyManager: km, RefreshTTL: time.Hour}
	rotation := &KeyRotationService{Store: db, KeyManager: km, Algorithm: jwtx.AlgorithmES256, GracePeriod: time.Hour}

	short, err := sessions.CreateSession(t.Context(), CreateSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	sessions.RefreshTTL = 48 * time.Hour
	long, err := sessions.CreateSession(t.Context(), CreateSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	oldKid := km.GetSigner().KID()
	_, err = rotation.RotateKey(t.Context(), RotateKeyRequest{RetireExisting: true})
	require.NoError(t, err)

	hk := NewHousekeepingService(db, slog.New(slog.DiscardHandler), time.Minute)
	hk.KeyManager = km
	hk.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	hk.Cleanup(t.Context())

	_, err = db.Sessions().GetSession(t.Context(), short.Session.Handle)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = db.Sessions().GetSession(t.Context(), long.Session.Handle)
	require.NoError(t, err)

	_, err = db.SigningKeys().GetSigningKeyByKid(t.Context(), oldKid)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NotContains(t, jwksKids(km), oldKid)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	hk := NewHousekeepingService(db, slog.New(slog.DiscardHandler), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
	hk.Stop()
}
