package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
)

// HousekeepingService periodically deletes expired sessions, refresh tokens
// and signing keys so the tables do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// KeyManager, when set, also drops deleted signing keys from the
	// published key set.
	KeyManager *jwtx.KeyManager

	Now func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs cleanup now and then on every tick, in the background.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished. Only the first call
// has any effect, and it must follow Start.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes expired records once. Each table is cleaned independently,
// so one failure does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now()
	s.Logger.Debug("starting housekeeping cleanup")

	sessions, err := s.Store.Sessions().DeleteExpiredSessions(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	tokens, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	}

	keys, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	}
	if keys > 0 && s.KeyManager != nil {
		s.forgetDeletedKeys(ctx, now)
	}

	s.Logger.Info("housekeeping cleanup completed",
		slog.Int64("sessions", sessions),
		slog.Int64("refresh_tokens", tokens),
		slog.Int64("signing_keys", keys),
	)
}

// forgetDeletedKeys removes kids from the key set that are no longer stored.
func (s *HousekeepingService) forgetDeletedKeys(ctx context.Context, now time.Time) {
	stored, err := s.Store.SigningKeys().ListAllSigningKeys(ctx, now)
	if err != nil {
		s.Logger.Error("failed to list signing keys", "error", err)
		return
	}
	kids := make([]string, len(stored))
	for i, k := range stored {
		kids[i] = k.Kid
	}
	for _, jwk := range s.KeyManager.KeySet.PublicJWKS().Keys {
		if !slices.Contains(kids, jwk.Kid) {
			s.KeyManager.ForgetKid(jwk.Kid)
			s.Logger.Debug("forgot expired signing key", "kid", jwk.Kid)
		}
	}
}
