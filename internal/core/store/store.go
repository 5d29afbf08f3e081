package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories, so a transaction can only be opened from the root.
type Store interface {
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns ErrNotFound for unknown handles.
	GetSession(ctx context.Context, handle string) (domain.Session, error)

	// ListSessionHandles returns the handles of a user's unexpired sessions,
	// oldest first.
	ListSessionHandles(ctx context.Context, tenantID, userID string, now time.Time) ([]string, error)

	UpdateSessionDataInDatabase(ctx context.Context, handle string, data map[string]any) error
	UpdateSessionDataInJWT(ctx context.Context, handle string, data map[string]any) error

	// RotateRefreshToken points the session at a new refresh token and
	// extends its expiry to match.
	RotateRefreshToken(ctx context.Context, handle, tokenHash string, expiresAt time.Time) error

	// DeleteSessions removes the given sessions and their refresh tokens. It
	// returns the handles that existed.
	DeleteSessions(ctx context.Context, handles []string) ([]string, error)

	// DeleteSessionsForUser removes every session of a user in a tenant.
	DeleteSessionsForUser(ctx context.Context, tenantID, userID string) ([]string, error)

	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash looks a token up by its fingerprint, used or not.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// MarkRefreshTokenUsed flips used=1. It returns ErrNotFound when the
	// token is unknown or already used, so two concurrent refreshes of one
	// token cannot both win.
	MarkRefreshTokenUsed(ctx context.Context, hash string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListActiveSigningKeys returns the keys that still sign, newest first.
	// Active keys never expire.
	ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns active keys and retired keys still inside
	// their grace period, newest first.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// RetireSigningKey sets retired_at and sets expires_at to now+grace.
	RetireSigningKey(ctx context.Context, kid string, now time.Time, grace time.Duration) error

	// DeleteExpiredSigningKeys removes retired keys past their grace period.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
