package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO refresh_tokens
		(id, session_handle, token_hash, parent_hash, anti_csrf_token, used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionHandle, t.TokenHash, t.ParentHash, t.AntiCsrfToken, t.Used,
		toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, session_handle, token_hash, parent_hash,
		anti_csrf_token, used, expires_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`, hash)

	var (
		t                domain.RefreshToken
		expires, created int64
	)
	if err := row.Scan(&t.ID, &t.SessionHandle, &t.TokenHash, &t.ParentHash,
		&t.AntiCsrfToken, &t.Used, &expires, &created); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func (r *refreshTokensRepo) MarkRefreshTokenUsed(ctx context.Context, hash string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET used = 1 WHERE token_hash = ? AND used = 0`, hash))
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
