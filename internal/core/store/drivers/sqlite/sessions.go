package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/domain"
)

type sessionsRepo struct {
	q querier
}

const sessionColumns = `handle, user_id, recipe_user_id, tenant_id, user_data_in_jwt,
	user_data_in_database, refresh_token_hash, expires_at, created_at, updated_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	jwtData, err := encodeJSON(s.UserDataInJWT)
	if err != nil {
		return err
	}
	dbData, err := encodeJSON(s.UserDataInDatabase)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Handle, s.UserID, s.RecipeUserID, s.TenantID, jwtData, dbData,
		s.RefreshTokenHash, toMillis(s.ExpiresAt), toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, handle string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE handle = ?`, handle)

	var (
		s                domain.Session
		jwtData, dbData  string
		expires, created int64
		updated          int64
	)
	if err := row.Scan(&s.Handle, &s.UserID, &s.RecipeUserID, &s.TenantID, &jwtData, &dbData,
		&s.RefreshTokenHash, &expires, &created, &updated); err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	var err error
	if s.UserDataInJWT, err = decodeJSON(jwtData); err != nil {
		return domain.Session{}, err
	}
	if s.UserDataInDatabase, err = decodeJSON(dbData); err != nil {
		return domain.Session{}, err
	}
	s.ExpiresAt = fromMillis(expires)
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

func (r *sessionsRepo) ListSessionHandles(ctx context.Context, tenantID, userID string, now time.Time) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT handle FROM sessions
		WHERE tenant_id = ? AND user_id = ? AND expires_at > ?
		ORDER BY created_at, handle`, tenantID, userID, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	handles := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

func (r *sessionsRepo) UpdateSessionDataInDatabase(ctx context.Context, handle string, data map[string]any) error {
	return r.updateJSON(ctx, "user_data_in_database", handle, data)
}

func (r *sessionsRepo) UpdateSessionDataInJWT(ctx context.Context, handle string, data map[string]any) error {
	return r.updateJSON(ctx, "user_data_in_jwt", handle, data)
}

// updateJSON writes one of the two JSON columns. column is never user input.
func (r *sessionsRepo) updateJSON(ctx context.Context, column, handle string, data map[string]any) error {
	encoded, err := encodeJSON(data)
	if err != nil {
		return err
	}
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE sessions SET `+column+` = ?, updated_at = ? WHERE handle = ?`,
		encoded, toMillis(time.Now()), handle,
	))
}

func (r *sessionsRepo) RotateRefreshToken(ctx context.Context, handle, tokenHash string, expiresAt time.Time) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = ?, expires_at = ?, updated_at = ? WHERE handle = ?`,
		tokenHash, toMillis(expiresAt), toMillis(time.Now()), handle,
	))
}

func (r *sessionsRepo) DeleteSessions(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return []string{}, nil
	}
	return r.deleteWhere(ctx, `handle IN (`+placeholders(len(handles))+`)`, stringArgs(handles)...)
}

func (r *sessionsRepo) DeleteSessionsForUser(ctx context.Context, tenantID, userID string) ([]string, error) {
	return r.deleteWhere(ctx, `tenant_id = ? AND user_id = ?`, tenantID, userID)
}

// deleteWhere removes matching sessions with their refresh tokens and returns
// the handles it removed.
func (r *sessionsRepo) deleteWhere(ctx context.Context, where string, args ...any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT handle FROM sessions WHERE `+where+` ORDER BY handle`, args...)
	if err != nil {
		return nil, err
	}
	removed := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			_ = rows.Close()
			return nil, err
		}
		removed = append(removed, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return removed, nil
	}

	in := `(` + placeholders(len(removed)) + `)`
	if _, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE session_handle IN `+in, stringArgs(removed)...); err != nil {
		return nil, err
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE handle IN `+in, stringArgs(removed)...); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	cutoff := toMillis(now)
	if _, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE session_handle IN
		(SELECT handle FROM sessions WHERE expires_at <= ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
