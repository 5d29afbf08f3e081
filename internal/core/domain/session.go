package domain

import "time"

// Session is the core's record of one login. Its lifetime is the lifetime of
// its newest refresh token.
type Session struct {
	Handle             string         // ULID
	UserID             string         // Application user id
	RecipeUserID       string         // Login method user id, equal to UserID unless linked
	TenantID           string         // "public" unless multi-tenant
	UserDataInJWT      map[string]any // Custom access token payload
	UserDataInDatabase map[string]any // Server side session data, never sent to clients
	RefreshTokenHash   string         // Fingerprint of the refresh token currently valid
	ExpiresAt          time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsExpired reports whether the session outlived its last refresh token.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
