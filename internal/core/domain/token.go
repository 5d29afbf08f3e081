package domain

import "time"

// RefreshToken is one link in a session's refresh chain. Refresh tokens are
// single use: presenting one that was already used means two parties hold it.
type RefreshToken struct {
	ID            string // ULID
	SessionHandle string
	TokenHash     string // cryptox.FingerprintToken of the opaque token
	ParentHash    string // TokenHash of the token this one replaced, empty for the first
	AntiCsrfToken string // Empty when the session does not use anti-CSRF tokens
	Used          bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Token is a minted token and its validity window.
type Token struct {
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair is what create and refresh hand back to the SDK.
type TokenPair struct {
	Session       Session
	AccessToken   Token
	RefreshToken  Token
	AntiCsrfToken string
}
