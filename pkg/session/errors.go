package session

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/sessionkit/pkg/claims"
)

// ErrSessionNotFound is returned by handle based operations when the core has
// no session with that handle.
var ErrSessionNotFound = errors.New("session: session not found")

// UnauthorizedError is a hard failure. The caller should clear the client's
// session state.
type UnauthorizedError struct {
	Message string

	// ClearTokens is false when the failure says nothing about the tokens the
	// client holds, for example a missing token.
	ClearTokens bool
}

func (e *UnauthorizedError) Error() string { return "session: unauthorised: " + e.Message }

// TryRefreshTokenError is a soft failure. The client should refresh once and
// retry before failing the request.
type TryRefreshTokenError struct {
	Message string
}

func (e *TryRefreshTokenError) Error() string { return "session: try refresh token: " + e.Message }

// TokenTheftDetectedError means a rotated refresh token was presented again.
// The core has revoked the session.
type TokenTheftDetectedError struct {
	SessionHandle string
	UserID        string
}

func (e *TokenTheftDetectedError) Error() string {
	return fmt.Sprintf("session: token theft detected for session %s of user %s", e.SessionHandle, e.UserID)
}

// InvalidClaimsError carries every failed claim validator.
type InvalidClaimsError struct {
	Payload []claims.ValidationFailure
}

func (e *InvalidClaimsError) Error() string {
	ids := make([]string, len(e.Payload))
	for i, f := range e.Payload {
		ids[i] = f.ID
	}
	return fmt.Sprintf("session: invalid claims %v", ids)
}

// BadInputError is raised before any network call when arguments are unusable.
type BadInputError struct {
	Message string
}

func (e *BadInputError) Error() string { return "session: bad input: " + e.Message }

func unauthorised(msg string) error {
	return &UnauthorizedError{Message: msg, ClearTokens: true}
}

func tryRefresh(msg string) error {
	return &TryRefreshTokenError{Message: msg}
}
