/*
Package session is the session token engine: it creates, verifies, refreshes and
revokes sessions kept by a core, and runs claim validators over access token
payloads.

	client, err := coreclient.New(coreclient.Config{Hosts: []string{"http://localhost:3567"}})
	if err != nil {
		return err
	}
	sessions, err := session.New(client, session.Config{AntiCsrf: session.AntiCsrfViaToken})
	if err != nil {
		return err
	}

	s, err := sessions.CreateNewSession(ctx, "public", userID, nil, nil, false)

# Verification

Access tokens are verified locally with the core's published keys, cached by a
jwtx.KeyCache. Current (v3) tokens are JWTs found by kid. Legacy (v2) tokens have no
kid and are checked against every RSA key. Both verify until they expire; a refresh
always hands out a v3 token.

GetSession reports three kinds of failure that callers must keep apart:

  - *UnauthorizedError: the token is unusable, clear the session
  - *TryRefreshTokenError: refresh once, then retry the request
  - *InvalidClaimsError: the session is fine but a claim validator failed

RefreshSession reports *TokenTheftDetectedError when a refresh token is used twice.

# Overrides

Every operation goes through a RecipeInterface. Config.Overrides wrap it at
construction, and sessions call back through the wrapped interface.
*/
package session
