// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/bureau-foundation/protoclient/lib/secret"
)

// LoginWithPassword exchanges username and password for a token at
// POST tokens/ and then establishes the session with it. Any active
// session is dropped first, without an event.
//
// Returns (false, nil) when the service refuses the credentials (401)
// or answers without a usable token; no event fires and the client
// stays anonymous. Other failures are returned as errors and also leave
// the client anonymous. The caller keeps ownership of password.
func (c *Client) LoginWithPassword(ctx context.Context, username string, password *secret.Buffer) (bool, error) {
	if username == "" {
		return false, fmt.Errorf("messaging: username is required")
	}
	if password == nil {
		return false, fmt.Errorf("messaging: password is required")
	}

	attempt := c.credentials.beginLogin()

	tokenResponse, err := c.exchangeToken(ctx, username, password)
	if err != nil {
		c.credentials.abortLogin(attempt)
		if IsUnauthorized(err) {
			c.logger.Info("login rejected", "username", username)
			return false, nil
		}
		return false, err
	}
	if tokenResponse == nil || strings.TrimSpace(tokenResponse.Token) == "" {
		c.credentials.abortLogin(attempt)
		c.logger.Info("login rejected, no token in response", "username", username)
		return false, nil
	}

	return c.establish(ctx, attempt, tokenResponse.Token, false)
}

// exchangeToken posts Basic credentials to the token endpoint. The
// encoded header value is built from the protected buffer and is
// the only heap copy of the password.
func (c *Client) exchangeToken(ctx context.Context, username string, password *secret.Buffer) (*TokenResponse, error) {
	raw := make([]byte, 0, len(username)+1+password.Len())
	raw = append(raw, username...)
	raw = append(raw, ':')
	raw = append(raw, password.Bytes()...)
	encoded := base64.StdEncoding.EncodeToString(raw)
	secret.Zero(raw)

	header := make(http.Header)
	header.Set("Authorization", "Basic "+encoded)

	return call[TokenResponse](ctx, c, request{
		method: http.MethodPost,
		target: tokenPath,
		header: header,
	})
}

// LoginWithToken establishes a session with a token issued earlier,
// typically restored from disk. The token is trusted: there is no
// separate validation round trip, and the login reports true once the
// token is attached. The profile fetch is the token's first use. If
// the service rejects it there, the session is cleared through the
// 401 path, EventAuthenticationFailed fires, and the client ends
// anonymous; callers check Authenticated to tell the two apart.
//
// A blank token returns (false, nil).
func (c *Client) LoginWithToken(ctx context.Context, token string) (bool, error) {
	attempt := c.credentials.beginLogin()

	if strings.TrimSpace(token) == "" {
		c.credentials.abortLogin(attempt)
		return false, nil
	}
	return c.establish(ctx, attempt, token, true)
}

// establish attaches token, fetches the profile with it, and stores
// both. EventAuthenticationComplete fires in the same critical section
// as the store update, so no call can observe a half-initialized
// session. trusted selects the result of a 401 on the profile fetch:
// true for a pre-issued token, false for one just exchanged.
func (c *Client) establish(ctx context.Context, attempt uint64, token string, trusted bool) (bool, error) {
	buffer, err := secret.NewFromString(token)
	if err != nil {
		c.credentials.abortLogin(attempt)
		return false, fmt.Errorf("messaging: storing token: %w", err)
	}

	profile, err := c.fetchProfile(ctx, credential{token: token, generation: attempt})
	if err != nil {
		buffer.Close()
		if IsUnauthorized(err) {
			if c.credentials.rejectLogin(attempt, func() {
				c.events.publish(EventAuthenticationFailed)
			}) {
				c.logger.Warn("credential rejected, session cleared", "error", err, "generation", attempt)
			} else {
				c.logger.Debug("ignoring 401 for superseded login", "error", err, "generation", attempt)
			}
			return trusted, nil
		}
		c.credentials.abortLogin(attempt)
		return false, err
	}

	c.credentials.activate(buffer, profile, func() {
		c.events.publish(EventAuthenticationComplete)
	})
	c.logger.Info("logged in", "user_id", profile.ID, "name", profile.Name)
	return true, nil
}

// fetchProfile is the unguarded GET me/.
func (c *Client) fetchProfile(ctx context.Context, used credential) (*Me, error) {
	container, err := call[MeContainer](ctx, c, request{
		method:     http.MethodGet,
		target:     mePath,
		credential: used,
	})
	if err != nil {
		return nil, err
	}
	if container.Me == nil {
		return nil, errMissingField(mePath, "me")
	}
	return container.Me, nil
}

// Logout clears the session and publishes EventLoggedOut. It fires
// even if no session was active. No request is sent to the service.
func (c *Client) Logout() {
	c.credentials.clear(func() {
		c.events.publish(EventLoggedOut)
	})
	c.logger.Info("logged out")
}

// CancelAll cancels every request in flight, including open download
// streams. Those calls fail with an error matching ErrCancelled.
// Requests started afterwards are unaffected.
func (c *Client) CancelAll() {
	c.scope.cancelAll()
	c.logger.Debug("cancelled all requests")
}

// Subscribe returns a channel receiving session events and a func that
// unsubscribes and closes it. buffer sets the channel capacity (minimum
// 1). Events that find the buffer full are dropped.
func (c *Client) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// State returns the current session state.
func (c *Client) State() State {
	return c.credentials.currentState()
}

// Authenticated reports whether a credential is held.
func (c *Client) Authenticated() bool {
	return c.credentials.snapshot().present()
}

// Token returns the active token, or "" when anonymous. Callers
// persisting it should treat the returned string as secret.
func (c *Client) Token() string {
	return c.credentials.snapshot().token
}

// Profile returns a copy of the session profile fetched at login, or
// nil when anonymous.
func (c *Client) Profile() *Me {
	return c.credentials.currentProfile()
}
