// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
)

// guard runs operation with a snapshot of the active credential. If the
// operation fails with 401, the session that credential belonged to is
// cleared, EventAuthenticationFailed is published, and guard returns
// (zero, nil). Every other outcome passes through unchanged.
//
// Whether the 401 came from a session that has since been replaced is
// decided by the credential store: only a 401 for the current
// generation clears and notifies.
func guard[T any](ctx context.Context, c *Client, operation func(ctx context.Context, used credential) (T, error)) (T, error) {
	used := c.credentials.snapshot()

	result, err := operation(ctx, used)
	if err == nil || KindOf(err) != KindUnauthorized {
		return result, err
	}

	c.handleUnauthorized(used, err)
	var zero T
	return zero, nil
}

// handleUnauthorized clears the session a rejected credential belonged
// to. Safe to call concurrently for the same credential.
func (c *Client) handleUnauthorized(used credential, cause error) {
	cleared := c.credentials.invalidate(used, func() {
		c.events.publish(EventAuthenticationFailed)
	})
	if cleared {
		c.logger.Warn("credential rejected, session cleared",
			"error", cause,
			"generation", used.generation,
		)
		return
	}
	c.logger.Debug("ignoring 401 for stale or absent credential",
		"error", cause,
		"generation", used.generation,
	)
}
