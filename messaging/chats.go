// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bureau-foundation/protoclient/lib/netutil"
)

// Every method in this file except DownloadStream is guarded: a 401
// clears the session, publishes EventAuthenticationFailed, and the
// method returns a zero result with a nil error.

// GetMe fetches the current user's profile. The profile stored at
// login is not updated.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	return guard(ctx, c, c.fetchProfile)
}

// GetChats lists the current user's private chats, following the
// private chats locator of the profile fetched at login. Returns
// ErrNotAuthenticated when no session is active.
func (c *Client) GetChats(ctx context.Context) ([]PrivateChat, error) {
	profile := c.credentials.currentProfile()
	if profile == nil {
		return nil, ErrNotAuthenticated
	}
	if profile.PrivateChatsURL == "" {
		return nil, fmt.Errorf("messaging: profile %d has no private chats locator", profile.ID)
	}

	return guard(ctx, c, func(ctx context.Context, used credential) ([]PrivateChat, error) {
		container, err := call[PrivateChatsContainer](ctx, c, request{
			method:     http.MethodGet,
			target:     profile.PrivateChatsURL,
			credential: used,
		})
		if err != nil {
			return nil, err
		}
		return container.Chats, nil
	})
}

// GetChat fetches one private chat by its locator.
func (c *Client) GetChat(ctx context.Context, locator string) (*PrivateChat, error) {
	if locator == "" {
		return nil, fmt.Errorf("messaging: chat locator is required")
	}
	return guard(ctx, c, func(ctx context.Context, used credential) (*PrivateChat, error) {
		container, err := call[PrivateChatContainer](ctx, c, request{
			method:     http.MethodGet,
			target:     locator,
			credential: used,
		})
		if err != nil {
			return nil, err
		}
		if container.Chat == nil {
			return nil, errMissingField(locator, "private_chat")
		}
		return container.Chat, nil
	})
}

// GetChatMeeps lists the meeps at locator, usually PrivateChat.MeepsURL.
func (c *Client) GetChatMeeps(ctx context.Context, locator string) ([]Meep, error) {
	if locator == "" {
		return nil, fmt.Errorf("messaging: meeps locator is required")
	}
	return guard(ctx, c, func(ctx context.Context, used credential) ([]Meep, error) {
		container, err := call[MeepsContainer](ctx, c, request{
			method:     http.MethodGet,
			target:     locator,
			credential: used,
		})
		if err != nil {
			return nil, err
		}
		return container.Meeps, nil
	})
}

// CreateMeep posts a text meep to locator and returns the created meep.
func (c *Client) CreateMeep(ctx context.Context, locator string, meep NewMeep) (*Meep, error) {
	if locator == "" {
		return nil, fmt.Errorf("messaging: meeps locator is required")
	}
	return guard(ctx, c, func(ctx context.Context, used credential) (*Meep, error) {
		return postMeep(ctx, c, request{
			method:     http.MethodPost,
			target:     locator,
			credential: used,
			body:       meep,
		})
	})
}

// CreateFileMeep streams body to locator as an attachment meep.
// contentType defaults to application/octet-stream. body is sent as
// is, without re-encoding.
func (c *Client) CreateFileMeep(ctx context.Context, locator, contentType string, body io.Reader) (*Meep, error) {
	if locator == "" {
		return nil, fmt.Errorf("messaging: meeps locator is required")
	}
	if body == nil {
		return nil, fmt.Errorf("messaging: file body is required")
	}
	return guard(ctx, c, func(ctx context.Context, used credential) (*Meep, error) {
		return postMeep(ctx, c, request{
			method:      http.MethodPost,
			target:      locator,
			credential:  used,
			raw:         body,
			contentType: contentType,
		})
	})
}

func postMeep(ctx context.Context, c *Client, req request) (*Meep, error) {
	container, err := call[MeepContainer](ctx, c, req)
	if err != nil {
		return nil, err
	}
	if container.Meep == nil {
		return nil, errMissingField(req.target, "meep")
	}
	return container.Meep, nil
}

// DownloadStream opens the resource at locator for streaming. It is not
// guarded: a 401 returns (nil, nil) and leaves the session alone, so
// best-effort media loads never log the user out. Other failures are
// returned as errors.
//
// The caller must close the returned stream. CancelAll aborts reads on
// it.
func (c *Client) DownloadStream(ctx context.Context, locator string) (io.ReadCloser, error) {
	if locator == "" {
		return nil, fmt.Errorf("messaging: download locator is required")
	}

	req := request{
		method:     http.MethodGet,
		target:     locator,
		credential: c.credentials.snapshot(),
	}
	httpResponse, release, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		defer release()
		defer httpResponse.Body.Close()

		body := netutil.ErrorBody(httpResponse.Body, maxErrorBody)
		statusErr := checkStatus(req.method, req.target, httpResponse.StatusCode, body)
		if IsUnauthorized(statusErr) {
			c.logger.Debug("download unauthorized", "target", locator)
			return nil, nil
		}
		return nil, statusErr
	}

	return &downloadStream{
		ctx:     httpResponse.Request.Context(),
		target:  locator,
		body:    httpResponse.Body,
		release: release,
	}, nil
}

// downloadStream releases the request's scope binding when closed. A
// read interrupted by CancelAll reports an error matching ErrCancelled.
type downloadStream struct {
	ctx       context.Context
	target    string
	body      io.ReadCloser
	release   func()
	closeOnce sync.Once
	closeErr  error
}

func (s *downloadStream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if err != nil && err != io.EOF {
		if cancelled(s.ctx) {
			return n, &cancelledError{Method: http.MethodGet, Target: s.target, Err: context.Cause(s.ctx)}
		}
		if s.ctx.Err() != nil {
			return n, &TransportError{Method: http.MethodGet, Target: s.target, Err: err}
		}
	}
	return n, err
}

func (s *downloadStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
		s.release()
	})
	return s.closeErr
}
