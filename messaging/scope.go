// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"sync"
)

// errScopeInvalidated is the cancel cause recorded on requests whose
// scope was replaced by CancelAll.
var errScopeInvalidated = errors.New("cancellation scope invalidated")

// cancelScope is the replaceable cancellation signal shared by all
// in-flight requests. Requests hold the scope's context; cancelAll
// cancels it (a broadcast to every holder) and installs a fresh one.
type cancelScope struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func newCancelScope() *cancelScope {
	ctx, cancel := context.WithCancel(context.Background())
	return &cancelScope{ctx: ctx, cancel: cancel}
}

func (s *cancelScope) current() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *cancelScope) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// bind derives a request context from parent that is also cancelled,
// with cause errScopeInvalidated, when the scope current at bind time
// is invalidated. The returned release func must be called when the
// request (including any streamed body) is finished.
func (s *cancelScope) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(s.current(), func() {
		cancel(errScopeInvalidated)
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
