// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"sync"

	"github.com/bureau-foundation/protoclient/lib/secret"
)

// State is the session controller's state.
type State int

const (
	// StateAnonymous: no credential is held.
	StateAnonymous State = iota
	// StateAuthenticating: a login is between token exchange and
	// profile fetch. The store is still empty.
	StateAuthenticating
	// StateAuthenticated: credential and profile are both set.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// credential is a per-call snapshot of the active credential. The
// token is a heap copy taken under the store lock; generation
// identifies which activation it came from so that a late 401 cannot
// clear a newer session.
type credential struct {
	token      string
	generation uint64
}

func (c credential) present() bool { return c.token != "" }

// credentialStore holds the active token and profile. Token and
// profile are set and cleared together under one lock. Every
// transition bumps generation.
//
// The token lives in a secret.Buffer; readers copy it out under the
// read lock, so clear may close the buffer without racing an
// in-flight request.
type credentialStore struct {
	mu         sync.RWMutex
	token      *secret.Buffer
	profile    *Me
	state      State
	generation uint64
}

func (s *credentialStore) snapshot() credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return credential{generation: s.generation}
	}
	return credential{token: s.token.String(), generation: s.generation}
}

func (s *credentialStore) currentProfile() *Me {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil
	}
	profile := *s.profile
	return &profile
}

func (s *credentialStore) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// resetLocked drops token and profile. Caller holds mu.
func (s *credentialStore) resetLocked() {
	if s.token != nil {
		s.token.Close()
		s.token = nil
	}
	s.profile = nil
	s.generation++
}

// beginLogin clears any stale session and enters StateAuthenticating.
// No event is emitted: a fresh login replaces the old session
// silently. Returns the attempt's generation.
func (s *credentialStore) beginLogin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.state = StateAuthenticating
	return s.generation
}

// abortLogin returns to StateAnonymous if attempt is still the latest
// transition. A newer login or logout keeps its own state.
func (s *credentialStore) abortLogin(attempt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == attempt && s.state == StateAuthenticating {
		s.state = StateAnonymous
	}
}

// rejectLogin is abortLogin for a credential the service refused
// during the login's own profile fetch. emit runs under the lock, and
// only if attempt is still the latest transition: a superseded attempt
// must not report a failure against a newer session.
func (s *credentialStore) rejectLogin(attempt uint64, emit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != attempt || s.state != StateAuthenticating {
		return false
	}
	s.state = StateAnonymous
	emit()
	return true
}

// activate stores token and profile as one unit and runs emit under
// the same lock. Racing logins are last-writer-wins: activate always
// replaces whatever is there.
func (s *credentialStore) activate(token *secret.Buffer, profile *Me, emit func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.token = token
	s.profile = profile
	s.state = StateAuthenticated
	emit()
}

// clear drops the session unconditionally and runs emit under the
// lock. Used by Logout.
func (s *credentialStore) clear(emit func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.state = StateAnonymous
	emit()
}

// invalidate clears the session only if it is still the one a failed
// request used. Concurrent 401s for the same credential all call
// invalidate; exactly one observes a match, clears and emits.
func (s *credentialStore) invalidate(used credential, emit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !used.present() || s.token == nil || s.generation != used.generation {
		return false
	}
	s.resetLocked()
	s.state = StateAnonymous
	emit()
	return true
}
