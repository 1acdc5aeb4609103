// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/protoclient/lib/sealed"
	"github.com/bureau-foundation/protoclient/lib/secret"
)

// SessionFileVariable overrides the configured session file path.
const SessionFileVariable = "PROTONET_SESSION_FILE"

// ErrNoSession is returned by LoadSessionFrom when no session file
// exists.
var ErrNoSession = errors.New(`no protonet session found, run "protonet login" first`)

// StoredSession is the login state kept between CLI invocations. The
// token is age-encrypted to the identity in the configured identity
// file, so the session file alone does not grant access.
type StoredSession struct {
	// BaseURL is the box the token was issued by.
	BaseURL string `json:"base_url"`

	// UserID and Name identify the account, for display only.
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`

	// SealedToken is the base64 age ciphertext of the token.
	SealedToken string `json:"sealed_token"`

	// Recipient is the age public key SealedToken was sealed to.
	Recipient string `json:"recipient"`

	SavedAt time.Time `json:"saved_at"`
}

// SessionFilePath returns $PROTONET_SESSION_FILE if set, else
// configured.
func SessionFilePath(configured string) string {
	if path := os.Getenv(SessionFileVariable); path != "" {
		return path
	}
	return configured
}

// SealToken encrypts token to keypair and stores the result.
func (s *StoredSession) SealToken(token *secret.Buffer, keypair *sealed.Keypair) error {
	ciphertext, err := sealed.Seal(token.Bytes(), keypair.PublicKey)
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	s.SealedToken = ciphertext
	s.Recipient = keypair.PublicKey
	return nil
}

// OpenToken decrypts the stored token. The caller must Close the
// returned buffer.
func (s *StoredSession) OpenToken(keypair *sealed.Keypair) (*secret.Buffer, error) {
	if s.Recipient != "" && s.Recipient != keypair.PublicKey {
		return nil, fmt.Errorf("session was sealed to %s, identity is %s", s.Recipient, keypair.PublicKey)
	}
	token, err := sealed.Open(s.SealedToken, keypair.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("opening session token: %w", err)
	}
	return token, nil
}

// LoadSessionFrom reads a stored session. A missing file yields an
// error matching ErrNoSession.
func LoadSessionFrom(path string) (*StoredSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session file %s: %w", path, err)
	}

	var session StoredSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	if session.BaseURL == "" {
		return nil, fmt.Errorf("session file %s has no base_url", path)
	}
	if session.SealedToken == "" {
		return nil, fmt.Errorf("session file %s has no sealed_token", path)
	}
	return &session, nil
}

// SaveSessionTo writes session to path with mode 0600, creating the
// parent directory with mode 0700.
func SaveSessionTo(session *StoredSession, path string) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", directory, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session file %s: %w", path, err)
	}
	return nil
}

// RemoveSession deletes the session file. A missing file is not an
// error.
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file %s: %w", path, err)
	}
	return nil
}
