// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/protoclient/lib/sealed"
	"github.com/bureau-foundation/protoclient/lib/secret"
)

func TestSessionRoundTrip(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "protonet", "session.json")

	keypair, err := sealed.LoadOrCreateIdentity(filepath.Join(directory, "identity"))
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	defer keypair.Close()

	token, err := secret.NewFromString("tok123")
	if err != nil {
		t.Fatal(err)
	}
	defer token.Close()

	session := &StoredSession{
		BaseURL: "https://box.example.com/api/v1/",
		UserID:  1,
		Name:    "alice",
		SavedAt: time.Now().UTC(),
	}
	if err := session.SealToken(token, keypair); err != nil {
		t.Fatalf("SealToken: %v", err)
	}
	if strings.Contains(session.SealedToken, "tok123") {
		t.Fatal("sealed token contains the plaintext")
	}

	if err := SaveSessionTo(session, path); err != nil {
		t.Fatalf("SaveSessionTo: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("session file mode = %o, want 0600", mode)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "tok123") {
		t.Error("session file contains the plaintext token")
	}

	loaded, err := LoadSessionFrom(path)
	if err != nil {
		t.Fatalf("LoadSessionFrom: %v", err)
	}
	if loaded.Name != "alice" || loaded.BaseURL != session.BaseURL {
		t.Errorf("loaded = %+v", loaded)
	}
	opened, err := loaded.OpenToken(keypair)
	if err != nil {
		t.Fatalf("OpenToken: %v", err)
	}
	defer opened.Close()
	if opened.String() != "tok123" {
		t.Errorf("opened token = %q, want tok123", opened.String())
	}

	if err := RemoveSession(path); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	if err := RemoveSession(path); err != nil {
		t.Errorf("removing a missing session should succeed: %v", err)
	}
	if _, err := LoadSessionFrom(path); !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSessionFrom(removed) = %v, want ErrNoSession", err)
	}
}

func TestOpenTokenWrongIdentity(t *testing.T) {
	first, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	token, err := secret.NewFromString("tok123")
	if err != nil {
		t.Fatal(err)
	}
	defer token.Close()

	session := &StoredSession{BaseURL: "https://box/api/v1/"}
	if err := session.SealToken(token, first); err != nil {
		t.Fatal(err)
	}
	if _, err := session.OpenToken(second); err == nil {
		t.Error("OpenToken with another identity should fail")
	}
}

func TestLoadSessionValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "garbage", content: "{", wantErr: "parsing"},
		{name: "no base url", content: `{"sealed_token": "x"}`, wantErr: "base_url"},
		{name: "no token", content: `{"base_url": "https://box/"}`, wantErr: "sealed_token"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadSessionFrom(path)
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("LoadSessionFrom = %v, want error mentioning %q", err, test.wantErr)
			}
		})
	}
}

func TestSessionFilePath(t *testing.T) {
	t.Setenv(SessionFileVariable, "")
	if got := SessionFilePath("/configured/session.json"); got != "/configured/session.json" {
		t.Errorf("SessionFilePath = %q, want configured path", got)
	}
	t.Setenv(SessionFileVariable, "/override/session.json")
	if got := SessionFilePath("/configured/session.json"); got != "/override/session.json" {
		t.Errorf("SessionFilePath = %q, want environment override", got)
	}
}
