// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/lib/config"
	"github.com/bureau-foundation/protoclient/messaging"
)

// testBox serves one account (alice/secret, token tok123, user 1) with
// a single private chat.
type testBox struct {
	server *httptest.Server

	mu     sync.Mutex
	valid  map[string]bool
	budget map[string]int
	meeps  []messaging.Meep
	files  map[int64][]byte
	nextID int64
}

func newTestBox(t *testing.T) *testBox {
	t.Helper()
	box := &testBox{
		valid:  make(map[string]bool),
		budget: make(map[string]int),
		files:  make(map[int64][]byte),
		nextID: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tokens/", box.handleToken)
	mux.HandleFunc("GET /api/v1/me/", box.authorized(box.handleMe))
	mux.HandleFunc("GET /api/v1/users/1/private_chats", box.authorized(box.handleChats))
	mux.HandleFunc("GET /api/v1/private_chats/1", box.authorized(box.handleChat))
	mux.HandleFunc("GET /api/v1/private_chats/1/meeps", box.authorized(box.handleMeeps))
	mux.HandleFunc("POST /api/v1/private_chats/1/meeps", box.authorized(box.handleCreateMeep))
	mux.HandleFunc("GET /api/v1/files/{file}", box.authorized(box.handleFile))

	box.server = httptest.NewServer(mux)
	t.Cleanup(box.server.Close)
	return box
}

func (b *testBox) url(path string) string { return b.server.URL + "/api/v1/" + path }

func (b *testBox) meepsURL() string { return b.url("private_chats/1/meeps") }

func (b *testBox) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.valid, token)
}

// expireAfter lets token authorize n more requests.
func (b *testBox) expireAfter(token string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budget[token] = n
}

func (b *testBox) authorized(handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		token := request.Header.Get(messaging.TokenHeader)
		b.mu.Lock()
		ok := b.valid[token]
		if remaining, limited := b.budget[token]; ok && limited {
			ok = remaining > 0
			b.budget[token] = remaining - 1
		}
		b.mu.Unlock()
		if !ok {
			http.Error(writer, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		handler(writer, request)
	}
}

func (b *testBox) handleToken(writer http.ResponseWriter, request *http.Request) {
	username, password, ok := request.BasicAuth()
	if !ok || username != "alice" || password != "secret" {
		http.Error(writer, `{"error":"bad credentials"}`, http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	b.valid["tok123"] = true
	b.mu.Unlock()
	writeJSON(writer, messaging.TokenResponse{Token: "tok123", UserID: 1})
}

func (b *testBox) handleMe(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, messaging.MeContainer{Me: &messaging.Me{
		ID:              1,
		Name:            "alice",
		Username:        "alice",
		PrivateChatsURL: b.url("users/1/private_chats"),
	}})
}

func (b *testBox) chat() messaging.PrivateChat {
	return messaging.PrivateChat{
		ID:        1,
		URL:       b.url("private_chats/1"),
		MeepsURL:  b.meepsURL(),
		OtherUser: &messaging.User{ID: 99, Name: "support"},
	}
}

func (b *testBox) handleChats(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, messaging.PrivateChatsContainer{Chats: []messaging.PrivateChat{b.chat()}})
}

func (b *testBox) handleChat(writer http.ResponseWriter, request *http.Request) {
	chat := b.chat()
	writeJSON(writer, messaging.PrivateChatContainer{Chat: &chat})
}

func (b *testBox) handleMeeps(writer http.ResponseWriter, request *http.Request) {
	b.mu.Lock()
	meeps := append([]messaging.Meep{}, b.meeps...)
	b.mu.Unlock()
	writeJSON(writer, messaging.MeepsContainer{Meeps: meeps})
}

func (b *testBox) handleCreateMeep(writer http.ResponseWriter, request *http.Request) {
	b.mu.Lock()
	b.nextID++
	meep := messaging.Meep{
		ID:        b.nextID,
		User:      &messaging.User{ID: 1, Name: "alice"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b.mu.Unlock()

	contentType := request.Header.Get("Content-Type")
	if contentType == "application/json" {
		var payload messaging.NewMeep
		if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
			http.Error(writer, "bad meep", http.StatusUnprocessableEntity)
			return
		}
		meep.Message = payload.Message
	} else {
		data, err := io.ReadAll(request.Body)
		if err != nil {
			http.Error(writer, "bad upload", http.StatusBadRequest)
			return
		}
		meep.Files = []messaging.MeepFile{{
			ID:          meep.ID,
			Name:        "upload",
			ContentType: contentType,
			Size:        int64(len(data)),
			URL:         b.url(fmt.Sprintf("files/%d", meep.ID)),
		}}
		b.mu.Lock()
		b.files[meep.ID] = data
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.meeps = append(b.meeps, meep)
	b.mu.Unlock()

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusCreated)
	writeJSON(writer, messaging.MeepContainer{Meep: &meep})
}

func (b *testBox) handleFile(writer http.ResponseWriter, request *http.Request) {
	var id int64
	if _, err := fmt.Sscan(request.PathValue("file"), &id); err != nil {
		http.Error(writer, "not found", http.StatusNotFound)
		return
	}
	b.mu.Lock()
	data, ok := b.files[id]
	b.mu.Unlock()
	if !ok {
		http.Error(writer, "not found", http.StatusNotFound)
		return
	}
	writer.Header().Set("Content-Type", "application/octet-stream")
	writer.Write(data)
}

func writeJSON(writer http.ResponseWriter, value any) {
	if writer.Header().Get("Content-Type") == "" {
		writer.Header().Set("Content-Type", "application/json")
	}
	json.NewEncoder(writer).Encode(value)
}

// cliHarness isolates one test's config directory and captures the
// command output.
type cliHarness struct {
	t         *testing.T
	box       *testBox
	directory string
	stdout    bytes.Buffer
	stderr    bytes.Buffer
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	harness := &cliHarness{t: t, box: newTestBox(t), directory: t.TempDir()}
	t.Setenv("XDG_CONFIG_HOME", harness.directory)
	t.Setenv(config.EnvironmentVariable, "")
	t.Setenv(cli.SessionFileVariable, "")

	previousOut, previousErr := stdout, stderr
	stdout, stderr = &harness.stdout, &harness.stderr
	t.Cleanup(func() { stdout, stderr = previousOut, previousErr })
	return harness
}

// run executes the command line and resets the captured output first.
func (h *cliHarness) run(args ...string) error {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	return Root().Execute(args)
}

func (h *cliHarness) sessionPath() string {
	return filepath.Join(h.directory, "protonet", "session.json")
}

func (h *cliHarness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.directory, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		h.t.Fatal(err)
	}
	return path
}

// login logs in as alice with the password from a file.
func (h *cliHarness) login() {
	h.t.Helper()
	passwordFile := h.writeFile("password", "secret\n")
	if err := h.run("login", "alice", "--url", h.box.server.URL, "--password-file", passwordFile); err != nil {
		h.t.Fatalf("login: %v\nstderr: %s", err, h.stderr.String())
	}
	if !strings.Contains(h.stderr.String(), "Logged in as alice") {
		h.t.Fatalf("login output = %q", h.stderr.String())
	}
}

// allow makes token valid without a password exchange.
func (b *testBox) allow(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valid[token] = true
}
