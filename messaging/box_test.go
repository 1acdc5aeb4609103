// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/protoclient/lib/secret"
)

// fakeBox is an in-memory Protonet API served over httptest. It knows
// one private chat per user and stores meeps posted to it.
type fakeBox struct {
	t      *testing.T
	server *httptest.Server

	// entered receives one value each time a /slow request arrives.
	entered chan struct{}
	// release unblocks /slow handlers at test cleanup.
	release chan struct{}

	mu       sync.Mutex
	accounts map[string]fakeAccount
	// tokens maps a valid token to its user ID.
	tokens map[string]int64
	// budget, when set for a token, is how many more requests the
	// token may authorize before the box starts answering 401.
	budget   map[string]int
	meeps    map[int64][]Meep
	files    map[int64][]byte
	nextID   int64
	requests []*http.Request
	// meStatus, when non-zero, is returned by me/ instead of a profile.
	meStatus int
}

type fakeAccount struct {
	password string
	token    string
	profile  Me
}

func newFakeBox(t *testing.T) *fakeBox {
	t.Helper()
	box := &fakeBox{
		t:        t,
		entered:  make(chan struct{}, 64),
		release:  make(chan struct{}),
		accounts: make(map[string]fakeAccount),
		tokens:   make(map[string]int64),
		budget:   make(map[string]int),
		meeps:    make(map[int64][]Meep),
		files:    make(map[int64][]byte),
		nextID:   100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tokens/", box.handleToken)
	mux.HandleFunc("GET /api/v1/me/", box.handleMe)
	mux.HandleFunc("GET /api/v1/users/{user}/private_chats", box.handleChats)
	mux.HandleFunc("GET /api/v1/private_chats/{chat}", box.handleChat)
	mux.HandleFunc("GET /api/v1/private_chats/{chat}/meeps", box.handleMeeps)
	mux.HandleFunc("POST /api/v1/private_chats/{chat}/meeps", box.handleCreateMeep)
	mux.HandleFunc("GET /api/v1/files/{file}", box.handleFile)
	mux.HandleFunc("GET /api/v1/slow", box.handleSlow)
	mux.HandleFunc("GET /api/v1/broken", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		io.WriteString(writer, `{"meeps": [`)
	})
	mux.HandleFunc("GET /api/v1/explode", func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "internal error", http.StatusInternalServerError)
	})

	box.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		box.mu.Lock()
		box.requests = append(box.requests, request.Clone(request.Context()))
		box.mu.Unlock()
		mux.ServeHTTP(writer, request)
	}))
	// Cleanups run last-in first-out: release blocked handlers before
	// the server waits for them.
	t.Cleanup(box.server.Close)
	t.Cleanup(func() { close(box.release) })
	return box
}

// addAccount registers username with password. Logging in yields
// token; the account's user ID is id.
func (b *fakeBox) addAccount(id int64, username, password, token string) Me {
	b.mu.Lock()
	defer b.mu.Unlock()

	profile := Me{
		ID:              id,
		Name:            username,
		Username:        username,
		PrivateChatsURL: fmt.Sprintf("%s/api/v1/users/%d/private_chats", b.server.URL, id),
	}
	b.accounts[username] = fakeAccount{password: password, token: token, profile: profile}
	return profile
}

// allow makes token valid for user id without a password exchange.
func (b *fakeBox) allow(token string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = id
}

// revoke makes token invalid.
func (b *fakeBox) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// expireAfter lets token authorize n more requests.
func (b *fakeBox) expireAfter(token string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budget[token] = n
}

func (b *fakeBox) setMeStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meStatus = status
}

func (b *fakeBox) url(path string) string {
	return b.server.URL + "/api/v1/" + path
}

func (b *fakeBox) chatURL(userID int64) string {
	return fmt.Sprintf("%s/api/v1/private_chats/%d", b.server.URL, userID)
}

func (b *fakeBox) meepsURL(userID int64) string {
	return b.chatURL(userID) + "/meeps"
}

// recorded returns a copy of every request the box has received.
func (b *fakeBox) recorded() []*http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*http.Request(nil), b.requests...)
}

// authorize resolves the request's token to a user ID or writes 401.
func (b *fakeBox) authorize(writer http.ResponseWriter, request *http.Request) (int64, bool) {
	token := request.Header.Get(TokenHeader)

	b.mu.Lock()
	userID, ok := b.tokens[token]
	if ok {
		if remaining, limited := b.budget[token]; limited {
			if remaining <= 0 {
				ok = false
			} else {
				b.budget[token] = remaining - 1
			}
		}
	}
	b.mu.Unlock()

	if !ok {
		http.Error(writer, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

func (b *fakeBox) handleToken(writer http.ResponseWriter, request *http.Request) {
	username, password, ok := request.BasicAuth()
	b.mu.Lock()
	account, known := b.accounts[username]
	b.mu.Unlock()

	if !ok || !known || account.password != password {
		http.Error(writer, `{"error":"bad credentials"}`, http.StatusUnauthorized)
		return
	}

	b.allow(account.token, account.profile.ID)
	writeJSON(writer, TokenResponse{Token: account.token, UserID: account.profile.ID})
}

func (b *fakeBox) handleMe(writer http.ResponseWriter, request *http.Request) {
	userID, ok := b.authorize(writer, request)
	if !ok {
		return
	}

	b.mu.Lock()
	status := b.meStatus
	var profile *Me
	for _, account := range b.accounts {
		if account.profile.ID == userID {
			copied := account.profile
			profile = &copied
		}
	}
	b.mu.Unlock()

	if status != 0 {
		http.Error(writer, "scripted failure", status)
		return
	}
	if profile == nil {
		profile = &Me{
			ID:              userID,
			Name:            "user-" + strconv.FormatInt(userID, 10),
			PrivateChatsURL: fmt.Sprintf("%s/api/v1/users/%d/private_chats", b.server.URL, userID),
		}
	}
	writeJSON(writer, MeContainer{Me: profile})
}

func (b *fakeBox) chat(userID int64) PrivateChat {
	return PrivateChat{
		ID:        userID,
		URL:       b.chatURL(userID),
		MeepsURL:  b.meepsURL(userID),
		OtherUser: &User{ID: 99, Name: "support"},
	}
}

func (b *fakeBox) handleChats(writer http.ResponseWriter, request *http.Request) {
	userID, ok := b.authorize(writer, request)
	if !ok {
		return
	}
	if request.PathValue("user") != strconv.FormatInt(userID, 10) {
		http.Error(writer, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(writer, PrivateChatsContainer{Chats: []PrivateChat{b.chat(userID)}})
}

func (b *fakeBox) chatID(writer http.ResponseWriter, request *http.Request) (int64, bool) {
	chatID, err := strconv.ParseInt(request.PathValue("chat"), 10, 64)
	if err != nil {
		http.Error(writer, "not found", http.StatusNotFound)
		return 0, false
	}
	return chatID, true
}

func (b *fakeBox) handleChat(writer http.ResponseWriter, request *http.Request) {
	if _, ok := b.authorize(writer, request); !ok {
		return
	}
	chatID, ok := b.chatID(writer, request)
	if !ok {
		return
	}
	chat := b.chat(chatID)
	writeJSON(writer, PrivateChatContainer{Chat: &chat})
}

func (b *fakeBox) handleMeeps(writer http.ResponseWriter, request *http.Request) {
	if _, ok := b.authorize(writer, request); !ok {
		return
	}
	chatID, ok := b.chatID(writer, request)
	if !ok {
		return
	}
	b.mu.Lock()
	meeps := append([]Meep{}, b.meeps[chatID]...)
	b.mu.Unlock()
	writeJSON(writer, MeepsContainer{Meeps: meeps})
}

func (b *fakeBox) handleCreateMeep(writer http.ResponseWriter, request *http.Request) {
	userID, ok := b.authorize(writer, request)
	if !ok {
		return
	}
	chatID, ok := b.chatID(writer, request)
	if !ok {
		return
	}

	b.mu.Lock()
	b.nextID++
	meep := Meep{
		ID:        b.nextID,
		User:      &User{ID: userID},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b.mu.Unlock()

	if request.Header.Get("Content-Type") == contentTypeJSON {
		var payload NewMeep
		if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
			http.Error(writer, "bad meep", http.StatusUnprocessableEntity)
			return
		}
		meep.Type = "text"
		meep.Message = payload.Message
	} else {
		data, err := io.ReadAll(request.Body)
		if err != nil {
			http.Error(writer, "bad upload", http.StatusBadRequest)
			return
		}
		meep.Type = "file"
		meep.Files = []MeepFile{{
			ID:          meep.ID,
			Name:        "upload",
			ContentType: request.Header.Get("Content-Type"),
			Size:        int64(len(data)),
			URL:         fmt.Sprintf("%s/api/v1/files/%d", b.server.URL, meep.ID),
		}}
		b.mu.Lock()
		b.files[meep.ID] = data
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.meeps[chatID] = append(b.meeps[chatID], meep)
	b.mu.Unlock()

	writer.Header().Set("Content-Type", contentTypeJSON)
	writer.WriteHeader(http.StatusCreated)
	writeJSON(writer, MeepContainer{Meep: &meep})
}

func (b *fakeBox) handleFile(writer http.ResponseWriter, request *http.Request) {
	if _, ok := b.authorize(writer, request); !ok {
		return
	}
	fileID, err := strconv.ParseInt(request.PathValue("file"), 10, 64)
	if err != nil {
		http.Error(writer, "not found", http.StatusNotFound)
		return
	}
	b.mu.Lock()
	data, ok := b.files[fileID]
	b.mu.Unlock()
	if !ok {
		http.Error(writer, "not found", http.StatusNotFound)
		return
	}
	writer.Header().Set("Content-Type", contentTypeBinary)
	writer.Write(data)
}

// handleSlow writes headers and a first chunk, then holds the request
// open until the client goes away or the test ends. With ?headers=0 it
// blocks before writing anything.
func (b *fakeBox) handleSlow(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Query().Get("headers") != "0" {
		writer.Header().Set("Content-Type", contentTypeBinary)
		writer.WriteHeader(http.StatusOK)
		io.WriteString(writer, "partial")
		writer.(http.Flusher).Flush()
	}

	b.entered <- struct{}{}
	select {
	case <-request.Context().Done():
	case <-b.release:
	}
}

// newTestClient returns an anonymous client pointed at box.
func newTestClient(t *testing.T, box *fakeBox) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL: box.server.URL,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

// testBuffer creates a secret.Buffer closed at test cleanup.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func writeJSON(writer http.ResponseWriter, value any) {
	if writer.Header().Get("Content-Type") == "" {
		writer.Header().Set("Content-Type", "application/json")
	}
	json.NewEncoder(writer).Encode(value)
}
