// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "time"

// TokenResponse is the body of POST tokens/.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id,omitempty"`
}

// Me is the authenticated user's profile. PrivateChatsURL is the
// hypermedia locator for the user's conversation list.
type Me struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	AvatarURL       string `json:"avatar,omitempty"`
	URL             string `json:"url,omitempty"`
	PrivateChatsURL string `json:"private_chats_url,omitempty"`
}

// MeContainer wraps Me in GET me/ responses.
type MeContainer struct {
	Me *Me `json:"me"`
}

// User is another participant as embedded in chats and meeps.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
	URL       string `json:"url,omitempty"`
}

// PrivateChat is a one-to-one conversation.
type PrivateChat struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	MeepsURL  string    `json:"meeps_url"`
	OtherUser *User     `json:"other_user,omitempty"`
	LastMeep  *Meep     `json:"last_meep,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// PrivateChatsContainer wraps the conversation list.
type PrivateChatsContainer struct {
	Chats []PrivateChat `json:"private_chats"`
}

// PrivateChatContainer wraps a single conversation.
type PrivateChatContainer struct {
	Chat *PrivateChat `json:"private_chat"`
}

// Meep is a single message in a conversation. Text meeps carry Message;
// file meeps carry Files.
type Meep struct {
	ID        int64      `json:"id"`
	Message   string     `json:"message"`
	Type      string     `json:"type,omitempty"`
	User      *User      `json:"user,omitempty"`
	Files     []MeepFile `json:"files,omitempty"`
	URL       string     `json:"url,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// MeepFile describes an attachment. URL is the download locator
// accepted by Client.DownloadStream.
type MeepFile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"mime,omitempty"`
	Size        int64  `json:"size,omitempty"`
	URL         string `json:"url"`
}

// MeepsContainer wraps a message list.
type MeepsContainer struct {
	Meeps []Meep `json:"meeps"`
}

// MeepContainer wraps a single message.
type MeepContainer struct {
	Meep *Meep `json:"meep"`
}

// NewMeep is the creation payload for a text message.
type NewMeep struct {
	Message string `json:"message"`
}

// NewTextMeep builds a text message payload.
func NewTextMeep(message string) NewMeep {
	return NewMeep{Message: message}
}
