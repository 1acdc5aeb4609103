// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a client for the Protonet chat API: token
// login, profile, private chats and meeps (text and file messages).
//
// [Client] is the session controller. It starts anonymous.
// [Client.LoginWithPassword] exchanges Basic credentials for a token
// at POST tokens/; [Client.LoginWithToken] accepts a token issued
// earlier without checking it first. Both fetch the profile at GET me/
// with the new token and only then store token and profile together,
// publishing [EventAuthenticationComplete]. A password login the
// service refuses returns false with a nil error. A pre-issued token
// the service refuses on the profile fetch is cleared through the 401
// path instead: LoginWithToken still returns true, and
// [EventAuthenticationFailed] leaves the client anonymous.
//
// Every request carries the token in the X-Protonet-Token header. The
// token is passed into each request explicitly; there is no shared
// mutable header state. The stored token lives in a secret.Buffer.
//
// Failures carry an [ErrorKind] (see [KindOf]): cancelled, transport,
// unauthorized (401 only), http, decode. Domain calls (GetMe, GetChats,
// GetChat, GetChatMeeps, CreateMeep, CreateFileMeep) are guarded: a 401
// clears the session, publishes [EventAuthenticationFailed] exactly once
// per session, and the call returns a zero result with a nil error.
// [Client.DownloadStream] is not guarded; a 401 yields a nil stream.
//
// Chat and meep locators are hypermedia URLs from earlier responses
// and are resolved against the API root.
//
// [Client.CancelAll] cancels every in-flight request, which fail with
// an error matching [ErrCancelled], and installs a fresh scope for
// later requests.
//
// [Client.Subscribe] returns a buffered channel of session events.
// Events are published under the credential store lock, in transition
// order. A subscriber that falls behind loses events rather than
// blocking the client.
package messaging
