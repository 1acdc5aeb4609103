// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body helpers for the Protonet
// client.
//
// ReadResponse caps JSON API response reads at MaxResponseSize so a
// misbehaving server cannot exhaust memory. ErrorBody and Truncate
// bound what an error response contributes to an error message. File downloads stream through
// messaging.Client.DownloadStream and are read incrementally.
package netutil

import (
	"io"
	"unicode/utf8"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
// A long meep list is a few megabytes at most.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads at most limit+1 bytes of an HTTP error response body,
// enough for Truncate to mark a cut. Read errors are ignored: a partial
// or empty body is still useful in an error message.
func ErrorBody(body io.Reader, limit int) []byte {
	data, _ := io.ReadAll(io.LimitReader(body, int64(limit)+1))
	return data
}

// Truncate returns body as a string of at most limit bytes, cut on a
// rune boundary. A "..." suffix marks truncation.
func Truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
