// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireNoReceive], [RequireSend], and
// [RequireClosed] wrap the select-with-timeout pattern so tests never
// call time.After directly. Session event tests use RequireReceive to
// wait for a notification and RequireNoReceive to assert that a second
// one does not follow.
//
// [UniqueID] generates monotonically increasing identifiers for test
// payloads, such as meep bodies that must be distinguishable when a
// chat is re-fetched.
//
// All helpers call t.Fatalf on failure.
package testutil
