// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version describes the protoclient build: the string printed
// by "protonet version" and the User-Agent header the messaging client
// presents to a Protonet box.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected at
// build time via -ldflags -X and default to "unknown" / "0.1.0-dev"
// in development builds and tests.
package version
