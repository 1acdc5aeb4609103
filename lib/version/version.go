// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Injected with -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/protoclient/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/protonet
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info is the one-line build description printed by "protonet version".
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full is Info plus the Go toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every request to the box. Development builds
// carry the commit so server logs can tell them apart.
func UserAgent() string {
	release := Version
	if GitCommit != "unknown" {
		release += "+" + GitCommit
	}
	return fmt.Sprintf("protoclient/%s (%s/%s)", release, runtime.GOOS, runtime.GOARCH)
}
