// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/protoclient/cmd/protonet/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired code; don't add an "error:" line for those.
		var coder interface{ ExitCode() int }
		if !errors.As(err, &coder) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(commands.ExitCode(err))
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
