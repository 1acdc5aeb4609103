// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/protoclient/lib/secret"
)

// ReadPassword reads a password from passwordFile, or prompts on the
// terminal with echo disabled when passwordFile is empty or "-". A
// trailing newline in the file is stripped.
func ReadPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" && passwordFile != "-" {
		return secret.ReadFromPath(passwordFile)
	}

	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		// Piped stdin: read one line.
		if passwordFile == "-" {
			return secret.ReadLine(os.Stdin)
		}
		return nil, Usage("no terminal available for the password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return nil, Usage("empty password")
	}

	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}
