// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the protonet CLI command tree.
package commands

import (
	"fmt"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/lib/version"
)

// Root builds and returns the complete protonet command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "protonet",
		Description: `protonet: command-line client for a Protonet box.

Log in once with "protonet login"; the session is saved with its token
sealed to a local age identity, and later commands restore it. A token
the box rejects removes the saved session.`,
		Subcommands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			chatsCommand(),
			chatCommand(),
			meepsCommand(),
			postCommand(),
			uploadCommand(),
			downloadCommand(),
			exportCommand(),
			archiveCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(stdout, "protonet %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "Log in (prompts for the password)", Command: "protonet login alice --url https://box.example.com"},
			{Description: "List conversations", Command: "protonet chats"},
			{Description: "Show a conversation as JSON", Command: "protonet meeps <meeps-url> --format json"},
		},
	}
}
