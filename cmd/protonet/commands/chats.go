// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/messaging"
)

type listParams struct {
	Global
	Format string `flag:"format" desc:"output format: text, json or cbor" default:"text"`
}

func chatsCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "chats",
		Summary: "List private conversations",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("chats", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Usage("unexpected argument: %s", args[0])
			}
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			chats, err := env.client.GetChats(env.ctx)
			if err != nil {
				return err
			}
			if chats == nil && !env.client.Authenticated() {
				return env.expired()
			}
			if done, err := output.Emit(chats); done {
				return err
			}
			renderChats(output, chats)
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "chat",
		Summary: "Show one conversation",
		Usage:   "protonet chat <chat-url> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("chat", &params) },
		Run: func(args []string) error {
			locator, err := singleLocator(args, "chat-url")
			if err != nil {
				return err
			}
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			chat, err := env.client.GetChat(env.ctx, locator)
			if err != nil {
				return err
			}
			if chat == nil {
				return env.expired()
			}
			if done, err := output.Emit(chat); done {
				return err
			}
			renderChats(output, []messaging.PrivateChat{*chat})
			return nil
		},
	}
}

func meepsCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "meeps",
		Summary: "Show the messages of a conversation",
		Usage:   "protonet meeps <meeps-url> [flags]",
		Description: `Fetch the messages at a meeps URL, as listed in the meeps_url
column of "protonet chats". --format cbor writes Core Deterministic CBOR
for piping into other tools.`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("meeps", &params) },
		Run: func(args []string) error {
			locator, err := singleLocator(args, "meeps-url")
			if err != nil {
				return err
			}
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			meeps, err := env.client.GetChatMeeps(env.ctx, locator)
			if err != nil {
				return err
			}
			if meeps == nil && !env.client.Authenticated() {
				return env.expired()
			}
			if done, err := output.Emit(meeps); done {
				return err
			}
			renderMeeps(output, meeps)
			return nil
		},
	}
}

type postParams struct {
	listParams
	File string `flag:"file,f" desc:"read the message from a file, or - for stdin"`
}

func postCommand() *cli.Command {
	var params postParams
	return &cli.Command{
		Name:    "post",
		Summary: "Send a text message",
		Usage:   "protonet post <meeps-url> [text...] [flags]",
		Examples: []cli.Example{
			{Description: "Send a message", Command: "protonet post <meeps-url> hello there"},
			{Description: "Send the output of a command", Command: "uptime | protonet post <meeps-url> -f -"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("post", &params) },
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Usage("meeps-url is required\n\nUsage: protonet post <meeps-url> [text...]")
			}
			locator := args[0]
			text, err := messageText(args[1:], params.File)
			if err != nil {
				return err
			}
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			meep, err := env.client.CreateMeep(env.ctx, locator, messaging.NewTextMeep(text))
			if err != nil {
				return err
			}
			if meep == nil {
				return env.expired()
			}
			if done, err := output.Emit(meep); done {
				return err
			}
			renderMeeps(output, []messaging.Meep{*meep})
			return nil
		},
	}
}

// messageText joins words, or reads the message from path when set.
func messageText(words []string, path string) (string, error) {
	if path != "" && len(words) > 0 {
		return "", cli.Usage("pass the message as arguments or --file, not both")
	}
	text := strings.Join(words, " ")
	if path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return "", fmt.Errorf("reading message: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}
	if strings.TrimSpace(text) == "" {
		return "", cli.Usage("message is empty")
	}
	return text, nil
}

func singleLocator(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", cli.Usage("exactly one %s is required", name)
	}
	return args[0], nil
}
