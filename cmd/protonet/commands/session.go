// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/lib/sealed"
	"github.com/bureau-foundation/protoclient/lib/secret"
)

type loginParams struct {
	Global
	PasswordFile string `flag:"password-file" desc:"file holding the password, or - for stdin (default: prompt)"`
	TokenFile    string `flag:"token-file" desc:"log in with an existing token read from this file, or - for stdin"`
}

func loginCommand() *cli.Command {
	var params loginParams
	return &cli.Command{
		Name:    "login",
		Summary: "Authenticate and save the session",
		Description: `Log in to a Protonet box and save the session locally.

The password is exchanged for a token; the token is sealed to the age
identity in identity_file and written to session_file with mode 0600.
With --token-file the token is used as-is and checked by fetching the
profile.`,
		Usage: "protonet login <username> [flags]",
		Examples: []cli.Example{
			{Description: "Log in interactively", Command: "protonet login alice --url https://box.example.com"},
			{Description: "Log in with a token from a file", Command: "protonet login --token-file ~/.protonet-token"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("login", &params) },
		Run:   func(args []string) error { return runLogin(&params, args) },
	}
}

func runLogin(params *loginParams, args []string) error {
	if params.TokenFile != "" && params.PasswordFile != "" {
		return cli.Usage("--token-file and --password-file are mutually exclusive")
	}
	var username string
	switch {
	case params.TokenFile != "" && len(args) > 0:
		return cli.Usage("unexpected argument with --token-file: %s", args[0])
	case params.TokenFile == "" && len(args) != 1:
		return cli.Usage("exactly one username is required\n\nUsage: protonet login <username> [flags]")
	case params.TokenFile == "":
		username = args[0]
	}

	env, err := params.open()
	if err != nil {
		return err
	}
	defer env.Close()

	var ok bool
	if params.TokenFile != "" {
		token, err := secret.ReadFromPath(params.TokenFile)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		ok, err = env.client.LoginWithToken(env.ctx, token.String())
		token.Close()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	} else {
		password, err := cli.ReadPassword(params.PasswordFile)
		if err != nil {
			return err
		}
		ok, err = env.client.LoginWithPassword(env.ctx, username, password)
		password.Close()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}
	// A pre-issued token is accepted before its first use; one the box
	// refused on the profile fetch leaves the client anonymous.
	if !ok || !env.client.Authenticated() {
		fmt.Fprintln(stderr, "Login rejected by the box.")
		return &cli.ExitError{Code: cli.ExitUnauthorized}
	}

	if err := saveSession(env); err != nil {
		return err
	}
	profile := env.client.Profile()
	fmt.Fprintf(stderr, "Logged in as %s (id %d)\n", profile.Name, profile.ID)
	fmt.Fprintf(stderr, "Session saved to %s\n", env.sessionPath)
	return nil
}

// saveSession seals the client's token and writes the session file.
func saveSession(env *environment) error {
	keypair, err := sealed.LoadOrCreateIdentity(env.config.IdentityFile)
	if err != nil {
		return err
	}
	defer keypair.Close()

	token, err := secret.NewFromString(env.client.Token())
	if err != nil {
		return fmt.Errorf("protecting token: %w", err)
	}
	defer token.Close()

	profile := env.client.Profile()
	stored := &cli.StoredSession{
		BaseURL: env.client.BaseURL(),
		UserID:  profile.ID,
		Name:    profile.Name,
		SavedAt: time.Now().UTC(),
	}
	if err := stored.SealToken(token, keypair); err != nil {
		return err
	}
	if err := cli.SaveSessionTo(stored, env.sessionPath); err != nil {
		return err
	}
	env.session = stored
	return nil
}

func logoutCommand() *cli.Command {
	var params Global
	return &cli.Command{
		Name:    "logout",
		Summary: "Forget the saved session",
		Description: `Clear the local session. Protonet has no server-side logout: the
token stays valid on the box until it expires or is revoked there.`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("logout", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Usage("unexpected argument: %s", args[0])
			}
			env, err := params.open()
			if err != nil {
				// Without a URL no session was ever saved under this config.
				if errors.Is(err, errNoBaseURL) {
					fmt.Fprintln(stderr, "Not logged in.")
					return nil
				}
				return err
			}
			defer env.Close()

			env.client.Logout()
			if err := cli.RemoveSession(env.sessionPath); err != nil {
				return err
			}
			if env.session == nil {
				fmt.Fprintln(stderr, "Not logged in.")
				return nil
			}
			fmt.Fprintf(stderr, "Logged out %s\n", env.session.Name)
			return nil
		},
	}
}

type whoamiParams struct {
	Global
	Format string `flag:"format" desc:"output format: text, json or cbor" default:"text"`
}

func whoamiCommand() *cli.Command {
	var params whoamiParams
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the logged-in profile",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("whoami", &params) },
		Run: func(args []string) error {
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			me, err := env.client.GetMe(env.ctx)
			if err != nil {
				return err
			}
			if me == nil {
				return env.expired()
			}
			if done, err := output.Emit(me); done {
				return err
			}
			renderProfile(output, me, env.client.BaseURL())
			return nil
		},
	}
}

// newOutput builds the result writer on the package stdout.
func newOutput(format string) (*cli.Output, error) {
	output, err := cli.NewOutput(format)
	if err != nil {
		return nil, err
	}
	if stdout != output.Writer {
		output.Writer = stdout
		output.Styles = cli.NewStyles(false)
	}
	return output, nil
}
