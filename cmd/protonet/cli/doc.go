// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the protonet CLI.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory and a Run
// function. [Command.Execute] handles flag parsing, subcommand routing
// and help output. Unknown commands and flags get a Levenshtein-based
// suggestion (distance <= 3).
//
// [FlagsFromParams] builds a flag set from a tagged parameter struct,
// so commands declare their flags once:
//
//	type postParams struct {
//	    Global
//	    File string `flag:"file,f" desc:"read the message from a file"`
//	}
//
// The package also owns the on-disk session ([StoredSession]), whose
// token is sealed to a local age identity, and the [Output] helper
// that renders results as styled text, JSON or CBOR.
package cli
