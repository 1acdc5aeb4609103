// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the protonet CLI's saved session token with
// filippo.io/age.
//
// The CLI keeps an x25519 identity in a 0600 file next to its session
// file and seals the token to that identity's recipient before writing
// the session to disk. A copied session file is useless without the
// identity.
//
//   - [GenerateKeypair] -- new x25519 keypair, private key in a secret.Buffer
//   - [LoadOrCreateIdentity] -- read the identity file, creating it on first use
//   - [Seal] / [Open] -- base64 age ciphertext to and from a secret.Buffer
//   - [ParsePublicKey] -- recipient validation
package sealed
