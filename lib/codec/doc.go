// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration used to export meeps and
// chats from the protonet CLI (--format cbor).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same export always produces identical bytes, and writes timestamps
// as RFC 3339 text. Domain types carry `json` tags only; fxamacker/cbor
// falls back to them, so one tag set names fields in both formats.
//
//	data, err := codec.Marshal(meeps)
//	encoder := codec.NewEncoder(os.Stdout)
//
// [Diagnose] renders CBOR diagnostic notation for debugging exports.
package codec
