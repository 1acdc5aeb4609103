// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps passwords and session tokens out of the Go heap.
//
// [Buffer] memory comes from mmap(MAP_ANONYMOUS), is mlocked against
// swap and marked MADV_DONTDUMP. Close zeros and unmaps it.
//
//   - [New] -- zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewFromString] -- copies a string (the string stays on the heap)
//   - [ReadFromPath] / [ReadLine] -- first line of a file or stdin, trimmed
//
// The messaging client stores its active token in a Buffer, and the
// login command reads passwords into one.
package secret
