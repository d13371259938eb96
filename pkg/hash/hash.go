// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash derives stable fingerprints from pieces of crash state.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
)

// Sig is the fingerprint of a sequence of pieces. Two Sigs compare
// equal exactly when every piece matched byte for byte.
type Sig [sha1.Size]byte

// Of hashes the pieces in order, with a separator between them so that
// shifting bytes across a piece boundary changes the result.
func Of(pieces ...string) Sig {
	h := sha1.New()
	for i, piece := range pieces {
		if i != 0 {
			io.WriteString(h, " ")
		}
		io.WriteString(h, piece)
	}
	var sig Sig
	h.Sum(sig[:0])
	return sig
}

// String returns the canonical hex form of Of(pieces).
func String(pieces ...string) string {
	sig := Of(pieces...)
	return sig.String()
}

func (sig Sig) String() string {
	return hex.EncodeToString(sig[:])
}
