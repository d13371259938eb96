// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	// Fingerprints end up in stored crash groups, the encoding must
	// stay stable across versions.
	assert.Equal(t, "23705b9a1bc0184544634504aeac1b6371359a25",
		String("eax=00000000", "esp=0012f9c4", "ebp=0012f9f8"))
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", String())
}

func TestPieceBoundaries(t *testing.T) {
	assert.Equal(t, "2538e3298b3a42f99a5551f5c49921935e63b7c6", String("ab", "c"))
	assert.Equal(t, "d8a36fe4e5112d9971e042183b8bcffe152ed809", String("a", "bc"))
	assert.NotEqual(t, String("ab", "c"), String("a", "bc"))
	assert.NotEqual(t, Of("ab", "c"), Of("abc"))
}

func TestSigString(t *testing.T) {
	sig := Of("x")
	assert.Equal(t, sig.String(), String("x"))
	assert.Equal(t, Of("x"), Of("x"))
}
