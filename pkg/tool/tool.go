// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains shared helpers for the command line binaries.
package tool

import (
	"fmt"
	"os"
	"strings"
)

func Failf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}

// ArgsFlag is a flag.Value that accumulates a whitespace-separated
// argument list, e.g. -args "-repeat 10 -quiet".
type ArgsFlag []string

func (f *ArgsFlag) String() string {
	return strings.Join(*f, " ")
}

func (f *ArgsFlag) Set(value string) error {
	*f = append(*f, strings.Fields(value)...)
	return nil
}
