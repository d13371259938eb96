// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package gflags toggles full page heap verification for a target image
// via the GFlags.exe utility that ships with Debugging Tools for Windows.
// Page heap makes heap corruptions fault at the corrupting instruction,
// which turns silent memory errors into debuggable crashes.
package gflags

import (
	"time"

	"github.com/wintriage/wintriage/pkg/osutil"
)

const runTimeout = time.Minute

var runCmd = osutil.RunCmd

// Enable turns on full page heap for the given image name (e.g. "parser.exe").
// The setting is stored in the registry and applies to all future launches
// of the image, so it must be paired with Disable.
func Enable(bin, image string) error {
	if _, err := runCmd(runTimeout, "", bin, "/p", "/enable", image, "/full"); err != nil {
		return osutil.PrependContext("gflags", err)
	}
	return nil
}

// Disable removes the page heap setting for the given image name.
func Disable(bin, image string) error {
	if _, err := runCmd(runTimeout, "", bin, "/p", "/disable", image); err != nil {
		return osutil.PrependContext("gflags", err)
	}
	return nil
}
