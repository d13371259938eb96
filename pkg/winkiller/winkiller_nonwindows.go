// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !windows

package winkiller

import (
	"fmt"
	"runtime"
)

// Processes have no windows to dismiss here, the periodic sweep is a no-op.
func closeProcessWindows(pid int) error {
	return nil
}

func CloseMainWindow(pid int) error {
	return fmt.Errorf("closing windows is not implemented on %v", runtime.GOOS)
}
