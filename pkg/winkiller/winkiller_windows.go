// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package winkiller

import (
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	wmClose = 0x0010
	gwOwner = 4
)

var (
	modUser32        = windows.NewLazySystemDLL("user32.dll")
	procPostMessageW = modUser32.NewProc("PostMessageW")
	procGetWindow    = modUser32.NewProc("GetWindow")
)

// EnumWindows callbacks are never released, so a single callback is created
// up front and the enumeration target is passed through package state.
var (
	enumMu   sync.Mutex
	enumPid  uint32
	enumMain bool
	enumHwnd windows.HWND
	enumCb   = syscall.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
		var pid uint32
		windows.GetWindowThreadProcessId(hwnd, &pid)
		if pid != enumPid {
			return 1
		}
		if !enumMain {
			postMessage(hwnd, wmClose, 0, 0)
			return 1
		}
		if isMainWindow(hwnd) {
			enumHwnd = hwnd
			return 0
		}
		return 1
	})
)

func closeProcessWindows(pid int) error {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumPid = uint32(pid)
	enumMain = false
	if err := windows.EnumWindows(enumCb, nil); err != nil {
		return fmt.Errorf("EnumWindows failed: %w", err)
	}
	return nil
}

// CloseMainWindow posts a close request to the top level window of the
// process, giving it a chance to shut down cleanly before being killed.
// Finding no window is not an error, the process may not have one.
func CloseMainWindow(pid int) error {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumPid = uint32(pid)
	enumMain = true
	enumHwnd = 0
	err := windows.EnumWindows(enumCb, nil)
	if enumHwnd != 0 {
		// Stopping the enumeration from the callback makes EnumWindows
		// report a failure, which is not one.
		postMessage(enumHwnd, wmClose, 0, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnumWindows failed: %w", err)
	}
	return nil
}

// A main window is a visible window without an owner.
func isMainWindow(hwnd windows.HWND) bool {
	if !windows.IsWindowVisible(hwnd) {
		return false
	}
	owner, _, _ := procGetWindow.Call(uintptr(hwnd), gwOwner)
	return owner == 0
}

func postMessage(hwnd windows.HWND, msg uint32, wparam, lparam uintptr) {
	procPostMessageW.Call(uintptr(hwnd), uintptr(msg), wparam, lparam)
}
