// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// HandleInterrupts closes shutdown on the first Ctrl+C, giving the run
// a chance to clean up, and force-exits on the third one in case the
// cleanup itself is stuck.
func HandleInterrupts(shutdown chan struct{}) {
	go func() {
		signals := make(chan os.Signal, 3)
		signal.Notify(signals, os.Interrupt)
		<-signals
		close(shutdown)
		fmt.Fprintln(os.Stderr, "interrupted, cleaning up (interrupt twice more to exit now)")
		<-signals
		<-signals
		fmt.Fprintln(os.Stderr, "interrupted thrice, exiting without cleanup")
		os.Exit(1)
	}()
}

// KillProcess forcefully terminates the process with the given pid
// together with its child processes.
func KillProcess(pid int) error {
	return exec.Command("taskkill", "/f", "/t", "/pid", strconv.Itoa(pid)).Run()
}

// FindProcessID resolves a process image name (e.g. "fuzz.exe") to a pid.
// If several processes run the image, an arbitrary one is returned.
func FindProcessID(image string) (int, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot processes: %w", err)
	}
	defer windows.CloseHandle(snapshot)
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err := windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		if strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), image) {
			return int(entry.ProcessID), nil
		}
	}
	return 0, fmt.Errorf("process %v not found", image)
}

func killPgroup(cmd *exec.Cmd) {
}
