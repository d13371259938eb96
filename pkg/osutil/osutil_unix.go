// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package osutil

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// HandleInterrupts closes shutdown on the first interrupt, giving the
// run a chance to clean up, and force-exits on the third one in case
// the cleanup itself is stuck.
func HandleInterrupts(shutdown chan struct{}) {
	go func() {
		signals := make(chan os.Signal, 3)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		close(shutdown)
		fmt.Fprintln(os.Stderr, "interrupted, cleaning up (interrupt twice more to exit now)")
		<-signals
		<-signals
		fmt.Fprintln(os.Stderr, "interrupted thrice, exiting without cleanup")
		os.Exit(1)
	}()
}

// KillProcess forcefully terminates the process with the given pid.
func KillProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

// FindProcessID resolves a process image name (e.g. "fuzz.exe") to a pid.
// Process enumeration by image name is only implemented on windows.
func FindProcessID(image string) (int, error) {
	return 0, fmt.Errorf("process lookup by name is not implemented on this OS")
}

func killPgroup(cmd *exec.Cmd) {
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
