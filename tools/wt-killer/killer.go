// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// wt-killer repeatedly closes all windows of a process until interrupted.
// Useful for running a GUI target outside of wt-triage, e.g. under a fuzzer
// that has no window handling of its own.
package main

import (
	"flag"
	"path/filepath"

	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/osutil"
	"github.com/wintriage/wintriage/pkg/tool"
	"github.com/wintriage/wintriage/pkg/winkiller"
)

func main() {
	var (
		flagPid   = flag.Int("pid", 0, "process id to watch")
		flagImage = flag.String("image", "", "image name to watch (alternative to -pid)")
	)
	flag.Parse()
	pid := *flagPid
	if pid == 0 {
		if *flagImage == "" {
			tool.Failf("usage: wt-killer -pid N | -image target.exe")
		}
		var err error
		pid, err = osutil.FindProcessID(filepath.Base(*flagImage))
		if err != nil {
			tool.Failf("failed to find process %v: %v", *flagImage, err)
		}
	}
	log.Logf(0, "closing windows of process %v", pid)
	killer := winkiller.Start(pid)
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	<-shutdown
	killer.HaltAndWait()
}
