// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// wt-gflags toggles the full page heap for a target image.
// wt-triage does this automatically around a triage session, the tool exists
// to clean up after an aborted session or to prepare an image by hand.
package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/wintriage/wintriage/pkg/gflags"
	"github.com/wintriage/wintriage/pkg/tool"
)

func main() {
	var (
		flagWinDbg  = flag.String("windbg", "WinDbg", "directory with the Debugging Tools for Windows")
		flagDisable = flag.Bool("disable", false, "disable the page heap instead of enabling it")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		tool.Failf("usage: wt-gflags [flags] target.exe")
	}
	// gflags registry entries are keyed by image name, not path.
	image := filepath.Base(flag.Arg(0))
	bin := filepath.Join(*flagWinDbg, "gflags.exe")
	if *flagDisable {
		if err := gflags.Disable(bin, image); err != nil {
			tool.Failf("failed to disable page heap for %v: %v", image, err)
		}
		fmt.Printf("page heap disabled for %v\n", image)
		return
	}
	if err := gflags.Enable(bin, image); err != nil {
		tool.Failf("failed to enable page heap for %v: %v", image, err)
	}
	fmt.Printf("page heap enabled for %v\n", image)
}
