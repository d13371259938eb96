// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// wt-triage replays a directory of fuzzer-found crash files under
// WinDbg with the !exploitable extension loaded and sorts them into a
// directory tree by crash signature and exploitability.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/osutil"
	"github.com/wintriage/wintriage/pkg/session"
	"github.com/wintriage/wintriage/pkg/stat"
	"github.com/wintriage/wintriage/pkg/tool"
	"github.com/wintriage/wintriage/pkg/triage"
	"github.com/wintriage/wintriage/pkg/triagecfg"
)

var (
	flagConfig      = flag.String("config", "", "configuration file")
	flagInput       = flag.String("input", "", "directory with candidate crash files")
	flagOutput      = flag.String("output", "", "root of the triaged output tree (input dir by default)")
	flagWinDbg      = flag.String("windbg", "", "debugger installation directory")
	flagTests       = flag.String("tests", "", "scratch directory for per-run input copies")
	flagMonitor     = flag.String("monitor", "", "custom monitor script to run in the debugger")
	flagTimeout     = flag.Int("timeout", 0, "per-input debugger deadline in seconds")
	flagReportEvery = flag.Int("report-every", 0, "log progress after every N inputs")
	flagPattern     = flag.String("pattern", "", "glob filter for candidate file names, e.g. *.jpg")
	flagHTTP        = flag.String("http", "", "address for the status page, e.g. localhost:50000")
	flagKillWindows = flag.Bool("kill-windows", false, "close windows the target pops up during replay")
	flagCloseMain   = flag.Bool("close-main", false, "ask the target to close its main window before killing it")
	flagNoGflags    = flag.Bool("no-gflags", false, "do not toggle the debug page heap around the run")
	flagContinuous  = flag.Bool("continuous", false, "keep re-scanning the input directory for new files")
	flagVerbose     = flag.Bool("v", false, "print per-file progress")
	flagArgs        tool.ArgsFlag
)

func main() {
	flag.Var(&flagArgs, "args", "extra arguments passed to the target before the input path")
	flag.Usage = usage
	flag.Parse()
	if *flagVerbose {
		log.SetVerbosity(1)
	}
	log.EnableLogCaching(1000, 1<<20)
	cfg, err := makeConfig()
	if err != nil {
		tool.Fail(err)
	}

	runner, err := session.NewRunner(cfg)
	if err != nil {
		tool.Fail(err)
	}
	driver := triage.NewDriver(cfg, runner)
	registerStats(driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	go func() {
		<-shutdown
		log.Logf(0, "shutting down...")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Once triage is done the status page has served its purpose.
		defer cancel()
		return driver.Loop(ctx)
	})
	if cfg.HTTP != "" {
		g.Go(func() error {
			return serveHTTP(ctx, cfg, driver)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		tool.Fail(err)
	}
	log.Logf(0, "triage session done")
}

// makeConfig assembles the run config from the config file and the
// command line, explicitly passed flags win over the file.
func makeConfig() (*triagecfg.Config, error) {
	cfg := &triagecfg.Config{}
	if *flagConfig != "" {
		var err error
		cfg, err = triagecfg.LoadPartialFile(*flagConfig)
		if err != nil {
			return nil, err
		}
	}
	if *flagInput != "" {
		cfg.InputDir = *flagInput
	}
	if *flagOutput != "" {
		cfg.OutputDir = *flagOutput
	}
	if *flagWinDbg != "" {
		cfg.WinDbgDir = *flagWinDbg
	}
	if *flagTests != "" {
		cfg.TestDir = *flagTests
	}
	if *flagMonitor != "" {
		cfg.MonitorScript = *flagMonitor
	}
	if *flagTimeout != 0 {
		cfg.Timeout = *flagTimeout
	}
	if *flagReportEvery != 0 {
		cfg.ReportEvery = *flagReportEvery
	}
	if *flagPattern != "" {
		cfg.InputPattern = *flagPattern
	}
	if *flagHTTP != "" {
		cfg.HTTP = *flagHTTP
	}
	if len(flagArgs) != 0 {
		cfg.TargetArgs = flagArgs
	}
	if *flagKillWindows {
		cfg.KillWindows = true
	}
	if *flagCloseMain {
		cfg.CloseMain = true
	}
	if *flagNoGflags {
		cfg.NoGflags = true
	}
	if *flagContinuous {
		cfg.Continuous = true
	}
	if target := flag.Arg(0); target != "" {
		cfg.Target = target
	}
	if cfg.Target == "" {
		usage()
		os.Exit(1)
	}
	if err := triagecfg.Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func registerStats(driver *triage.Driver) {
	start := time.Now()
	stat.New("crash groups", "distinct crash signatures in the output tree",
		stat.Simple, driver.Store().CountStat(), stat.Prometheus("wintriage_crash_groups"))
	stat.New("pending", "inputs of the current pass still awaiting triage",
		stat.Simple, func() int { return len(driver.Pending()) },
		stat.Prometheus("wintriage_pending"))
	stat.New("uptime", "time since the triage session started", stat.Simple,
		func() int { return int(time.Since(start).Seconds()) },
		func(v int, period time.Duration) string {
			return (time.Duration(v) * time.Second).String()
		})
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: wt-triage [flags] target.exe\n\n")
	fmt.Fprintf(os.Stderr, "Replays every file of the input directory under the debugger and files\n")
	fmt.Fprintf(os.Stderr, "it by the crash signature and exploitability that !exploitable assigns.\n\n")
	flag.PrintDefaults()
}
