// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package session replays a single crash input under the debugger.
//
// A session copies the input into a scratch location, launches windbg
// against the target with a monitor script that logs an exploitability
// report on crash, babysits the run with a hard deadline and returns the
// path of the produced report, if any. The scratch copy is always
// deleted, even when the run is interrupted.
package session

import (
	"context"
	_ "embed"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/wintriage/wintriage/pkg/fileutil"
	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/osutil"
	"github.com/wintriage/wintriage/pkg/report"
	"github.com/wintriage/wintriage/pkg/triagecfg"
	"github.com/wintriage/wintriage/pkg/winkiller"
)

//go:embed monitor.wds
var monitorScript string

type Runner struct {
	cfg    *triagecfg.Config
	mover  *fileutil.Mover
	script string

	settleDelay time.Duration
	attachDelay time.Duration
	attachPolls int
}

var findProcessID = osutil.FindProcessID

// NewRunner prepares a Runner for the given config. The built-in monitor
// script is materialized into the scratch directory unless the config
// points at a custom one.
func NewRunner(cfg *triagecfg.Config) (*Runner, error) {
	r := &Runner{
		cfg:         cfg,
		mover:       fileutil.NewMover(),
		script:      cfg.MonitorScript,
		settleDelay: time.Second,
		attachDelay: time.Second,
		attachPolls: 3,
	}
	if r.script == "" {
		if err := osutil.MkdirAll(cfg.TestDir); err != nil {
			return nil, err
		}
		r.script = filepath.Join(cfg.TestDir, "monitor.wds")
		if err := osutil.WriteFile(r.script, []byte(monitorScript)); err != nil {
			return nil, fmt.Errorf("failed to write monitor script: %w", err)
		}
	}
	return r, nil
}

// Run replays one crash input and returns the path of the report the
// monitor script produced. An empty path with a nil error means the run
// finished without producing a report, i.e. the crash did not reproduce.
func (r *Runner) Run(ctx context.Context, input string) (string, error) {
	if err := osutil.MkdirAll(r.cfg.TestDir); err != nil {
		return "", err
	}
	// A stale report from an earlier run must not be confused with
	// the output of this one.
	reportFile := filepath.Join(r.cfg.TestDir, report.FileName)
	if err := r.mover.Remove(ctx, reportFile); err != nil {
		return "", err
	}
	// The target gets a private copy so that autosave and sanitize
	// features of the target cannot corrupt the canonical input.
	scratch := r.scratchPath(input)
	if err := osutil.CopyFile(input, scratch); err != nil {
		return "", fmt.Errorf("failed to copy input to scratch: %w", err)
	}
	defer r.removeScratch(ctx, scratch)

	cmd := osutil.Command(r.cfg.WinDbgBin(), r.debuggerArgs(scratch)...)
	cmd.Dir = r.cfg.TestDir
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start debugger: %w", err)
	}
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()
	deadline := time.NewTimer(r.cfg.RunTimeout())
	defer deadline.Stop()

	r.pause(ctx, r.settleDelay)
	var killer *winkiller.Killer
	targetPid := 0
	if r.cfg.KillWindows || r.cfg.CloseMain {
		targetPid = r.awaitTarget(ctx)
		if targetPid != 0 && r.cfg.KillWindows {
			killer = winkiller.Start(targetPid)
		}
	}
	halt := func() {
		if killer != nil {
			killer.HaltAndWait()
		}
	}

	select {
	case err := <-waitDone:
		halt()
		if err != nil {
			// Non-zero exit statuses are routine when the target crashed.
			log.Logf(2, "debugger exited: %v", err)
		}
	case <-deadline.C:
		log.Logf(2, "%v: debugger run timed out", filepath.Base(input))
		halt()
		if r.cfg.CloseMain && targetPid != 0 {
			if err := winkiller.CloseMainWindow(targetPid); err != nil {
				log.Logf(2, "failed to close main window of pid %v: %v", targetPid, err)
			}
		}
		r.kill(cmd)
		<-waitDone
		r.pause(ctx, r.settleDelay)
	case <-ctx.Done():
		halt()
		r.kill(cmd)
		<-waitDone
		return "", ctx.Err()
	}

	if !osutil.IsExist(reportFile) {
		return "", nil
	}
	return reportFile, nil
}

// scratchPath names the private copy of an input. The unique prefix
// avoids collisions with leftovers of crashed runs, the original base
// name is kept so targets that sniff file types by extension still work.
func (r *Runner) scratchPath(input string) string {
	return filepath.Join(r.cfg.TestDir,
		fmt.Sprintf("%v-%v", uuid.New().String(), filepath.Base(input)))
}

func (r *Runner) debuggerArgs(scratch string) []string {
	args := []string{"-Q", "-c", fmt.Sprintf("$$<%v; g;", r.script), "-o", r.cfg.Target}
	args = append(args, r.cfg.TargetArgs...)
	return append(args, scratch)
}

// awaitTarget polls the process list until the target shows up.
// The debugger spawns the target as a child, which can take a moment.
// Returns 0 when the target cannot be found, window handling is then
// skipped for this session.
func (r *Runner) awaitTarget(ctx context.Context) int {
	image := r.cfg.TargetImage()
	for i := 0; i < r.attachPolls; i++ {
		if i != 0 {
			r.pause(ctx, r.attachDelay)
		}
		pid, err := findProcessID(image)
		if err == nil {
			return pid
		}
		log.Logf(3, "target %v not running yet: %v", image, err)
		if ctx.Err() != nil {
			break
		}
	}
	log.Logf(1, "could not find target process %v, window handling disabled", image)
	return 0
}

func (r *Runner) kill(cmd *exec.Cmd) {
	// KillProcess takes the whole tree down on windows, the debugger
	// and the debuggee with it.
	if err := osutil.KillProcess(cmd.Process.Pid); err != nil {
		log.Logf(2, "failed to kill debugger: %v", err)
		cmd.Process.Kill()
	}
}

// removeScratch deletes the scratch copy. Cleanup runs to completion
// even when the session context is already cancelled.
func (r *Runner) removeScratch(ctx context.Context, scratch string) {
	if err := r.mover.Remove(context.WithoutCancel(ctx), scratch); err != nil {
		log.Logf(0, "failed to remove scratch copy %v: %v", scratch, err)
	}
}

func (r *Runner) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
