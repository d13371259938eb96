// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package triage sorts crash inputs into a severity tree.
//
// Each candidate input is replayed under the debugger. Inputs that
// reproduce are grouped by crash signature, each group is rated by the
// worst exploitability of its members and filed under
//
//	<output_dir>/[RegistersChanged/]<severity>/<signature>/
//
// Inputs that do not reproduce go to <output_dir>/UnableToReproduce.
package triage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
	"github.com/wintriage/wintriage/pkg/fileutil"
	"github.com/wintriage/wintriage/pkg/gflags"
	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/report"
	"github.com/wintriage/wintriage/pkg/stat"
	"github.com/wintriage/wintriage/pkg/triagecfg"
)

// SessionRunner replays one crash input under the debugger and returns
// the path of the crash report it produced. An empty path with a nil
// error means the input did not reproduce.
type SessionRunner interface {
	Run(ctx context.Context, input string) (string, error)
}

var (
	statTriaged = stat.New("triaged", "inputs replayed and filed into the output tree",
		stat.Simple, stat.Rate{}, stat.Prometheus("wintriage_triaged_total"))
	statUnreproduced = stat.New("unreproduced", "inputs that yielded no crash report",
		stat.Simple, stat.Prometheus("wintriage_unreproduced_total"))
	statFailed = stat.New("failed", "inputs whose triage ended in an error",
		stat.Simple, stat.Prometheus("wintriage_failed_total"))
	statNewGroups = stat.New("new groups", "crash signatures seen for the first time",
		stat.Simple, stat.Prometheus("wintriage_new_groups_total"))
	statSessionTime = stat.New("session time ms", "duration of one debugger session",
		stat.Distribution{})
)

// Hooks for tests, the gflags binary is absent there.
var (
	gflagsEnable  = gflags.Enable
	gflagsDisable = gflags.Disable
)

// Driver owns one triage run over the input directory.
type Driver struct {
	cfg      *triagecfg.Config
	runner   SessionRunner
	store    *Store
	mover    *fileutil.Mover
	progress io.Writer

	mu      sync.RWMutex
	pending []string
}

func NewDriver(cfg *triagecfg.Config, runner SessionRunner) *Driver {
	return &Driver{
		cfg:      cfg,
		runner:   runner,
		store:    NewStore(cfg.OutputDir),
		mover:    fileutil.NewMover(),
		progress: os.Stderr,
	}
}

// Store exposes the signature group index, the status page reads it.
func (d *Driver) Store() *Store {
	return d.store
}

// Loop triages everything in the input directory. A single pass by
// default, in continuous mode it keeps re-scanning until ctx is
// cancelled. The page heap bracket is closed and the output tree
// pruned of empty directories even when the loop stops early.
func (d *Driver) Loop(ctx context.Context) error {
	if !d.cfg.NoGflags {
		image := d.cfg.TargetImage()
		if err := gflagsEnable(d.cfg.GflagsBin(), image); err != nil {
			log.Logf(0, "failed to enable page heap for %v: %v", image, err)
		} else {
			defer func() {
				if err := gflagsDisable(d.cfg.GflagsBin(), image); err != nil {
					log.Logf(0, "failed to disable page heap for %v: %v", image, err)
				}
			}()
		}
	}
	defer func() {
		if err := fileutil.Prune(d.cfg.OutputDir); err != nil {
			log.Logf(0, "failed to prune the output tree: %v", err)
		}
	}()
	if !d.cfg.Continuous {
		return d.pass(ctx)
	}
	return d.watch(ctx)
}

// watch alternates triage passes with waiting for new inputs. A change
// notification on the input directory re-scans right away, otherwise
// the re-scan happens on a timer.
func (d *Driver) watch(ctx context.Context) error {
	var events chan fsnotify.Event
	var watchErrs chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Logf(0, "filesystem watcher unavailable, relying on timed re-scans: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(d.cfg.InputDir); err != nil {
			log.Logf(0, "failed to watch %v: %v", d.cfg.InputDir, err)
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}
	for {
		if err := d.pass(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			log.Logf(3, "input dir event: %v", ev)
		case err := <-watchErrs:
			log.Logf(0, "input dir watch error: %v", err)
		case <-time.After(d.cfg.RescanInterval()):
		}
	}
}

func (d *Driver) pass(ctx context.Context) error {
	if err := fileutil.BuildPath(d.cfg.OutputDir); err != nil {
		return err
	}
	inputs, err := d.scan()
	if err != nil {
		return err
	}
	d.setPending(inputs)
	defer d.setPending(nil)
	if len(inputs) == 0 {
		log.Logf(2, "no candidate files in %v", d.cfg.InputDir)
		return nil
	}
	log.Logf(1, "triaging %v crash files", len(inputs))
	// The bar draws only in verbose mode, a default run is silent.
	progress := d.progress
	if !log.V(1) {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("triaging"),
		progressbar.OptionShowCount(),
	)
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if every := d.cfg.ReportEvery; every > 0 && i%every == 0 {
			log.Logf(1, "working on file %v of %v (%.2f%%)",
				i+1, len(inputs), float64(i+1)*100/float64(len(inputs)))
		}
		start := time.Now()
		err := d.triageOne(ctx, input)
		statSessionTime.Add(int(time.Since(start).Milliseconds()))
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			// The input stays where it is, a later pass can retry it.
			statFailed.Add(1)
			log.Logf(1, "failed to triage %v: %v", filepath.Base(input), err)
		default:
			statTriaged.Add(1)
		}
		bar.Add(1)
		d.setPending(inputs[i+1:])
	}
	bar.Finish()
	return fileutil.Prune(d.cfg.OutputDir)
}

// scan lists the candidates of one pass. Only regular files directly
// in the input directory qualify, previously filed inputs all live in
// subdirectories of the output tree.
func (d *Driver) scan() ([]string, error) {
	entries, err := os.ReadDir(d.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	var inputs []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if report.IsReportFile(name) || !d.cfg.MatchInput(name) {
			continue
		}
		inputs = append(inputs, filepath.Join(d.cfg.InputDir, name))
	}
	return inputs, nil
}

func (d *Driver) triageOne(ctx context.Context, input string) error {
	reportFile, err := d.runner.Run(ctx, input)
	if err != nil {
		return err
	}
	if reportFile == "" {
		log.Logf(1, "%v: failed to reproduce", filepath.Base(input))
		return d.fileUnreproduced(ctx, input)
	}
	data, err := os.ReadFile(reportFile)
	if err != nil {
		return err
	}
	rep, err := report.Parse(data)
	if err != nil {
		if !errors.Is(err, report.ErrNoSignature) {
			return err
		}
		log.Logf(1, "%v: report carries no crash signature", filepath.Base(input))
		if err := d.mover.Remove(ctx, reportFile); err != nil {
			return err
		}
		return d.fileUnreproduced(ctx, input)
	}
	log.Logf(2, "%v: signature %v, severity %v", filepath.Base(input), rep.Signature, rep.Severity)
	// The report is stored next to its input, named after it.
	stored := input + "-" + report.FileName
	if err := d.mover.Move(ctx, reportFile, stored); err != nil {
		return err
	}
	group, err := d.locateOrCreate(rep.Signature)
	if err != nil {
		return err
	}
	if err := d.mover.Move(ctx, stored, group); err != nil {
		return err
	}
	if err := d.mover.Move(ctx, input, group); err != nil {
		return err
	}
	return d.place(ctx, rep.Signature, group)
}

func (d *Driver) fileUnreproduced(ctx context.Context, input string) error {
	statUnreproduced.Add(1)
	dir := filepath.Join(d.cfg.OutputDir, UnableToReproduceDir)
	if err := fileutil.BuildPath(dir); err != nil {
		return err
	}
	return d.mover.Move(ctx, input, dir)
}

func (d *Driver) locateOrCreate(sig string) (string, error) {
	dir, err := d.store.Locate(sig)
	if err != nil || dir != "" {
		return dir, err
	}
	statNewGroups.Add(1)
	log.Logf(1, "new crash group %v", sig)
	return d.store.Create(sig)
}

// place moves a group to the directory of its current classification.
// Groups whose classification did not change stay where they are.
func (d *Driver) place(ctx context.Context, sig, group string) error {
	class, err := ClassifyGroup(group)
	if err != nil {
		return err
	}
	want := filepath.Join(d.cfg.OutputDir, filepath.Join(class.Elems()...))
	if filepath.Clean(filepath.Dir(group)) == filepath.Clean(want) {
		return nil
	}
	log.Logf(1, "group %v classified as %v", sig, class)
	if err := fileutil.BuildPath(want); err != nil {
		return err
	}
	if err := d.mover.Move(ctx, group, want); err != nil {
		return err
	}
	d.store.Rebase(sig, filepath.Join(want, filepath.Base(group)))
	return nil
}

func (d *Driver) setPending(inputs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = inputs
}

// Pending returns the inputs of the current pass still awaiting triage.
func (d *Driver) Pending() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string{}, d.pending...)
}
