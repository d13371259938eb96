// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package triagecfg holds the configuration of one triage run.
package triagecfg

import (
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
)

type Config struct {
	// Path of the target executable that is replayed on each crash input.
	Target string `json:"target"`
	// Extra arguments passed to the target before the input path.
	TargetArgs []string `json:"target_args,omitempty"`
	// Directory scanned for candidate crash inputs ("Crashes" by default).
	InputDir string `json:"input_dir"`
	// Root of the triaged output tree. Groups are filed under
	// - <output_dir>/[RegistersChanged/]<severity>/<signature>/
	// - <output_dir>/UnableToReproduce/
	// Same as input_dir by default.
	OutputDir string `json:"output_dir"`
	// Directory of the debugger installation, windbg.exe and gflags.exe
	// are expected inside ("WinDbg" by default).
	WinDbgDir string `json:"windbg_dir"`
	// Scratch directory for the per-session input copies ("Tests" by default).
	// The copy shields the canonical input from autosave and sanitize
	// features of the target. Always deleted after the session.
	TestDir string `json:"test_dir"`
	// Path of a debugger script to run instead of the built-in monitor
	// script. The script must log its output to crash_details.txt.
	MonitorScript string `json:"monitor_script,omitempty"`
	// Hard per-input deadline for the debugger run, in seconds (20 by default).
	Timeout int `json:"timeout"`
	// Log a progress line after every N triaged inputs (1 by default).
	ReportEvery int `json:"report_every"`
	// Run a window killer that closes dialog boxes the target pops up
	// during replay. Scoped to the target's pid.
	KillWindows bool `json:"kill_windows,omitempty"`
	// Ask the target's main window to close before force termination,
	// to trigger its normal shutdown paths.
	CloseMain bool `json:"close_main,omitempty"`
	// Do not toggle the debug page heap around the triage pass.
	NoGflags bool `json:"no_gflags,omitempty"`
	// Keep re-scanning input_dir forever instead of doing one pass.
	// Useful when a fuzzer keeps producing crashes in parallel.
	Continuous bool `json:"continuous,omitempty"`
	// Glob filter for candidate file names, e.g. "*.jpg".
	// All files are candidates when empty.
	InputPattern string `json:"input_pattern,omitempty"`
	// Address for the HTTP status page, e.g. "localhost:50000".
	// The page is disabled when empty.
	HTTP string `json:"http,omitempty"`
	// Seconds between input_dir re-scans in continuous mode when no
	// filesystem notifications arrive (5 by default).
	RescanDelay int `json:"rescan_delay,omitempty"`

	inputMatch glob.Glob
}

// WinDbgBin returns the path of the debugger executable.
func (cfg *Config) WinDbgBin() string {
	return filepath.Join(cfg.WinDbgDir, "windbg.exe")
}

// GflagsBin returns the path of the debug heap toggle executable.
func (cfg *Config) GflagsBin() string {
	return filepath.Join(cfg.WinDbgDir, "gflags.exe")
}

// TargetImage returns the image name of the target process,
// the form gflags and process enumeration identify it by.
func (cfg *Config) TargetImage() string {
	return filepath.Base(cfg.Target)
}

func (cfg *Config) RunTimeout() time.Duration {
	return time.Duration(cfg.Timeout) * time.Second
}

func (cfg *Config) RescanInterval() time.Duration {
	return time.Duration(cfg.RescanDelay) * time.Second
}

// MatchInput reports whether a file name passes the input_pattern
// filter.
func (cfg *Config) MatchInput(name string) bool {
	if cfg.inputMatch == nil {
		return true
	}
	return cfg.inputMatch.Match(name)
}
