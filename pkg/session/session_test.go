// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wintriage/wintriage/pkg/osutil"
	"github.com/wintriage/wintriage/pkg/report"
	"github.com/wintriage/wintriage/pkg/triagecfg"
)

// newTestRunner builds a Runner whose windbg.exe is a shell script,
// which lets the whole session flow run on any unix CI box.
func newTestRunner(t *testing.T, debugger string, mut func(cfg *triagecfg.Config)) (*Runner, *triagecfg.Config) {
	if os.PathSeparator == '\\' {
		t.Skip("fake shell debugger does not run on windows")
	}
	dir := t.TempDir()
	cfg := &triagecfg.Config{
		Target:    "/bin/true",
		InputDir:  filepath.Join(dir, "crashes"),
		OutputDir: filepath.Join(dir, "crashes"),
		WinDbgDir: filepath.Join(dir, "windbg"),
		TestDir:   filepath.Join(dir, "tests"),
		Timeout:   10,
	}
	if mut != nil {
		mut(cfg)
	}
	require.NoError(t, osutil.MkdirAll(cfg.WinDbgDir))
	script := "#!/bin/sh\n" + debugger + "\n"
	require.NoError(t, os.WriteFile(cfg.WinDbgBin(), []byte(script), 0755))
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	r.settleDelay = time.Millisecond
	r.attachDelay = time.Millisecond
	return r, cfg
}

func testInput(t *testing.T, cfg *triagecfg.Config) string {
	require.NoError(t, osutil.MkdirAll(cfg.InputDir))
	input := filepath.Join(cfg.InputDir, "crash1.jpg")
	require.NoError(t, osutil.WriteFile(input, []byte("input-bytes")))
	return input
}

// leftovers returns scratch files remaining in the test dir after a run.
func leftovers(t *testing.T, cfg *triagecfg.Config) []string {
	files, err := osutil.ListDir(cfg.TestDir)
	require.NoError(t, err)
	var left []string
	for _, f := range files {
		if f == "monitor.wds" || f == report.FileName {
			continue
		}
		left = append(left, f)
	}
	return left
}

func TestMonitorScript(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", nil)
	assert.Equal(t, filepath.Join(cfg.TestDir, "monitor.wds"), r.script)
	data, err := os.ReadFile(r.script)
	require.NoError(t, err)
	assert.Contains(t, string(data), report.FileName)
	assert.Contains(t, string(data), "!exploitable")
}

func TestCustomMonitorScript(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "my.wds")
	require.NoError(t, osutil.WriteFile(custom, []byte("q;")))
	r, _ := newTestRunner(t, "exit 0", func(cfg *triagecfg.Config) {
		cfg.MonitorScript = custom
	})
	assert.Equal(t, custom, r.script)
}

func TestDebuggerArgs(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", func(cfg *triagecfg.Config) {
		cfg.Target = `C:\fuzz\parser.exe`
		cfg.TargetArgs = []string{"-render", "-quiet"}
	})
	args := r.debuggerArgs("scratch.jpg")
	want := []string{
		"-Q",
		"-c", fmt.Sprintf("$$<%v; g;", r.script),
		"-o", cfg.Target,
		"-render", "-quiet",
		"scratch.jpg",
	}
	assert.Equal(t, want, args)
}

func TestRunProducesReport(t *testing.T) {
	r, cfg := newTestRunner(t, "echo triage-report > crash_details.txt", nil)
	got, err := r.Run(context.Background(), testInput(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.TestDir, report.FileName), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "triage-report\n", string(data))
	assert.Empty(t, leftovers(t, cfg))
}

func TestRunNoReport(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", nil)
	got, err := r.Run(context.Background(), testInput(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Empty(t, leftovers(t, cfg))
}

func TestRunStaleReportRemoved(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", nil)
	require.NoError(t, osutil.MkdirAll(cfg.TestDir))
	stale := filepath.Join(cfg.TestDir, report.FileName)
	require.NoError(t, osutil.WriteFile(stale, []byte("stale")))
	got, err := r.Run(context.Background(), testInput(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.False(t, osutil.IsExist(stale))
}

func TestRunTimeout(t *testing.T) {
	r, cfg := newTestRunner(t, "sleep 30", func(cfg *triagecfg.Config) {
		cfg.Timeout = 1
	})
	start := time.Now()
	got, err := r.Run(context.Background(), testInput(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Empty(t, leftovers(t, cfg))
}

func TestRunInterrupted(t *testing.T) {
	r, cfg := newTestRunner(t, "sleep 30", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, testInput(t, cfg))
	assert.ErrorIs(t, err, context.Canceled)
	// The scratch copy must be cleaned up even on interruption.
	assert.Empty(t, leftovers(t, cfg))
}

func TestRunMissingInput(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", nil)
	_, err := r.Run(context.Background(), filepath.Join(cfg.InputDir, "nonexistent.jpg"))
	assert.Error(t, err)
}

func TestRunKillWindows(t *testing.T) {
	orig := findProcessID
	defer func() { findProcessID = orig }()
	calls := 0
	findProcessID = func(image string) (int, error) {
		calls++
		if calls == 1 {
			return 0, fmt.Errorf("%v not found", image)
		}
		return os.Getpid(), nil
	}
	r, cfg := newTestRunner(t, "echo x > crash_details.txt", func(cfg *triagecfg.Config) {
		cfg.KillWindows = true
		cfg.CloseMain = true
	})
	got, err := r.Run(context.Background(), testInput(t, cfg))
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestAwaitTargetGivesUp(t *testing.T) {
	orig := findProcessID
	defer func() { findProcessID = orig }()
	calls := 0
	findProcessID = func(image string) (int, error) {
		calls++
		return 0, fmt.Errorf("no such process")
	}
	r, _ := newTestRunner(t, "exit 0", nil)
	pid := r.awaitTarget(context.Background())
	assert.Equal(t, 0, pid)
	assert.Equal(t, r.attachPolls, calls)
}

func TestScratchPath(t *testing.T) {
	r, cfg := newTestRunner(t, "exit 0", nil)
	first := r.scratchPath(filepath.Join(cfg.InputDir, "crash1.jpg"))
	second := r.scratchPath(filepath.Join(cfg.InputDir, "crash1.jpg"))
	assert.Equal(t, cfg.TestDir, filepath.Dir(first))
	assert.True(t, strings.HasSuffix(first, "-crash1.jpg"), first)
	assert.NotEqual(t, first, second)
}
