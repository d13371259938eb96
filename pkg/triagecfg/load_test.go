// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triagecfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadData([]byte(`{"target": "parser.exe"}`))
	require.NoError(t, err)
	assert.Equal(t, "parser.exe", cfg.Target)
	assert.Equal(t, "Crashes", filepath.Base(cfg.InputDir))
	assert.Equal(t, cfg.InputDir, cfg.OutputDir)
	assert.Equal(t, "Tests", filepath.Base(cfg.TestDir))
	assert.Equal(t, "windbg.exe", filepath.Base(cfg.WinDbgBin()))
	assert.Equal(t, "gflags.exe", filepath.Base(cfg.GflagsBin()))
	assert.Equal(t, 20*time.Second, cfg.RunTimeout())
	assert.Equal(t, 5*time.Second, cfg.RescanInterval())
	assert.Equal(t, 1, cfg.ReportEvery)
	assert.Equal(t, "parser.exe", cfg.TargetImage())
	assert.False(t, cfg.NoGflags)
	assert.True(t, cfg.MatchInput("anything.bin"))
}

func TestOutputFollowsInput(t *testing.T) {
	cfg, err := LoadData([]byte(`{"target": "parser.exe", "input_dir": "found"}`))
	require.NoError(t, err)
	assert.Equal(t, "found", filepath.Base(cfg.InputDir))
	assert.Equal(t, cfg.InputDir, cfg.OutputDir)
}

func TestLoadFull(t *testing.T) {
	data := []byte(`
# triage run for the image parser
{
	"target": "C:\\targets\\parser.exe",
	"target_args": ["-quiet"],
	"input_dir": "found",
	"output_dir": "triaged",
	"windbg_dir": "C:\\Program Files\\Debugging Tools",
	"test_dir": "scratch",
	"timeout": 45,
	"report_every": 10,
	"kill_windows": true,
	"close_main": true,
	"no_gflags": true,
	"continuous": true,
	"input_pattern": "*.jpg",
	"http": "localhost:50000",
	"rescan_delay": 30
}`)
	cfg, err := LoadData(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"-quiet"}, cfg.TargetArgs)
	assert.Equal(t, 45*time.Second, cfg.RunTimeout())
	assert.Equal(t, 30*time.Second, cfg.RescanInterval())
	assert.True(t, cfg.KillWindows)
	assert.True(t, cfg.CloseMain)
	assert.True(t, cfg.NoGflags)
	assert.True(t, cfg.Continuous)
	assert.True(t, cfg.MatchInput("poc.jpg"))
	assert.False(t, cfg.MatchInput("poc.png"))
	assert.Equal(t, "localhost:50000", cfg.HTTP)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no target", `{}`},
		{"unknown field", `{"target": "a.exe", "no_such_option": 1}`},
		{"bad pattern", `{"target": "a.exe", "input_pattern": "[unterminated"}`},
		{"missing monitor script", `{"target": "a.exe", "monitor_script": "no/such/file.wds"}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadData([]byte(test.data))
			require.Error(t, err)
		})
	}
}

func TestCompleteHandAssembled(t *testing.T) {
	cfg := &Config{Target: "parser.exe", Timeout: -1}
	require.NoError(t, Complete(cfg))
	assert.Equal(t, 20, cfg.Timeout)
	assert.NotEmpty(t, cfg.InputDir)
	assert.True(t, filepath.IsAbs(cfg.InputDir))
}

func TestLoadPartialFile(t *testing.T) {
	// A partial load tolerates a missing target, command line flags may
	// still supply it before Complete runs.
	file := filepath.Join(t.TempDir(), "triage.cfg")
	require.NoError(t, os.WriteFile(file, []byte(`{"timeout": 45}`), 0644))
	cfg, err := LoadPartialFile(file)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Target)
	assert.Equal(t, 45, cfg.Timeout)
	assert.Equal(t, "Crashes", cfg.InputDir)

	cfg.Target = "parser.exe"
	require.NoError(t, Complete(cfg))
	assert.True(t, filepath.IsAbs(cfg.InputDir))
}
