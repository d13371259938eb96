// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triagecfg

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/wintriage/wintriage/pkg/config"
	"github.com/wintriage/wintriage/pkg/osutil"
)

func LoadData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPartialFile reads a config file without completing or validating
// it. Callers apply their own overrides and then run Complete.
func LoadPartialFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultValues() *Config {
	// OutputDir has no fixed default, Complete points it at InputDir.
	return &Config{
		InputDir:    "Crashes",
		WinDbgDir:   "WinDbg",
		TestDir:     "Tests",
		Timeout:     20,
		ReportEvery: 1,
		RescanDelay: 5,
	}
}

// Complete fills in defaults for unset fields and validates the config.
// Configs assembled by hand (not via LoadData/LoadFile) must be passed
// through Complete before use.
func Complete(cfg *Config) error {
	if cfg.Target == "" {
		return fmt.Errorf("config param target is empty")
	}
	def := defaultValues()
	if cfg.InputDir == "" {
		cfg.InputDir = def.InputDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.InputDir
	}
	if cfg.WinDbgDir == "" {
		cfg.WinDbgDir = def.WinDbgDir
	}
	if cfg.TestDir == "" {
		cfg.TestDir = def.TestDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = def.ReportEvery
	}
	if cfg.RescanDelay <= 0 {
		cfg.RescanDelay = def.RescanDelay
	}
	cfg.InputDir = osutil.Abs(cfg.InputDir)
	cfg.OutputDir = osutil.Abs(cfg.OutputDir)
	cfg.WinDbgDir = osutil.Abs(cfg.WinDbgDir)
	cfg.TestDir = osutil.Abs(cfg.TestDir)
	if cfg.MonitorScript != "" {
		cfg.MonitorScript = osutil.Abs(cfg.MonitorScript)
		if err := osutil.IsAccessible(cfg.MonitorScript); err != nil {
			return fmt.Errorf("monitor_script: %w", err)
		}
	}
	if cfg.InputPattern != "" {
		match, err := glob.Compile(cfg.InputPattern)
		if err != nil {
			return fmt.Errorf("bad input_pattern %q: %w", cfg.InputPattern, err)
		}
		cfg.inputMatch = match
	}
	return nil
}
