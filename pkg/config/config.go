// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads and saves json config files.
// Lines whose first non-space character is # are treated as comments.
// Unknown fields are rejected to catch misspelled options early.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wintriage/wintriage/pkg/osutil"
)

func LoadFile(filename string, cfg any) error {
	if filename == "" {
		return fmt.Errorf("no config file specified")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %v: %w", filename, err)
	}
	if err := LoadData(data, cfg); err != nil {
		return fmt.Errorf("config file %v: %w", filename, err)
	}
	return nil
}

func LoadData(data []byte, cfg any) error {
	dec := json.NewDecoder(bytes.NewReader(stripComments(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("failed to parse config: trailing data after the top-level object")
	}
	return nil
}

func SaveFile(filename string, cfg any) error {
	data, err := SaveData(cfg)
	if err != nil {
		return err
	}
	return osutil.WriteFile(filename, data)
}

func SaveData(cfg any) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "\t")
}

func stripComments(data []byte) []byte {
	lines := bytes.Split(data, []byte{'\n'})
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte{'#'}) {
			lines[i] = nil
		}
	}
	return bytes.Join(lines, []byte{'\n'})
}
