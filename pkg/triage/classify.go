// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/report"
)

// Well-known directory names of the output tree.
const (
	RegistersChangedDir  = "RegistersChanged"
	UnableToReproduceDir = "UnableToReproduce"
)

// ErrEmptyGroup means a signature group directory holds not a single
// readable crash report. Groups grow report-first, so a drained or
// hand-edited group is the only way to get here.
var ErrEmptyGroup = errors.New("group contains no readable crash reports")

// Class is the classification of one signature group, which maps 1:1
// to its directory under the output root.
type Class struct {
	// RegistersChanged is set when members of the group crashed with
	// differing register states, which hints at attacker control over
	// the crash context.
	RegistersChanged bool
	Severity         report.Severity
}

// Elems returns the directory of the class relative to the output root.
func (c Class) Elems() []string {
	if c.RegistersChanged {
		return []string{RegistersChangedDir, string(c.Severity)}
	}
	return []string{string(c.Severity)}
}

func (c Class) String() string {
	return path.Join(c.Elems()...)
}

// ClassifyGroup rates a signature group by the crash reports stored in
// it. The group severity is the most severe rating of any member,
// registers count as changed when any two members disagree on the
// register fingerprint. Returns ErrEmptyGroup if no member report
// could be read.
func ClassifyGroup(dir string) (Class, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Class{}, err
	}
	var class Class
	fingerprints := make(map[string]bool)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !report.IsReportFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return Class{}, err
		}
		rep, err := report.Parse(data)
		if err != nil {
			log.Logf(2, "%v: skipping unparsable report: %v", entry.Name(), err)
			continue
		}
		if count == 0 {
			class.Severity = rep.Severity
		} else {
			class.Severity = class.Severity.Merge(rep.Severity)
		}
		fingerprints[rep.Fingerprint] = true
		count++
	}
	if count == 0 {
		return Class{}, fmt.Errorf("%v: %w", dir, ErrEmptyGroup)
	}
	class.RegistersChanged = len(fingerprints) > 1
	return class, nil
}
