// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log is a thin wrapper around the standard log package that adds
// verbosity levels shared across packages and in-memory caching of recent
// output, so that the status page can show the log tail.
package log

import (
	"flag"
	"fmt"
	golog "log"
	"strings"
	"sync"
	"time"
)

var (
	flagV = flag.Int("vv", 0, "verbosity")

	mu          sync.Mutex
	cache       *lineCache
	prependTime = true // for testing
)

// cacheLevel is the maximum verbosity kept in the in-memory cache.
const cacheLevel = 1

// EnableLogCaching starts caching of log output.
// The cache holds up to maxLines lines, but no more than maxMem bytes.
func EnableLogCaching(maxLines, maxMem int) {
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	mu.Lock()
	defer mu.Unlock()
	if cache != nil {
		Fatalf("log caching is already enabled")
	}
	cache = &lineCache{maxLines: maxLines, maxMem: maxMem}
}

// CachedLogOutput returns the currently cached log lines, oldest first.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	if cache == nil {
		return ""
	}
	return cache.output()
}

// SetVerbosity sets the global verbosity level.
// Equivalent to passing the -vv flag.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	*flagV = v
}

// V reports whether logging at the given verbosity level is enabled.
func V(v int) bool {
	mu.Lock()
	defer mu.Unlock()
	return v <= *flagV
}

func Logf(v int, msg string, args ...any) {
	mu.Lock()
	doLog := v <= *flagV
	if cache != nil && v <= cacheLevel {
		line := fmt.Sprintf(msg, args...)
		if prependTime {
			line = time.Now().Format("2006/01/02 15:04:05 ") + line
		}
		cache.add(line)
	}
	mu.Unlock()
	if doLog {
		golog.Printf(msg, args...)
	}
}

func Fatalf(msg string, args ...any) {
	golog.Fatalf(msg, args...)
}

// lineCache keeps the most recent log lines, bounded both by line count
// and by total size. The newest line is always kept even if it alone
// exceeds the size bound.
type lineCache struct {
	lines    []string
	mem      int
	maxLines int
	maxMem   int
}

func (c *lineCache) add(line string) {
	if line == "" {
		return
	}
	c.lines = append(c.lines, line)
	c.mem += len(line)
	for len(c.lines) > 1 && (len(c.lines) > c.maxLines || c.mem > c.maxMem) {
		c.mem -= len(c.lines[0])
		copy(c.lines, c.lines[1:])
		c.lines = c.lines[:len(c.lines)-1]
	}
}

func (c *lineCache) output() string {
	if len(c.lines) == 0 {
		return ""
	}
	return strings.Join(c.lines, "\n") + "\n"
}
