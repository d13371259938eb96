// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package winkiller dismisses windows that a crashing target pops up.
// Error dialogs, "report this problem" prompts and similar modal windows
// block the target from exiting and wedge an unattended run, so a Killer
// periodically posts a close request to every window the process owns.
package winkiller

import (
	"sync"
	"time"

	"github.com/wintriage/wintriage/pkg/log"
)

const defaultInterval = time.Second

// Killer closes windows of a single process in a background goroutine
// until HaltAndWait is called.
type Killer struct {
	pid      int
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	haltOnce sync.Once
}

var closeWindows = closeProcessWindows

// Start launches a Killer for the given process.
func Start(pid int) *Killer {
	return start(pid, defaultInterval)
}

func start(pid int, interval time.Duration) *Killer {
	k := &Killer{
		pid:      pid,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go k.loop()
	return k
}

// HaltAndWait stops the Killer and blocks until its goroutine has exited,
// so no close request can race with a subsequent process kill.
// Safe to call multiple times and from multiple goroutines.
func (k *Killer) HaltAndWait() {
	k.haltOnce.Do(func() { close(k.done) })
	<-k.stopped
}

func (k *Killer) loop() {
	defer close(k.stopped)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-k.done:
			return
		case <-ticker.C:
			if err := closeWindows(k.pid); err != nil {
				log.Logf(2, "window killer: pid %v: %v", k.pid, err)
			}
		}
	}
}
