// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package winkiller

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKiller(t *testing.T) {
	orig := closeWindows
	defer func() { closeWindows = orig }()
	var calls atomic.Int64
	var gotPid atomic.Int64
	closeWindows = func(pid int) error {
		gotPid.Store(int64(pid))
		calls.Add(1)
		return nil
	}

	k := start(42, time.Millisecond)
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	k.HaltAndWait()
	assert.Equal(t, int64(42), gotPid.Load())

	// No more sweeps may happen after HaltAndWait returns.
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestHaltIdempotent(t *testing.T) {
	orig := closeWindows
	defer func() { closeWindows = orig }()
	closeWindows = func(pid int) error { return nil }

	k := start(1, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.HaltAndWait()
		}()
	}
	wg.Wait()
	k.HaltAndWait()
}
