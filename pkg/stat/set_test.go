// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	a := assert.New(t)
	set := newSet(false)
	a.Empty(set.Collect(All))

	v0 := set.New("v0", "desc0")
	a.Equal(v0.Val(), 0)
	v0.Add(1)
	a.Equal(v0.Val(), 1)
	v0.Add(1)
	a.Equal(v0.Val(), 2)

	vv1 := 0
	v1 := set.New("v1", "desc1", Simple, func() int { return vv1 })
	a.Equal(v1.Val(), 0)
	vv1 = 11
	a.Equal(v1.Val(), 11)
	a.Panics(func() { v1.Add(1) })

	v2 := set.New("v2", "desc2", Simple, func(v int, period time.Duration) string {
		return fmt.Sprintf("v2 %v %v", v, period)
	})
	v2.Add(100)

	v3 := set.New("v3", "desc3", Link("/v3"), Distribution{})
	a.Equal(v3.Val(), 0)
	v3.Add(10)
	a.Equal(v3.Val(), 10)
	v3.Add(20)
	a.Equal(v3.Val(), 15)

	v4 := set.New("v4", "desc4", Rate{})
	v4.Add(10)
	a.Equal(v4.Val(), 10)

	collected := set.Collect(All)
	a.Len(collected, 5)
	// Higher levels sort first, names break the ties.
	a.Equal("v1", collected[0].Name)
	a.Equal("v2", collected[1].Name)
	a.Equal("v0", collected[2].Name)
	for _, ui := range collected {
		switch ui.Name {
		case "v2":
			a.Equal("v2 100 1s", ui.Value)
		case "v3":
			a.Equal("/v3", ui.Link)
			a.Equal("15 avg, 10 p50, 20 p90", ui.Value)
		}
	}
	a.Len(set.Collect(Simple), 2)
}

func TestLenOf(t *testing.T) {
	var (
		mu      sync.RWMutex
		pending []string
	)
	set := newSet(false)
	v := set.New("pending", "inputs awaiting triage", LenOf(&pending, &mu))
	assert.Equal(t, 0, v.Val())
	mu.Lock()
	pending = append(pending, "crash1", "crash2")
	mu.Unlock()
	assert.Equal(t, 2, v.Val())
}
