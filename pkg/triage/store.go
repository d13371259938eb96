// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wintriage/wintriage/pkg/fileutil"
	"github.com/wintriage/wintriage/pkg/stat"
)

// Store tracks the signature groups of the output tree. The tree on
// disk is authoritative, groups move around as their classification
// changes, the in-memory index is only a shortcut into it.
type Store struct {
	root string

	mu     sync.RWMutex
	groups map[string]string
}

func NewStore(root string) *Store {
	return &Store{
		root:   root,
		groups: make(map[string]string),
	}
}

// Locate returns the directory of the given signature group, or an
// empty path when the signature has no group yet.
func (st *Store) Locate(sig string) (string, error) {
	st.mu.RLock()
	dir := st.groups[sig]
	st.mu.RUnlock()
	if dir != "" && isDir(dir) {
		return dir, nil
	}
	dir, err := st.find(sig)
	if err != nil || dir == "" {
		return "", err
	}
	st.remember(sig, dir)
	return dir, nil
}

// Create starts a new group at the root of the output tree.
// Classification moves it into its severity directory afterwards.
func (st *Store) Create(sig string) (string, error) {
	dir := filepath.Join(st.root, sig)
	if err := fileutil.BuildPath(dir); err != nil {
		return "", err
	}
	st.remember(sig, dir)
	return dir, nil
}

// Rebase records the new directory of a group after it moved.
func (st *Store) Rebase(sig, dir string) {
	st.remember(sig, dir)
}

// Groups returns a snapshot of all known groups by signature.
func (st *Store) Groups() map[string]string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	groups := make(map[string]string, len(st.groups))
	for sig, dir := range st.groups {
		groups[sig] = dir
	}
	return groups
}

// CountStat reads the number of known groups, in the form the stat
// registry accepts.
func (st *Store) CountStat() func() int {
	return stat.LenOf(&st.groups, &st.mu)
}

func (st *Store) remember(sig, dir string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.groups[sig] = dir
}

// find walks the output tree for a directory named after the signature.
func (st *Store) find(sig string) (string, error) {
	found := ""
	err := filepath.WalkDir(st.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == st.root {
			return nil
		}
		if d.Name() == sig {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if os.IsNotExist(err) {
		// The output tree is created lazily, no tree means no groups.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return found, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
