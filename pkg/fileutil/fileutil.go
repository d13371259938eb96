// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fileutil relocates triage artifacts on disk without ever
// overwriting existing data.
package fileutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wintriage/wintriage/pkg/osutil"
)

// Mover moves and deletes files and directories. Name collisions are
// resolved by renaming the incoming file, never by overwriting.
// Transiently locked targets are retried until the operation succeeds
// or ctx is cancelled.
type Mover struct {
	RetryDelay time.Duration
}

func NewMover() *Mover {
	return &Mover{
		RetryDelay: 3 * time.Second,
	}
}

// Move places source into destination. If destination is an existing
// directory, source is placed inside it under its own base name.
// A source directory is moved child by child, so moving onto an
// existing directory merges the two. If the effective target name is
// taken, a _(<n>) disambiguator is inserted before the extension.
// Moving a path onto itself is a no-op.
func (m *Mover) Move(ctx context.Context, source, destination string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat move source: %w", err)
	}
	dst := target(source, destination)
	if filepath.Clean(dst) == filepath.Clean(source) {
		return nil
	}
	if info.IsDir() {
		return m.moveDir(ctx, source, dst)
	}
	return m.moveFile(ctx, source, dst)
}

// Remove deletes path and everything below it, retrying while the
// files are transiently locked. Missing path is not an error.
func (m *Mover) Remove(ctx context.Context, path string) error {
	for {
		if err := os.RemoveAll(path); err == nil {
			return nil
		}
		if err := m.pause(ctx); err != nil {
			return err
		}
	}
}

func (m *Mover) moveDir(ctx context.Context, source, dst string) error {
	if osutil.IsExist(dst) && !isDir(dst) {
		dst = nextFreeName(dst)
	}
	if err := BuildPath(dst); err != nil {
		return err
	}
	children, err := osutil.ListDir(source)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := m.Move(ctx, filepath.Join(source, child), dst); err != nil {
			return err
		}
	}
	// The source directory is empty now, take it away as well.
	for {
		if err := os.Remove(source); err == nil {
			return nil
		}
		if err := m.pause(ctx); err != nil {
			return err
		}
	}
}

func (m *Mover) moveFile(ctx context.Context, source, dst string) error {
	dst = nextFreeName(dst)
	for {
		err := moveFileOnce(source, dst)
		if err == nil {
			return nil
		}
		if !osutil.IsExist(source) {
			return fmt.Errorf("move source %v disappeared: %w", source, err)
		}
		if err := m.pause(ctx); err != nil {
			return err
		}
	}
}

func moveFileOnce(source, dst string) error {
	if err := os.Rename(source, dst); err == nil {
		return nil
	}
	// Rename does not work across volumes, fall back to copy+delete.
	if err := osutil.CopyFile(source, dst); err != nil {
		return err
	}
	return os.Remove(source)
}

func (m *Mover) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.RetryDelay):
		return nil
	}
}

// BuildPath materializes every missing directory on path.
// Idempotent when the path already exists.
func BuildPath(path string) error {
	return osutil.MkdirAll(path)
}

// Prune removes directories under root that are left empty, children
// before parents. The root itself is never removed.
func Prune(root string) error {
	children, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		if err := pruneDir(filepath.Join(root, child.Name())); err != nil {
			return err
		}
	}
	return nil
}

func pruneDir(dir string) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		if err := pruneDir(filepath.Join(dir, child.Name())); err != nil {
			return err
		}
	}
	// Re-read after pruning children, the directory may have emptied.
	children, err = os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return os.Remove(dir)
	}
	return nil
}

// target resolves the effective target path of moving source into
// destination.
func target(source, destination string) string {
	if isDir(destination) {
		return filepath.Join(destination, filepath.Base(source))
	}
	return destination
}

// nextFreeName returns path if nothing exists there, otherwise the
// first free variant with a _(<n>) disambiguator before the extension
// (crash.txt, crash_(1).txt, crash_(2).txt, ...).
func nextFreeName(path string) string {
	if !osutil.IsExist(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		variant := fmt.Sprintf("%v_(%v)%v", stem, n, ext)
		if !osutil.IsExist(variant) {
			return variant
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
