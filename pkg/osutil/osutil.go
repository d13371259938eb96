// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
)

// RunCmd runs "bin args..." in dir with timeout and returns its output.
func RunCmd(timeout time.Duration, dir, bin string, args ...string) ([]byte, error) {
	cmd := Command(bin, args...)
	cmd.Dir = dir
	return Run(timeout, cmd)
}

// Run runs cmd to completion under a hard deadline and returns its
// combined output. A command that outlives the deadline is killed with
// its process group.
func Run(timeout time.Duration, cmd *exec.Cmd) ([]byte, error) {
	output := new(bytes.Buffer)
	if cmd.Stdout == nil {
		cmd.Stdout = output
	}
	if cmd.Stderr == nil {
		cmd.Stderr = output
	}
	setPdeathsig(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v %+v: %w", cmd.Path, cmd.Args, err)
	}
	var timedout atomic.Bool
	deadline := time.AfterFunc(timeout, func() {
		timedout.Store(true)
		killPgroup(cmd)
		cmd.Process.Kill()
	})
	err := cmd.Wait()
	deadline.Stop()
	if err == nil {
		return output.Bytes(), nil
	}
	title := fmt.Sprintf("failed to run %q: %v", cmd.Args, err)
	if timedout.Load() {
		title = fmt.Sprintf("timedout after %v: %q", timeout, cmd.Args)
	}
	verbose := &VerboseError{
		Title:  title,
		Output: output.Bytes(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			verbose.ExitCode = status.ExitStatus()
		}
	}
	return output.Bytes(), verbose
}

// Command creates an exec.Cmd for bin, arranged to die together with
// this process on linux.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	setPdeathsig(cmd)
	return cmd
}

// VerboseError carries the captured output of a failed command next to
// the one line failure title.
type VerboseError struct {
	Title    string
	Output   []byte
	ExitCode int
}

func (err *VerboseError) Error() string {
	if len(err.Output) == 0 {
		return err.Title
	}
	return err.Title + "\n" + string(err.Output)
}

// PrependContext prefixes the error with ctx. A VerboseError keeps its
// captured output intact instead of being flattened into one string.
func PrependContext(ctx string, err error) error {
	var verbose *VerboseError
	if errors.As(err, &verbose) {
		verbose.Title = fmt.Sprintf("%v: %v", ctx, verbose.Title)
		return verbose
	}
	return fmt.Errorf("%v: %w", ctx, err)
}

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsAccessible checks if the file can be opened.
func IsAccessible(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("%v is not accessible: %w", name, err)
	}
	f.Close()
	return nil
}

// CopyFile atomically copies oldFile to newFile preserving permissions and modification time.
func CopyFile(oldFile, newFile string) error {
	oldf, err := os.Open(oldFile)
	if err != nil {
		return err
	}
	defer oldf.Close()
	stat, err := oldf.Stat()
	if err != nil {
		return err
	}
	tmpFile := newFile + ".tmp"
	newf, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode()&os.ModePerm)
	if err != nil {
		return err
	}
	defer newf.Close()
	if _, err := io.Copy(newf, oldf); err != nil {
		return err
	}
	if err := newf.Close(); err != nil {
		return err
	}
	if err := os.Chtimes(tmpFile, stat.ModTime(), stat.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmpFile, newFile)
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

// ListDir returns the names of all entries in dir, sorted.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

var wd string

func init() {
	var err error
	wd, err = os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("failed to get wd: %v", err))
	}
}

// Abs resolves path against the working directory captured at startup.
// Changing the working directory afterwards would silently rebind every
// relative path in the config, so it is a panic.
func Abs(path string) string {
	if cur, err := os.Getwd(); err == nil && cur != wd {
		panic("working directory changed since startup")
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(wd, path)
}
