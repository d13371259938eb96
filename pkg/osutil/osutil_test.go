// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix utilities")
	}
	output, err := RunCmd(time.Minute, "", "echo", "-n", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(output))
}

func TestRunFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix utilities")
	}
	_, err := RunCmd(time.Minute, "", "false")
	require.Error(t, err)
	var verbose *VerboseError
	require.ErrorAs(t, err, &verbose)
	assert.Equal(t, 1, verbose.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix utilities")
	}
	start := time.Now()
	_, err := RunCmd(100*time.Millisecond, "", "sleep", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timedout")
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	data := []byte("crash input data")
	require.NoError(t, os.WriteFile(src, data, DefaultFilePerm))
	require.NoError(t, CopyFile(src, dst))
	copied, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, copied)
	// The source must stay intact.
	orig, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, data, orig)
}

func TestIsExist(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, IsExist(dir))
	assert.False(t, IsExist(filepath.Join(dir, "nonexistent")))
	file := filepath.Join(dir, "file")
	require.NoError(t, WriteFile(file, nil))
	assert.True(t, IsExist(file))
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, WriteFile(filepath.Join(dir, name), nil))
	}
	files, err := ListDir(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, files)
}

func TestAbs(t *testing.T) {
	assert.Equal(t, "", Abs(""))
	abs := string(os.PathSeparator) + filepath.Join("some", "abs", "path")
	assert.Equal(t, abs, Abs(abs))
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "rel"), Abs("rel"))
}
