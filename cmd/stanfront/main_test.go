// Package main provides tests for the stanfront command.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/stanfront/internal/cli"
)

func testdataDir(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Join(wd, "..", "..", "testdata")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stanfront v")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "stanfront "+cli.Version)
	assert.Contains(t, out, "commit")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"preprocess", "trace", "stack", "history", "runs", "watch"} {
		assert.Contains(t, out, want)
	}
}

func TestPreprocessTestdata(t *testing.T) {
	dir := testdataDir(t)
	t.Chdir(t.TempDir())

	out, err := execute(t, "-I", filepath.Join(dir, "include"), "preprocess", filepath.Join(dir, "model.stan"))
	require.NoError(t, err)

	want, err := os.ReadFile(filepath.Join(dir, "model.expanded.stan"))
	require.NoError(t, err)
	assert.Equal(t, string(want), out)
}

func TestTraceTestdata(t *testing.T) {
	dir := testdataDir(t)
	t.Chdir(t.TempDir())

	out, err := execute(t, "-I", filepath.Join(dir, "include"), "trace", filepath.Join(dir, "model.stan"), "10")
	require.NoError(t, err)
	assert.Equal(t,
		"in file 'priors.stan' at line 1\n"+
			"included from file '"+filepath.Join(dir, "model.stan")+"' at line 9\n",
		out)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "unknown")
	assert.Error(t, err)
}
