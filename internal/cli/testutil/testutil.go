// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/leapstack-labs/stanfront/internal/cli/output"
	roottestutil "github.com/leapstack-labs/stanfront/internal/testutil"
)

// SetupTestProject creates a temporary project with a root program, an
// include directory and a stanfront.yaml pointing at it.
//
//	model.stan         4 lines after preprocessing
//	include/b.stan     included from model.stan line 2
//	include/c.stan     included from b.stan line 2
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return roottestutil.WriteTree(t, map[string]string{
		"stanfront.yaml": "search_path:\n  - include\nstate_path: .stanfront/state.db\n",
		"model.stan":     "data {\n#include b.stan\n}\n",
		"include/b.stan": "int N;\n#include c.stan\n",
		"include/c.stan": "real y;\n",
	})
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
