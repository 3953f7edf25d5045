package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCommand executes a Cobra command with the given args and returns output.
// Flags of every command are reset first since they live in package variables.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// run executes the CLI with the test audit log and fails the test on error.
func (tc *testContext) run(args ...string) string {
	tc.t.Helper()
	out, err := executeCommand(rootCmd, append([]string{"--audit-log", tc.path("audit.jsonl")}, args...)...)
	if err != nil {
		tc.t.Fatalf("hermod %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// runErr executes the CLI and expects an error.
func (tc *testContext) runErr(args ...string) (string, error) {
	tc.t.Helper()
	out, err := executeCommand(rootCmd, append([]string{"--audit-log", tc.path("audit.jsonl")}, args...)...)
	if err == nil {
		tc.t.Fatalf("hermod %s: expected an error\n%s", strings.Join(args, " "), out)
	}
	return out, err
}

// initCA creates a P-256 root and an ML-DSA-44 issuing CA and returns the
// issuing certificate and key paths.
func (tc *testContext) initCA() (string, string) {
	tc.t.Helper()
	tc.run("ca", "init", "--cn", "Test Root", "--algorithm", "ecdsa-p256",
		"--cert", tc.path("root.crt"), "--key", tc.path("root.key"))
	tc.run("ca", "issue-intermediate", "--ca-cert", tc.path("root.crt"), "--ca-key", tc.path("root.key"),
		"--cn", "Test Issuing", "--algorithm", "ml-dsa-44",
		"--cert", tc.path("issuing.crt"), "--key", tc.path("issuing.key"))
	return tc.path("issuing.crt"), tc.path("issuing.key")
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain %q:\n%s", want, out)
	}
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s: %v", path, err)
	}
}
