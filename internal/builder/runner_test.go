package builder

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecRunnerExitCodes(t *testing.T) {
	requireUnix(t)

	tests := []struct {
		name    string
		cmd     Command
		want    int
		success bool
	}{
		{"zero", Command{"sh", "-c", "exit 0"}, 0, true},
		{"non-zero", Command{"sh", "-c", "exit 3"}, 3, false},
		{"not found", Command{"./definitely/not/here"}, exitNotStarted, false},
		{"empty", Command{}, exitNotStarted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExecRunner{}.Run(context.Background(), t.TempDir(), tt.cmd)
			if res.ExitCode != tt.want || res.Success() != tt.success {
				t.Fatalf("got %+v, want code %d success %v", res, tt.want, tt.success)
			}
		})
	}
}

func TestExecRunnerStreamsAndDir(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	r := ExecRunner{Stdin: strings.NewReader("ping"), Stdout: &stdout, Stderr: &stderr}
	res := r.Run(context.Background(), dir, Command{"sh", "-c", "cat; pwd; echo oops >&2"})
	if !res.Success() {
		t.Fatalf("run failed: %v", res)
	}

	wantDir, _ := filepath.EvalSymlinks(dir)
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "ping") {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if gotDir, _ := filepath.EvalSymlinks(strings.TrimPrefix(lines[0], "ping")); gotDir != wantDir {
		t.Errorf("ran in %q, want %q", gotDir, wantDir)
	}
	if stderr.String() != "oops\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestExecRunnerRelativeBinary(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "build", "test")
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	res := ExecRunner{}.Run(context.Background(), dir, DefaultConfig().RunCommand(nil))
	if res.ExitCode != 5 {
		t.Fatalf("got %+v, want exit code 5", res)
	}
}

func requireGCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found")
	}
}

func writeProject(t *testing.T, mainC string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"tests/main.c":     mainC,
		"include/answer.h": "#define ANSWER 42\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func quietBuilder(t *testing.T, dir string, cfg *Config) *Builder {
	t.Helper()
	var sink bytes.Buffer
	b, err := NewBuilderInDirectory(dir, cfg, ExecRunner{Stdout: &sink, Stderr: &sink})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("child output:\n%s", sink.String())
		}
	})
	return b
}

func TestCompileAndRunCleanProgram(t *testing.T) {
	requireUnix(t)
	requireGCC(t)

	dir := writeProject(t, `#include <stdio.h>
#include "answer.h"

int main(void) {
    printf("%d\n", ANSWER);
    return 0;
}
`)
	b := quietBuilder(t, dir, DefaultConfig())

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != Success {
		t.Fatalf("outcome = %v (compile %v, run %v)", report.Outcome, report.Compile, report.Run)
	}

	st, err := os.Stat(filepath.Join(dir, "build", "test"))
	if err != nil {
		t.Fatalf("build/test missing: %v", err)
	}
	if st.Mode()&0o111 == 0 {
		t.Fatalf("build/test is not executable: %v", st.Mode())
	}

	// second run must not trip over the existing build/
	if report, err := b.Run(context.Background()); err != nil || report.Outcome != Success {
		t.Fatalf("second run: %v %v", report.Outcome, err)
	}
}

// An unused variable is only a warning, -Werror turns it into a failed compile.
// The default policy still tries to execute ./build/test afterwards.
const warningProgram = `int main(void) {
    int unused = 1;
    return 0;
}
`

func TestWarningFailsCompileButStillRuns(t *testing.T) {
	requireUnix(t)
	requireGCC(t)

	dir := writeProject(t, warningProgram)
	b := quietBuilder(t, dir, DefaultConfig())

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != CompileFailed {
		t.Fatalf("outcome = %v, want %v", report.Outcome, CompileFailed)
	}
	if !report.Ran {
		t.Fatal("run phase should have been attempted")
	}
	if report.Run.Success() {
		t.Fatal("there is no binary, running it can't succeed")
	}
	if code := report.ExitCode(PropagateExit); code == 0 {
		t.Fatal("propagated exit code should be non-zero")
	}
	if code := report.ExitCode(IgnoreExit); code != 0 {
		t.Fatalf("ignored exit code = %d", code)
	}
}

func TestWarningFailsCompileAndStops(t *testing.T) {
	requireUnix(t)
	requireGCC(t)

	dir := writeProject(t, warningProgram)
	cfg := DefaultConfig()
	cfg.Policy.OnCompileFailure = StopOnFailure
	b := quietBuilder(t, dir, cfg)

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != CompileFailed || report.Ran {
		t.Fatalf("got %+v, want a compile failure without a run", report)
	}
}
