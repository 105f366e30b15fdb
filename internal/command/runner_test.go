package command

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
)

// TestExecRunnerMissingBinary checks not-found detection for absent tools.
func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{}
	res, err := r.Run(context.Background(), "definitely-not-a-real-binary-7f3a")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
}

// TestExecRunnerMissingAbsolutePath checks explicit tool paths that do not exist.
func TestExecRunnerMissingAbsolutePath(t *testing.T) {
	r := &ExecRunner{}
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "no-such-ffmpeg"), "-version")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
}

// TestIsNotFoundPathError verifies only missing-file path errors count.
func TestIsNotFoundPathError(t *testing.T) {
	missing := &fs.PathError{Op: "fork/exec", Path: "/opt/ffmpeg", Err: syscall.ENOENT}
	if !IsNotFound(fmt.Errorf("run: %w", missing)) {
		t.Fatal("ENOENT path error not detected")
	}
	denied := &fs.PathError{Op: "fork/exec", Path: "/opt/ffmpeg", Err: syscall.EACCES}
	if IsNotFound(denied) {
		t.Fatal("permission error reported as not found")
	}
}

// TestIsNotFoundWrapped verifies detection through error wrapping.
func TestIsNotFoundWrapped(t *testing.T) {
	if !IsNotFound(fmt.Errorf("run: %w", exec.ErrNotFound)) {
		t.Fatal("wrapped ErrNotFound not detected")
	}
	if IsNotFound(errors.New("exit status 1")) {
		t.Fatal("plain error reported as not found")
	}
}

// TestNewLog verifies result fields are copied into the log entry.
func TestNewLog(t *testing.T) {
	log := NewLog("ffmpeg", []string{"-i", "a"}, Result{Stdout: "o", Stderr: "e", ExitCode: 3})
	if log.Command != "ffmpeg" || log.ExitCode != 3 || log.Stderr != "e" || len(log.Args) != 2 {
		t.Fatalf("log = %+v", log)
	}
}
