package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	e := NewShellExecutor("/bin/sh", 5*time.Second)
	res, err := e.Run(context.Background(), "echo hello", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	e := NewShellExecutor("/bin/sh", 5*time.Second)
	res, err := e.Run(context.Background(), "echo bad >&2; exit 3", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "bad") {
		t.Fatalf("stderr not captured: %q", res.Output)
	}
}

func TestRunReadsStdin(t *testing.T) {
	e := NewShellExecutor("/bin/sh", 5*time.Second)
	res, err := e.Run(context.Background(), "cat", "payload")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(res.Output, "payload") {
		t.Fatalf("stdin not wired: %q", res.Output)
	}
}

func TestRunTimeout(t *testing.T) {
	e := NewShellExecutor("/bin/sh", 200*time.Millisecond)
	res, err := e.Run(context.Background(), "sleep 5", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}
	if res.ExitCode == 0 {
		t.Fatal("timed out script should not report success")
	}
}
