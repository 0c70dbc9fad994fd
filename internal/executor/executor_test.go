package executor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	r := NewCommandRunner(10 * time.Second)
	out, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunMissingBinaryFails(t *testing.T) {
	r := NewCommandRunner(10 * time.Second)
	out, err := r.Run(context.Background(), "hostprobe-no-such-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if out != nil {
		t.Fatalf("expected nil output, got %q", out)
	}
}

func TestRunTimesOut(t *testing.T) {
	r := NewCommandRunner(100 * time.Millisecond)
	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "30")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestNewCommandRunnerDefaultsTimeout(t *testing.T) {
	r := NewCommandRunner(0)
	if r.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %v", r.Timeout)
	}
}

func TestLimitedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: 8}

	n, err := w.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != 10 {
		t.Fatalf("writer must report full length to avoid short writes, got %d", n)
	}
	if buf.String() != "01234567" {
		t.Fatalf("expected truncation at limit, got %q", buf.String())
	}

	// Further writes are swallowed
	if _, err := w.Write([]byte("more")); err != nil {
		t.Fatalf("write past limit failed: %v", err)
	}
	if buf.String() != "01234567" {
		t.Fatalf("data past limit should be discarded, got %q", buf.String())
	}
}
