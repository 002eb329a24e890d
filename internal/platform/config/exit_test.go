package config

import (
	"bytes"
	"testing"
)

func captureExit(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var buf bytes.Buffer
	code := -1
	prevErr, prevExit := stderr, osExit
	stderr = &buf
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr, osExit = prevErr, prevExit
	})
	return &buf, &code
}

func TestExitf_WritesMessageAndExitsWithCode1(t *testing.T) {
	buf, code := captureExit(t)

	Exitf("fatal: %s", "layout missing")

	if *code != 1 {
		t.Fatalf("exit code = %d, want 1", *code)
	}
	if got := buf.String(); got != "fatal: layout missing\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestExitCodef_RaisesNonPositiveCodes(t *testing.T) {
	_, code := captureExit(t)

	ExitCodef(0, "boom")
	if *code != 1 {
		t.Fatalf("exit code = %d, want 1", *code)
	}

	ExitCodef(3, "boom")
	if *code != 3 {
		t.Fatalf("exit code = %d, want 3", *code)
	}
}
