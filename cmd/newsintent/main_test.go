package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "newsintent dev") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunRejectsBadDates(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "Petrobras", "--from", "05/10/2020"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "--from") {
		t.Fatalf("expected date flag error, got %v", err)
	}
}

func TestHistoryNeedsRange(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"history", "Petrobras"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without --from/--to")
	}
}
