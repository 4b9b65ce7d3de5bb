package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/sa6mwa/ejreconcile/store"
)

func runCommand(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestConfigShowPrintsSeededDocument(t *testing.T) {
	dir := t.TempDir()
	if _, err := store.Open(store.Config{Folder: dir}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cmd := newConfigCommand()
	out := runCommand(t, cmd, []string{"show", "--db-folder", dir})
	if !strings.Contains(out, `"groups"`) {
		t.Fatalf("expected document JSON, got %q", out)
	}
}

func TestConfigLockStatusReportsUnlocked(t *testing.T) {
	dir := t.TempDir()
	if _, err := store.Open(store.Config{Folder: dir}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cmd := newConfigCommand()
	out := runCommand(t, cmd, []string{"lock", "status", "--db-folder", dir})
	if strings.TrimSpace(out) != "unlocked" {
		t.Fatalf("expected unlocked, got %q", out)
	}
}

func TestConfigLockStatusReportsLocked(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(store.Config{Folder: dir})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := st.Lock("maintenance", 5*time.Minute); err != nil {
		t.Fatalf("lock: %v", err)
	}

	cmd := newConfigCommand()
	out := runCommand(t, cmd, []string{"lock", "status", "--db-folder", dir})
	if !strings.Contains(out, "locked: maintenance") {
		t.Fatalf("expected locked status, got %q", out)
	}
}

func TestConfigValidateAcceptsSeededDocument(t *testing.T) {
	dir := t.TempDir()
	if _, err := store.Open(store.Config{Folder: dir}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cmd := newConfigCommand()
	out := runCommand(t, cmd, []string{"validate", dir + "/userdb.edn"})
	if !strings.Contains(out, "is valid") {
		t.Fatalf("expected validation success, got %q", out)
	}
}
