package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabricops/fabdeploy/internal/platform"
)

func writeZeroDescriptor(t *testing.T, root, item string) string {
	t.Helper()
	dir := filepath.Join(root, item)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, platform.DescriptorFileName)
	doc := fmt.Sprintf(`{
  "metadata": {"type": "Notebook", "displayName": %q},
  "config": {"version": "2.0", "logicalId": %q}
}`, item, platform.ZeroGUID)
	if err := os.WriteFile(path, []byte(doc), 0640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFixIDsCommandSucceedsAfterRepair(t *testing.T) {
	// Repairing flagged descriptors is the command doing its job; only
	// files that could not be rewritten should make it exit non-zero.
	root := t.TempDir()
	path := writeZeroDescriptor(t, root, "Ingest.Notebook")

	jsonOutput = false
	fixIDsDryRun = false
	defer func() { fixIDsDryRun = false }()

	if err := fixIDsCmd.RunE(fixIDsCmd, []string{root}); err != nil {
		t.Fatalf("fix-ids returned error after a fully successful repair: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), platform.ZeroGUID) {
		t.Errorf("descriptor still carries the placeholder GUID:\n%s", data)
	}
}

func TestFixIDsCommandDryRunSucceeds(t *testing.T) {
	root := t.TempDir()
	writeZeroDescriptor(t, root, "Orders.Notebook")

	jsonOutput = false
	fixIDsDryRun = true
	defer func() { fixIDsDryRun = false }()

	if err := fixIDsCmd.RunE(fixIDsCmd, []string{root}); err != nil {
		t.Fatalf("fix-ids --dry-run returned error: %v", err)
	}
}

func TestFixIDsCommandMissingRoot(t *testing.T) {
	jsonOutput = false
	fixIDsDryRun = false

	err := fixIDsCmd.RunE(fixIDsCmd, []string{filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
