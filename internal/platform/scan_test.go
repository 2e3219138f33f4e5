package platform

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// writeDescriptor creates an item directory with a .platform file carrying
// the given logicalId. Returns the descriptor path.
func writeDescriptor(t *testing.T, root, item, logicalID string) string {
	t.Helper()

	dir := filepath.Join(root, item)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}

	doc := map[string]any{
		"$schema": "https://developer.microsoft.com/json-schemas/fabric/gitIntegration/platformProperties/2.0.0/schema.json",
		"config": map[string]any{
			"version":   "2.0",
			"logicalId": logicalID,
		},
		"metadata": map[string]any{
			"type":        "Notebook",
			"displayName": item,
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, DescriptorFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func checksum(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return sha256.Sum256(data)
}

func TestScanFlagsZeroGUID(t *testing.T) {
	root := t.TempDir()
	zero := writeDescriptor(t, root, "Ingest.Notebook", ZeroGUID)
	writeDescriptor(t, root, "Refined.Lakehouse", "1c7e9a40-55c1-4f32-a0a5-3a1bb5a0ce77")

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if result.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", result.TotalFiles)
	}
	if len(result.Flagged) != 1 || result.Flagged[0] != zero {
		t.Errorf("Flagged = %v, want [%s]", result.Flagged, zero)
	}
	if len(result.Failed) != 0 {
		t.Errorf("Failed = %v, want empty", result.Failed)
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Scan() on missing root: want error, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestScanMissingLogicalIDNotFlagged(t *testing.T) {
	root := t.TempDir()

	dir := filepath.Join(root, "Bare.Notebook")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	// No config.logicalId key at all: absence does not imply the placeholder.
	content := `{"metadata": {"type": "Notebook", "displayName": "Bare"}}`
	if err := os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(result.Flagged) != 0 {
		t.Errorf("Flagged = %v, want empty", result.Flagged)
	}
}

func TestScanRecordsParseErrors(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "Good.Notebook", ZeroGUID)

	dir := filepath.Join(root, "Broken.Notebook")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, DescriptorFileName)
	if err := os.WriteFile(bad, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v, want per-file error only", err)
	}

	if result.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", result.TotalFiles)
	}
	if len(result.Flagged) != 1 {
		t.Errorf("Flagged = %v, want the good file still flagged", result.Flagged)
	}
	if len(result.Failed) != 1 || result.Failed[0].Path != bad {
		t.Errorf("Failed = %v, want one entry for %s", result.Failed, bad)
	}
}

func TestScanIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Item.Notebook")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notebook-content.py"), []byte("# code"), 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0", result.TotalFiles)
	}
}

var canonicalIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestNewLogicalID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewLogicalID()
		if id == ZeroGUID {
			t.Fatal("NewLogicalID() returned the zero placeholder")
		}
		if !canonicalIDPattern.MatchString(id) {
			t.Fatalf("NewLogicalID() = %q, not canonical 8-4-4-4-12 form", id)
		}
		if seen[id] {
			t.Fatalf("NewLogicalID() repeated %q", id)
		}
		seen[id] = true
	}
}
