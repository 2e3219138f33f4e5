package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Fix scans root and rewrites every flagged descriptor with a freshly
// generated logicalId. Only the config.logicalId field changes; all sibling
// keys and nested structure are preserved. Each rewrite goes through a
// temporary file in the same directory followed by a rename, so a crash
// mid-write never leaves a truncated descriptor behind.
//
// When dryRun is set the detection phase runs normally but no file is
// touched; Fixed records the identifiers that would have been assigned.
//
// Write failures are per-file: they are recorded in Failed and do not stop
// the remaining flagged files. Only a missing root is fatal.
func Fix(root string, dryRun bool) (*ScanResult, error) {
	start := time.Now()

	result, err := Scan(root)
	if err != nil {
		return nil, err
	}
	result.DryRun = dryRun

	for _, path := range result.Flagged {
		newID := NewLogicalID()

		if dryRun {
			result.Fixed = append(result.Fixed, FixedFile{Path: path, OldID: ZeroGUID, NewID: newID})
			continue
		}

		if err := rewriteDescriptor(path, newID); err != nil {
			result.Failed = append(result.Failed, FileError{Path: path, Reason: err.Error()})
			continue
		}
		result.Fixed = append(result.Fixed, FixedFile{Path: path, OldID: ZeroGUID, NewID: newID})
	}

	result.Duration = time.Since(start)
	return result, nil
}

// rewriteDescriptor replaces config.logicalId in the descriptor at path,
// writing atomically via a temp file in the same directory.
func rewriteDescriptor(path, newID string) error {
	_, doc, err := checkDescriptor(path)
	if err != nil {
		return err
	}

	config, ok := doc["config"].(map[string]any)
	if !ok {
		return fmt.Errorf("descriptor has no config object")
	}
	config["logicalId"] = newID

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}

	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it over the target. The temp file is removed on any failure.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, DescriptorFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing descriptor: %w", err)
	}
	return nil
}
