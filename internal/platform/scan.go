package platform

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Scan walks root for .platform descriptor files and flags those whose
// config.logicalId equals the zero placeholder. The scan is read-only.
//
// A descriptor that fails to parse is recorded in Failed and does not abort
// the scan. A descriptor without a config.logicalId key is not flagged:
// absence does not imply the placeholder. A missing or unreadable root is
// the only fatal condition; the returned error wraps fs.ErrNotExist when
// the root does not exist.
func Scan(root string) (*ScanResult, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("repository directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository directory %s: not a directory", root)
	}

	result := &ScanResult{Root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtree: record and keep walking siblings.
			result.Failed = append(result.Failed, FileError{Path: path, Reason: walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != DescriptorFileName {
			return nil
		}

		result.TotalFiles++

		flagged, _, err := checkDescriptor(path)
		if err != nil {
			result.Failed = append(result.Failed, FileError{Path: path, Reason: err.Error()})
			return nil
		}
		if flagged {
			result.Flagged = append(result.Flagged, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// checkDescriptor parses one descriptor file and reports whether its
// logicalId is the zero placeholder. The raw document is returned so the
// rewriter can preserve sibling keys.
func checkDescriptor(path string) (bool, map[string]any, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the directory walk
	if err != nil {
		return false, nil, fmt.Errorf("reading descriptor: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	config, ok := doc["config"].(map[string]any)
	if !ok {
		return false, doc, nil
	}
	logicalID, ok := config["logicalId"].(string)
	if !ok {
		return false, doc, nil
	}

	return logicalID == ZeroGUID, doc, nil
}
