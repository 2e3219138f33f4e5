// Package platform implements the identifier repair pass over Fabric
// .platform descriptor files.
//
// Each deployable artifact in a Fabric workspace repository carries a JSON
// sidecar named ".platform" whose config.logicalId field identifies the
// artifact across environments. Exported repositories sometimes carry the
// reserved all-zero placeholder in that field, which breaks deployment.
// This package scans a repository tree for those placeholders and rewrites
// them with freshly generated identifiers.
package platform

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DescriptorFileName is the fixed name of the sidecar descriptor file.
	DescriptorFileName = ".platform"

	// ZeroGUID is the reserved "not yet assigned" placeholder identifier.
	ZeroGUID = "00000000-0000-0000-0000-000000000000"
)

// Descriptor is the subset of a .platform file this package reads.
// All other fields pass through untouched on rewrite.
type Descriptor struct {
	Config struct {
		LogicalID string `json:"logicalId"`
	} `json:"config"`
	Metadata struct {
		DisplayName string `json:"displayName"`
		Type        string `json:"type"`
	} `json:"metadata"`
}

// FixedFile records one descriptor that was (or would be, in dry-run mode)
// rewritten, with the identifier mapping for transparency.
type FixedFile struct {
	Path  string `json:"path"`
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// FileError records a per-file failure (parse or write) that did not abort
// the overall pass.
type FileError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanResult aggregates the outcome of a scan or fix pass. It is created
// fresh per invocation and owned solely by the caller.
type ScanResult struct {
	Root       string        `json:"root"`
	TotalFiles int           `json:"total_files"`
	Flagged    []string      `json:"flagged,omitempty"`
	Fixed      []FixedFile   `json:"fixed,omitempty"`
	Failed     []FileError   `json:"failed,omitempty"`
	DryRun     bool          `json:"dry_run"`
	Duration   time.Duration `json:"-"`
}

// Clean reports whether the scan found nothing to repair and nothing
// failed. After a fix pass Flagged stays populated for every repaired file,
// so check Failed, not Clean, to judge the outcome of a repair.
func (r *ScanResult) Clean() bool {
	return len(r.Flagged) == 0 && len(r.Failed) == 0
}

// NewLogicalID returns a freshly generated canonical-form identifier.
// The result is never the zero placeholder.
func NewLogicalID() string {
	for {
		id := uuid.New().String()
		if id != ZeroGUID {
			return id
		}
	}
}
