// Package lakehouse copies reference data files into a lakehouse Files
// area. The lakehouse itself is reached through a Mounter, the host-provided
// capability that resolves a lakehouse name to a locally mounted directory;
// everything below that is plain filesystem copying.
package lakehouse

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Mounter resolves a lakehouse name to the local root of its Files area.
// In a hosted notebook environment this wraps the runtime's mount API; the
// LocalMounter covers tests and standalone runs against mounted storage.
type Mounter interface {
	FilesRoot(lakehouseName string) (string, error)
}

// LocalMounter maps lakehouse names to local directories.
type LocalMounter map[string]string

// FilesRoot implements Mounter.
func (m LocalMounter) FilesRoot(name string) (string, error) {
	root, ok := m[name]
	if !ok {
		return "", fmt.Errorf("lakehouse %q is not mounted", name)
	}
	return root, nil
}

// FolderCopy counts the files that landed in one lakehouse folder.
type FolderCopy struct {
	Folder string `json:"folder"`
	Files  int    `json:"files"`
}

// CopyStats reports what one copy operation moved.
type CopyStats struct {
	FilesCopied    int          `json:"files_copied"`
	Folders        []FolderCopy `json:"folders,omitempty"`
	SkippedFolders []string     `json:"skipped_folders,omitempty"`
}

// FileManager uploads files and folders into lakehouse Files areas.
type FileManager struct {
	mounter Mounter
}

// NewFileManager creates a file manager over the given mounter.
func NewFileManager(m Mounter) *FileManager {
	return &FileManager{mounter: m}
}

// UploadFile copies a single file into a lakehouse Files folder.
func (f *FileManager) UploadFile(lakehouseName, filePath, targetFolder string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("source file %s: %w", filePath, err)
	}

	targetDir, err := f.targetDir(lakehouseName, targetFolder)
	if err != nil {
		return err
	}
	return copyFile(filePath, filepath.Join(targetDir, filepath.Base(filePath)))
}

// UploadDir copies files from sourceDir into a lakehouse Files folder.
// Patterns (filepath.Match syntax, applied to base names) restrict which
// files are copied; nil copies everything. When recursive is set the
// directory structure below sourceDir is mirrored.
func (f *FileManager) UploadDir(lakehouseName, sourceDir, targetFolder string, patterns []string, recursive bool) (*CopyStats, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return nil, fmt.Errorf("source directory %s: %w", sourceDir, err)
	}

	targetDir, err := f.targetDir(lakehouseName, targetFolder)
	if err != nil {
		return nil, err
	}

	stats := &CopyStats{}
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if !recursive && path != sourceDir {
				return fs.SkipDir
			}
			return nil
		}
		if !matchesAny(d.Name(), patterns) {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(targetDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
			return err
		}
		if err := copyFile(path, dest); err != nil {
			return err
		}
		stats.FilesCopied++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("copying %s to %s/Files/%s: %w", sourceDir, lakehouseName, targetFolder, err)
	}
	return stats, nil
}

// CopyFolders copies multiple repository folders into a lakehouse using a
// repo-folder to lakehouse-folder mapping. A missing source folder is
// recorded as skipped, not an error: data folders are optional in most
// solution repositories.
func (f *FileManager) CopyFolders(lakehouseName, basePath string, mappings map[string]string, patterns []string) (*CopyStats, error) {
	total := &CopyStats{}

	// Stable order keeps stats and logs reproducible across runs.
	repoFolders := make([]string, 0, len(mappings))
	for repoFolder := range mappings {
		repoFolders = append(repoFolders, repoFolder)
	}
	sort.Strings(repoFolders)

	for _, repoFolder := range repoFolders {
		lakehouseFolder := mappings[repoFolder]
		source := filepath.Join(basePath, repoFolder)
		if _, err := os.Stat(source); err != nil {
			total.SkippedFolders = append(total.SkippedFolders, repoFolder)
			continue
		}

		stats, err := f.UploadDir(lakehouseName, source, lakehouseFolder, patterns, true)
		if err != nil {
			return total, err
		}
		total.FilesCopied += stats.FilesCopied
		total.Folders = append(total.Folders, FolderCopy{Folder: lakehouseFolder, Files: stats.FilesCopied})
	}
	return total, nil
}

func (f *FileManager) targetDir(lakehouseName, targetFolder string) (string, error) {
	root, err := f.mounter.FilesRoot(lakehouseName)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "Files", targetFolder)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating target directory %s: %w", dir, err)
	}
	return dir, nil
}

func matchesAny(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - paths come from the configured folder walk
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640) // #nosec G304
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}
