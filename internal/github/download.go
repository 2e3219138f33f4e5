package github

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DownloadZipball fetches the repository snapshot for the client's branch
// as a zip archive held in memory.
func (c *Client) DownloadZipball(ctx context.Context) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/zipball/%s", c.BaseURL, c.repoPath(), c.Branch)
	data, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading zipball for %s@%s: %w", c.repoPath(), c.Branch, err)
	}
	return data, nil
}

// ExtractOptions controls which part of a zipball lands where.
type ExtractOptions struct {
	// FolderToExtract limits extraction to one folder within the repository
	// (empty extracts everything).
	FolderToExtract string

	// StripPrefix removes a leading path component from extracted files,
	// beyond the zipball's own top-level directory which is always removed.
	StripPrefix string
}

// DownloadAndExtract downloads the repository and extracts it under
// extractTo. An existing extractTo directory is removed first so stale
// files from a previous run never leak into the deployment.
func (c *Client) DownloadAndExtract(ctx context.Context, extractTo string, opts ExtractOptions) error {
	data, err := c.DownloadZipball(ctx)
	if err != nil {
		return err
	}

	if info, err := os.Stat(extractTo); err == nil && info.IsDir() {
		if err := os.RemoveAll(extractTo); err != nil {
			return fmt.Errorf("removing previous extraction %s: %w", extractTo, err)
		}
	}
	if err := os.MkdirAll(extractTo, 0750); err != nil {
		return fmt.Errorf("creating extraction directory %s: %w", extractTo, err)
	}

	if err := extractZipball(data, extractTo, opts); err != nil {
		return fmt.Errorf("extracting %s@%s: %w", c.repoPath(), c.Branch, err)
	}
	return nil
}

// extractZipball writes the archive's files under extractTo. GitHub
// zipballs wrap everything in a single "<owner>-<repo>-<sha>/" directory,
// which is always stripped.
func extractZipball(data []byte, extractTo string, opts ExtractOptions) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}

	cleanRoot := filepath.Clean(extractTo)

	for _, file := range reader.File {
		rel := stripTopLevel(file.Name)
		if rel == "" {
			continue
		}

		if opts.FolderToExtract != "" && !withinFolder(rel, opts.FolderToExtract) {
			continue
		}
		if opts.StripPrefix != "" {
			rel = strings.TrimPrefix(rel, strings.TrimSuffix(opts.StripPrefix, "/")+"/")
		}

		outPath := filepath.Join(cleanRoot, filepath.FromSlash(rel))
		// Zip-slip protection: reject entries escaping the extraction root.
		if !strings.HasPrefix(outPath, cleanRoot+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction directory", file.Name)
		}

		if strings.HasSuffix(file.Name, "/") {
			if err := os.MkdirAll(outPath, 0750); err != nil {
				return fmt.Errorf("creating directory %s: %w", outPath, err)
			}
			continue
		}

		if err := extractFile(file, outPath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", outPath, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", file.Name, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640) // #nosec G304 - path validated against extraction root
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}

	if _, err := io.Copy(dst, io.LimitReader(src, maxResponseSize)); err != nil {
		_ = dst.Close()
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return dst.Close()
}

// stripTopLevel removes the zipball's synthetic root directory component.
func stripTopLevel(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// withinFolder reports whether rel is the folder itself or inside it.
func withinFolder(rel, folder string) bool {
	folder = strings.TrimSuffix(folder, "/")
	return rel == folder || strings.HasPrefix(rel, folder+"/")
}

// DownloadFile fetches a single file from the repository's raw content
// endpoint and writes it under targetDir, returning the saved path.
func (c *Client) DownloadFile(ctx context.Context, filePath, targetDir string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", c.RawURL, c.repoPath(), c.Branch, strings.TrimPrefix(filePath, "/"))

	data, err := c.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("downloading %s from %s@%s: %w", filePath, c.repoPath(), c.Branch, err)
	}

	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", fmt.Errorf("creating target directory %s: %w", targetDir, err)
	}

	target := filepath.Join(targetDir, path.Base(filePath))
	if err := os.WriteFile(target, data, 0640); err != nil { // #nosec G306 - downloaded config, not a secret
		return "", fmt.Errorf("saving %s: %w", target, err)
	}
	return target, nil
}
