package lakehouse

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestManager(t *testing.T) (*FileManager, string) {
	t.Helper()
	root := t.TempDir()
	return NewFileManager(LocalMounter{"datalake": root}), root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestUploadFile(t *testing.T) {
	fm, root := newTestManager(t)
	src := filepath.Join(t.TempDir(), "ref.csv")
	writeFile(t, src, "a,b\n1,2\n")

	if err := fm.UploadFile("datalake", src, "reference"); err != nil {
		t.Fatal(err)
	}

	got := mustRead(t, filepath.Join(root, "Files", "reference", "ref.csv"))
	if got != "a,b\n1,2\n" {
		t.Errorf("uploaded content = %q", got)
	}
}

func TestUploadFileMissingSource(t *testing.T) {
	fm, _ := newTestManager(t)
	if err := fm.UploadFile("datalake", "/does/not/exist.csv", "reference"); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestUploadFileUnknownLakehouse(t *testing.T) {
	fm, _ := newTestManager(t)
	src := filepath.Join(t.TempDir(), "ref.csv")
	writeFile(t, src, "x")

	if err := fm.UploadFile("nope", src, "reference"); err == nil {
		t.Fatal("expected error for unmounted lakehouse")
	}
}

func TestUploadDirRecursive(t *testing.T) {
	fm, root := newTestManager(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "top.csv"), "top")
	writeFile(t, filepath.Join(src, "nested", "deep.csv"), "deep")

	stats, err := fm.UploadDir("datalake", src, "data", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", stats.FilesCopied)
	}
	if got := mustRead(t, filepath.Join(root, "Files", "data", "nested", "deep.csv")); got != "deep" {
		t.Errorf("nested file content = %q", got)
	}
}

func TestUploadDirFlat(t *testing.T) {
	fm, root := newTestManager(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "top.csv"), "top")
	writeFile(t, filepath.Join(src, "nested", "deep.csv"), "deep")

	stats, err := fm.UploadDir("datalake", src, "data", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesCopied != 1 {
		t.Errorf("FilesCopied = %d, want 1", stats.FilesCopied)
	}
	if _, err := os.Stat(filepath.Join(root, "Files", "data", "nested")); err == nil {
		t.Error("nested directory should not be copied in flat mode")
	}
}

func TestUploadDirPatterns(t *testing.T) {
	fm, root := newTestManager(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "data.csv"), "keep")
	writeFile(t, filepath.Join(src, "notes.txt"), "skip")
	writeFile(t, filepath.Join(src, "more.parquet"), "keep")

	stats, err := fm.UploadDir("datalake", src, "data", []string{"*.csv", "*.parquet"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", stats.FilesCopied)
	}
	if _, err := os.Stat(filepath.Join(root, "Files", "data", "notes.txt")); err == nil {
		t.Error("notes.txt should have been filtered out")
	}
}

func TestCopyFolders(t *testing.T) {
	fm, root := newTestManager(t)
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "data", "customers.csv"), "c")
	writeFile(t, filepath.Join(base, "config", "settings.json"), "{}")

	mappings := map[string]string{
		"data":    "raw",
		"config":  "settings",
		"missing": "nowhere",
	}
	stats, err := fm.CopyFolders("datalake", base, mappings, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", stats.FilesCopied)
	}
	if len(stats.SkippedFolders) != 1 || stats.SkippedFolders[0] != "missing" {
		t.Errorf("SkippedFolders = %v, want [missing]", stats.SkippedFolders)
	}
	// mappings iterate in sorted repo-folder order: config before data
	want := []FolderCopy{{Folder: "settings", Files: 1}, {Folder: "raw", Files: 1}}
	if !reflect.DeepEqual(stats.Folders, want) {
		t.Errorf("Folders = %v, want %v", stats.Folders, want)
	}
	if got := mustRead(t, filepath.Join(root, "Files", "raw", "customers.csv")); got != "c" {
		t.Errorf("customers.csv content = %q", got)
	}
	if got := mustRead(t, filepath.Join(root, "Files", "settings", "settings.json")); got != "{}" {
		t.Errorf("settings.json content = %q", got)
	}
}

func TestCopyFoldersAllMissing(t *testing.T) {
	fm, _ := newTestManager(t)
	stats, err := fm.CopyFolders("datalake", t.TempDir(), map[string]string{"a": "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesCopied != 0 || len(stats.SkippedFolders) != 1 {
		t.Errorf("stats = %+v, want zero copies and one skip", stats)
	}
}
