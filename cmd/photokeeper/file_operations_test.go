package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonimelisma/photokeeper/internal/naming"
)

func testOrganizer(t *testing.T, cfg config) *organizer {
	t.Helper()
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	o, err := newOrganizer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newOrganizer failed: %v", err)
	}
	return o
}

func touch(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

func names(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.SourceName)
	}
	sort.Strings(out)
	return out
}

func TestEnumerateFiles(t *testing.T) {
	tempDir := t.TempDir()
	destDir := filepath.Join(tempDir, "sorted")

	touch(t, filepath.Join(tempDir, "test1.jpg"), "a")
	touch(t, filepath.Join(tempDir, "test2.mp4"), "bb")
	touch(t, filepath.Join(tempDir, "notes.txt"), "ccc")
	touch(t, filepath.Join(tempDir, "sub", "deep", "clip.mov"), "d")
	touch(t, filepath.Join(tempDir, ".hidden.jpg"), "e")
	touch(t, filepath.Join(tempDir, ".Spotlight-V100", "index.jpg"), "f")
	touch(t, filepath.Join(destDir, "2024", "01", "old.jpg"), "g")
	touch(t, filepath.Join(tempDir, naming.LockFileName), "")

	o := testOrganizer(t, config{DestDir: destDir})
	files, err := o.enumerateFiles(tempDir)
	if err != nil {
		t.Fatalf("enumerateFiles failed: %v", err)
	}

	// Unsupported files are kept so they can be reported as failed
	want := []string{".hidden.jpg", "clip.mov", "notes.txt", "test1.jpg", "test2.mp4"}
	got := names(files)
	if len(got) != len(want) {
		t.Fatalf("Expected files %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected files %v, got %v", want, got)
			break
		}
	}

	for _, f := range files {
		if f.SourceName == "clip.mov" && f.SourceDir != filepath.Join(tempDir, "sub", "deep") {
			t.Errorf("Incorrect source directory for %s: %s", f.SourceName, f.SourceDir)
		}
		if f.SourceName == "test2.mp4" && f.Size != 2 {
			t.Errorf("Expected size 2 for test2.mp4, got %d", f.Size)
		}
	}
}

func TestEnumerateFilesRelativeSource(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(t.TempDir(), "library")
	touch(t, filepath.Join(root, "a.jpg"), "a")
	touch(t, filepath.Join(root, "sorted", "2024", "01", "old.jpg"), "b")

	if err := os.Symlink(filepath.Join(root, "sorted"), link); err != nil {
		t.Fatal(err)
	}
	prevWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevWD) })

	testCases := []struct {
		name   string
		source string
		dest   string
	}{
		{"relative source, absolute destination", ".", filepath.Join(root, "sorted")},
		{"absolute source, relative destination", root, "sorted"},
		{"both relative", ".", "./sorted/"},
		{"destination through a symlink", ".", link},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := testOrganizer(t, config{DestDir: tc.dest})
			files, err := o.enumerateFiles(tc.source)
			if err != nil {
				t.Fatalf("enumerateFiles failed: %v", err)
			}
			if got := names(files); len(got) != 1 || got[0] != "a.jpg" {
				t.Errorf("Expected only a.jpg, got %v", got)
			}
		})
	}
}

func TestEnumerateFilesSkipHidden(t *testing.T) {
	tempDir := t.TempDir()
	touch(t, filepath.Join(tempDir, "photo.jpg"), "a")
	touch(t, filepath.Join(tempDir, ".hidden.jpg"), "b")
	touch(t, filepath.Join(tempDir, ".thumbs", "thumb.jpg"), "c")

	o := testOrganizer(t, config{DestDir: filepath.Join(tempDir, "dest"), SkipHidden: true})
	files, err := o.enumerateFiles(tempDir)
	if err != nil {
		t.Fatalf("enumerateFiles failed: %v", err)
	}
	if got := names(files); len(got) != 1 || got[0] != "photo.jpg" {
		t.Errorf("Expected only photo.jpg, got %v", got)
	}
}

func TestEnumerateFilesErrors(t *testing.T) {
	o := testOrganizer(t, config{DestDir: t.TempDir()})

	if _, err := o.enumerateFiles("/non/existent/dir"); err == nil {
		t.Error("Expected error for non-existent directory, but got none")
	}

	file := filepath.Join(t.TempDir(), "file.jpg")
	touch(t, file, "x")
	if _, err := o.enumerateFiles(file); err == nil {
		t.Error("Expected error when the source is a file")
	}

	emptyFiles, err := o.enumerateFiles(t.TempDir())
	if err != nil {
		t.Fatalf("enumerateFiles failed for empty directory: %v", err)
	}
	if len(emptyFiles) != 0 {
		t.Errorf("Expected 0 files in empty directory, but got %d", len(emptyFiles))
	}
}

func TestCopyFile(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.jpg")
	dst := filepath.Join(tempDir, "dst.jpg")
	touch(t, src, "photo data")

	mtime := time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "photo data" {
		t.Errorf("Expected copied content, got %q", data)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("Expected mtime %v, got %v", mtime, info.ModTime())
	}

	// An existing destination must never be overwritten
	touch(t, src, "new data")
	if err := copyFile(src, dst); err == nil {
		t.Error("Expected error when destination exists")
	}
	data, _ = os.ReadFile(dst)
	if string(data) != "photo data" {
		t.Errorf("Destination was modified: %q", data)
	}

	if err := copyFile(filepath.Join(tempDir, "missing.jpg"), filepath.Join(tempDir, "other.jpg")); err == nil {
		t.Error("Expected error for missing source")
	}
	if naming.Exists(filepath.Join(tempDir, "other.jpg")) {
		t.Error("No destination should be created for a missing source")
	}
}
