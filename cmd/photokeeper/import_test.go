package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonimelisma/photokeeper/internal/filetype"
	"github.com/tonimelisma/photokeeper/internal/mediatest"
	"github.com/tonimelisma/photokeeper/internal/naming"
	"github.com/tonimelisma/photokeeper/internal/reader"
)

// setupSource creates a card-like source tree:
//
//	DCIM/photo.jpg      EXIF 2019-07
//	DCIM/video.mp4      mvhd 2024-06
//	DCIM/broken.mp4     corrupt container
//	DCIM/undated.jpg    EXIF without DateTimeOriginal
//	DCIM/readme.txt     unsupported
func setupSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "card")
	dcim := filepath.Join(src, "DCIM")
	if err := os.MkdirAll(dcim, 0755); err != nil {
		t.Fatal(err)
	}

	mediatest.WriteExifJPEG(t, filepath.Join(dcim, "photo.jpg"), mediatest.TagDateTimeOriginal, "2019:07:04 10:11:12")
	mediatest.WriteMP4(t, filepath.Join(dcim, "video.mp4"), mediatest.MovieTime(time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)))
	mediatest.WriteExifJPEG(t, filepath.Join(dcim, "undated.jpg"), mediatest.TagDateTimeDigitized, "2019:07:04 10:11:12")
	touch(t, filepath.Join(dcim, "broken.mp4"), "\x00\x00\x00\x14ftypisom\x7f\xff\xff\xffmoov")
	touch(t, filepath.Join(dcim, "readme.txt"), "hello")
	return src
}

func byName(files []FileInfo) map[string]FileInfo {
	m := make(map[string]FileInfo, len(files))
	for _, f := range files {
		m[f.SourceName] = f
	}
	return m
}

func TestOrganizeMediaReportOnly(t *testing.T) {
	src := setupSource(t)
	dest := filepath.Join(t.TempDir(), "library")

	cfg := config{SourceDir: src, DestDir: dest, Workers: 1, DecodeTimeout: 10 * time.Second}
	files, err := organizeMedia(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	got := byName(files)
	if len(got) != 5 {
		t.Fatalf("Expected 5 files, got %d", len(got))
	}

	photo := got["photo.jpg"]
	if photo.Status != StatusPlanned || photo.Date != (reader.CaptureDate{Year: 2019, Month: time.July}) {
		t.Errorf("photo.jpg: unexpected %+v", photo)
	}
	if photo.Reader != filetype.Exif || photo.FileType != "jpeg" {
		t.Errorf("photo.jpg: expected exif reader for jpeg, got %s/%s", photo.Reader, photo.FileType)
	}
	if photo.DestDir != filepath.Join(dest, "2019", "07") {
		t.Errorf("photo.jpg: unexpected destination %s", photo.DestDir)
	}
	if photo.DestName != "" {
		t.Errorf("photo.jpg: no name should be chosen without copy, got %s", photo.DestName)
	}

	video := got["video.mp4"]
	if video.Status != StatusPlanned || video.Date != (reader.CaptureDate{Year: 2024, Month: time.June}) {
		t.Errorf("video.mp4: unexpected %+v", video)
	}

	broken := got["broken.mp4"]
	if broken.Status != StatusUndated || !errors.Is(broken.Err, reader.ErrMetadataUnavailable) {
		t.Errorf("broken.mp4: expected undated, got %s (%v)", broken.Status, broken.Err)
	}
	if broken.Dated() {
		t.Error("broken.mp4 should have no date")
	}

	undated := got["undated.jpg"]
	if undated.Status != StatusUndated {
		t.Errorf("undated.jpg: expected undated, got %s (%v)", undated.Status, undated.Err)
	}

	readme := got["readme.txt"]
	if readme.Status != StatusUnsupported || !errors.Is(readme.Err, reader.ErrUnsupportedType) {
		t.Errorf("readme.txt: expected unsupported, got %s (%v)", readme.Status, readme.Err)
	}

	if naming.Exists(dest) {
		t.Error("Destination should not be created without copy")
	}
}

func TestOrganizeMediaCopy(t *testing.T) {
	src := setupSource(t)
	dest := filepath.Join(t.TempDir(), "library")

	// photo.jpg is already in the library, so the copy must be renamed
	existing := filepath.Join(dest, "2019", "07", "photo.jpg")
	touch(t, existing, "already here")

	cfg := config{SourceDir: src, DestDir: dest, Copy: true, Workers: 1, DecodeTimeout: 10 * time.Second}
	files, err := organizeMedia(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	got := byName(files)
	photo := got["photo.jpg"]
	if photo.Status != StatusCopied {
		t.Fatalf("photo.jpg: expected copied, got %s (%v)", photo.Status, photo.Err)
	}
	if photo.DestName != "photo_1.jpg" {
		t.Errorf("photo.jpg: expected photo_1.jpg, got %s", photo.DestName)
	}
	if !naming.Exists(filepath.Join(dest, "2019", "07", "photo_1.jpg")) {
		t.Error("photo_1.jpg was not copied")
	}
	if data, _ := os.ReadFile(existing); string(data) != "already here" {
		t.Error("Existing library file was modified")
	}

	video := got["video.mp4"]
	if video.Status != StatusCopied || video.DestPath() != filepath.Join(dest, "2024", "06", "video.mp4") {
		t.Errorf("video.mp4: unexpected %s at %s", video.Status, video.DestPath())
	}

	for _, name := range []string{"broken.mp4", "undated.jpg", "readme.txt"} {
		if !got[name].Failed() {
			t.Errorf("%s: expected failed bucket, got %s", name, got[name].Status)
		}
	}

	// Originals stay in place without delete_originals
	if !naming.Exists(filepath.Join(src, "DCIM", "photo.jpg")) {
		t.Error("Original was removed")
	}
}

func TestOrganizeMediaDryRunClaimsNames(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "card")
	dest := filepath.Join(root, "library")

	// Three cards' worth of files with the same name and month
	for _, sub := range []string{"a", "b", "c"} {
		mediatest.WriteExifJPEG(t, filepath.Join(mkdir(t, filepath.Join(src, sub)), "IMG_0001.jpg"),
			mediatest.TagDateTimeOriginal, "2021:03:01 09:00:00")
	}

	cfg := config{SourceDir: src, DestDir: dest, Copy: true, DryRun: true, Workers: 3, DecodeTimeout: 10 * time.Second}
	files, err := organizeMedia(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, f := range files {
		if f.Status != StatusPlanned {
			t.Errorf("%s: expected planned, got %s (%v)", f.SourcePath(), f.Status, f.Err)
		}
		if seen[f.DestName] {
			t.Errorf("name %s planned twice", f.DestName)
		}
		seen[f.DestName] = true
	}
	for _, want := range []string{"IMG_0001.jpg", "IMG_2.jpg", "IMG_3.jpg"} {
		if !seen[want] {
			t.Errorf("Expected planned name %s, got %v", want, seen)
		}
	}

	if naming.Exists(dest) {
		t.Error("Dry run must not create the destination")
	}
}

func TestOrganizeMediaParallelCopy(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "card")
	dest := filepath.Join(root, "library")

	const n = 12
	for i := 0; i < n; i++ {
		dir := mkdir(t, filepath.Join(src, string(rune('a'+i))))
		mediatest.WriteMP4(t, filepath.Join(dir, "clip.mov"), mediatest.MovieTime(time.Date(2022, 12, 24, 18, 0, 0, 0, time.UTC)))
	}

	cfg := config{SourceDir: src, DestDir: dest, Copy: true, Workers: 4, DecodeTimeout: 10 * time.Second}
	files, err := organizeMedia(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, f := range files {
		if f.Status != StatusCopied {
			t.Fatalf("%s: expected copied, got %s (%v)", f.SourcePath(), f.Status, f.Err)
		}
		if seen[f.DestPath()] {
			t.Errorf("%s written twice", f.DestPath())
		}
		seen[f.DestPath()] = true
	}

	entries, err := os.ReadDir(filepath.Join(dest, "2022", "12"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("Expected %d files in destination, got %d", n, len(entries))
	}
}

func TestOrganizeMediaDeleteOriginals(t *testing.T) {
	src := setupSource(t)
	dest := filepath.Join(t.TempDir(), "library")

	cfg := config{SourceDir: src, DestDir: dest, Copy: true, DeleteOriginals: true, Workers: 1, DecodeTimeout: 10 * time.Second}
	if _, err := organizeMedia(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	if naming.Exists(filepath.Join(src, "DCIM", "photo.jpg")) {
		t.Error("Copied original should be deleted")
	}
	if !naming.Exists(filepath.Join(src, "DCIM", "broken.mp4")) {
		t.Error("Failed file must not be deleted")
	}
	if !naming.Exists(filepath.Join(src, "DCIM", "readme.txt")) {
		t.Error("Unsupported file must not be deleted")
	}
}

func TestOrganizeMediaDestinationLocked(t *testing.T) {
	src := setupSource(t)
	dest := mkdir(t, filepath.Join(t.TempDir(), "library"))

	lock := naming.NewDestLock(dest)
	if err := lock.TryLock(); err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	cfg := config{SourceDir: src, DestDir: dest, Copy: true, Workers: 1}
	if _, err := organizeMedia(context.Background(), cfg, zerolog.Nop()); !errors.Is(err, naming.ErrDestinationLocked) {
		t.Errorf("expected ErrDestinationLocked, got %v", err)
	}
}

func TestOrganizeMediaCancelled(t *testing.T) {
	src := setupSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config{SourceDir: src, DestDir: filepath.Join(t.TempDir(), "library"), Workers: 1}
	files, err := organizeMedia(ctx, cfg, zerolog.Nop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("Expected enumerated files to be returned, got %d", len(files))
	}
}

func TestProcessFileInterrupted(t *testing.T) {
	src := setupSource(t)
	o := testOrganizer(t, config{DestDir: filepath.Join(t.TempDir(), "library"), DecodeTimeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, name := range []string{"photo.jpg", "video.mp4"} {
		file := FileInfo{SourceDir: filepath.Join(src, "DCIM"), SourceName: name}
		o.processFile(ctx, &file)
		if file.Status != StatusPending || file.Err != nil {
			t.Errorf("%s: expected pending without error, got %s (%v)", name, file.Status, file.Err)
		}
		if file.Failed() {
			t.Errorf("%s: interrupted file must not be in the failed bucket", name)
		}
		if s := summarize([]FileInfo{file}); s.Pending != 1 || s.Undated != 0 {
			t.Errorf("%s: expected to count as not processed, got %+v", name, s)
		}
	}
}

func TestOrganizeMediaReaderFallback(t *testing.T) {
	src := setupSource(t)
	dest := filepath.Join(t.TempDir(), "library")

	cfg := config{SourceDir: src, DestDir: dest, Workers: 1, DecodeTimeout: 10 * time.Second, ReaderFallback: true}
	files, err := organizeMedia(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("organizeMedia failed: %v", err)
	}

	// undated.jpg has only DateTimeDigitized, which the container reader uses
	undated := byName(files)["undated.jpg"]
	if undated.Status != StatusPlanned || undated.Reader != filetype.Container {
		t.Fatalf("undated.jpg: expected planned via container reader, got %s/%s (%v)", undated.Status, undated.Reader, undated.Err)
	}
	if undated.Date != (reader.CaptureDate{Year: 2019, Month: time.July}) {
		t.Errorf("undated.jpg: unexpected date %v", undated.Date)
	}

	photo := byName(files)["photo.jpg"]
	if photo.Reader != filetype.Exif {
		t.Errorf("photo.jpg: preferred exif reader should win, got %s", photo.Reader)
	}
}

func TestOrganizeMediaMissingSource(t *testing.T) {
	cfg := config{SourceDir: "/non/existent/card", DestDir: t.TempDir(), Workers: 1}
	if _, err := organizeMedia(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for missing source directory")
	}
}

func mkdir(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}
