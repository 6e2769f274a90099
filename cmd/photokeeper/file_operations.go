package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/photokeeper/internal/naming"
)

// systemDirs are volume bookkeeping directories never holding media.
var systemDirs = map[string]bool{
	".Spotlight-V100": true,
	".fseventsd":      true,
	".Trashes":        true,
	"$RECYCLE.BIN":    true,
}

// enumerateFiles walks sourceDir and returns a FileInfo for every regular
// file. Only an unreadable root is an error; unreadable entries below it are
// logged and skipped.
func (o *organizer) enumerateFiles(sourceDir string) ([]FileInfo, error) {
	var files []FileInfo

	// Check if the source directory exists
	info, err := os.Stat(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source directory does not exist: %w", err)
		}
		return nil, fmt.Errorf("error accessing source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", sourceDir)
	}

	// The destination is matched by identity, so relative, absolute and
	// symlinked spellings of it are all skipped. A missing one has nothing
	// to skip.
	destInfo, _ := os.Stat(o.cfg.DestDir)

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == sourceDir {
				return err
			}
			o.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == sourceDir {
				return nil
			}
			// Skip the destination tree when it lives inside the source
			if destInfo != nil {
				if fi, err := os.Stat(path); err == nil && os.SameFile(fi, destInfo) {
					return filepath.SkipDir
				}
			}
			if systemDirs[name] || (o.cfg.SkipHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if name == naming.LockFileName {
			return nil
		}
		if o.cfg.SkipHidden && strings.HasPrefix(name, ".") {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			o.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable file")
			return nil
		}

		files = append(files, FileInfo{
			SourceName: name,
			SourceDir:  filepath.Dir(path),
			Size:       fi.Size(),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking the path %s: %w", sourceDir, err)
	}

	return files, nil
}

// copyFile copies src to dst, which must not exist yet. A partially written
// dst is removed on failure. The source modification time is kept.
func copyFile(src, dst string) (err error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := destFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if info, serr := sourceFile.Stat(); serr == nil {
		if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
			return fmt.Errorf("set times on %s: %w", dst, err)
		}
	}
	return nil
}
