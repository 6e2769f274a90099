package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/tonimelisma/photokeeper/internal/filetype"
	"github.com/tonimelisma/photokeeper/internal/naming"
	"github.com/tonimelisma/photokeeper/internal/reader"
	"github.com/tonimelisma/photokeeper/internal/resolver"
)

// Status is the outcome of processing one file.
type Status string

const (
	StatusPending     Status = ""
	StatusPlanned     Status = "planned"
	StatusCopied      Status = "copied"
	StatusUnsupported Status = "unsupported"
	StatusUndated     Status = "undated"
	StatusUnnamable   Status = "unnamable"
	StatusFailed      Status = "failed"
)

// FileInfo represents information about each file being organized
type FileInfo struct {
	SourceName string
	SourceDir  string
	DestName   string
	DestDir    string
	Size       int64
	FileType   string
	Reader     filetype.ReaderKind
	Date       reader.CaptureDate
	Status     Status
	Err        error
}

// SourcePath returns the full path of the original file.
func (f FileInfo) SourcePath() string {
	return filepath.Join(f.SourceDir, f.SourceName)
}

// DestPath returns the full destination path, or "" if none was chosen.
func (f FileInfo) DestPath() string {
	if f.DestName == "" {
		return ""
	}
	return filepath.Join(f.DestDir, f.DestName)
}

// Failed reports whether the file belongs in the failed bucket.
func (f FileInfo) Failed() bool {
	switch f.Status {
	case StatusUnsupported, StatusUndated, StatusUnnamable, StatusFailed:
		return true
	}
	return false
}

// Dated reports whether a capture date was read.
func (f FileInfo) Dated() bool {
	return f.Date.Valid()
}

type organizer struct {
	cfg      config
	log      zerolog.Logger
	resolver *resolver.Resolver
	locks    *naming.DirLocks
	claims   *naming.Claims
}

func newOrganizer(cfg config, log zerolog.Logger) (*organizer, error) {
	reg, err := cfg.registry()
	if err != nil {
		return nil, err
	}
	res := resolver.New(reg,
		resolver.WithReaderOptions(reader.Options{Timeout: cfg.DecodeTimeout}),
		resolver.WithFallback(cfg.ReaderFallback),
	)
	return &organizer{
		cfg:      cfg,
		log:      log,
		resolver: res,
		locks:    naming.NewDirLocks(64),
		claims:   naming.NewClaims(),
	}, nil
}

// organizeMedia handles the main functionality of the program. It returns
// the processed files even when the run is interrupted.
func organizeMedia(ctx context.Context, cfg config, log zerolog.Logger) ([]FileInfo, error) {
	o, err := newOrganizer(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("source", cfg.SourceDir).
		Str("dest", cfg.DestDir).
		Bool("copy", cfg.Copy).
		Bool("dry_run", cfg.DryRun).
		Int("workers", cfg.Workers).
		Dur("decode_timeout", cfg.DecodeTimeout).
		Bool("reader_fallback", cfg.ReaderFallback).
		Msg("configuration")

	// Enumerate files in the source directory
	files, err := o.enumerateFiles(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate files: %w", err)
	}
	log.Info().Int("files", len(files)).Msg("enumerated source")

	if cfg.Copy && !cfg.DryRun {
		if err := os.MkdirAll(cfg.DestDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create destination %s: %w", cfg.DestDir, err)
		}
		lock := naming.NewDestLock(cfg.DestDir)
		if err := lock.TryLock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn().Err(err).Str("lock", lock.Path()).Msg("failed to release destination lock")
			}
		}()
	}

	start := time.Now()
	o.processFiles(ctx, files)

	o.deleteOriginalFiles(files)

	log.Info().
		Int("files", len(files)).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("done")

	if err := ctx.Err(); err != nil {
		return files, fmt.Errorf("interrupted: %w", err)
	}
	return files, nil
}

// processFiles runs processFile over files with cfg.Workers goroutines.
// Files not started before ctx is done keep StatusPending.
func (o *organizer) processFiles(ctx context.Context, files []FileInfo) {
	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o.processFile(ctx, &files[i])
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

// processFile resolves, reads and places a single file. Every failure is
// recorded on file; none is returned.
func (o *organizer) processFile(ctx context.Context, file *FileInfo) {
	path := file.SourcePath()
	flog := o.log.With().Str("file", path).Logger()

	if spec, ok := o.resolver.Lookup(path); ok {
		file.FileType = spec.Name
	}
	rd, ok := o.resolver.Resolve(path)
	if !ok {
		file.Status = StatusUnsupported
		file.Err = fmt.Errorf("%w: %q", reader.ErrUnsupportedType, resolver.Extension(path))
		flog.Debug().Msg("unsupported file type")
		return
	}

	date, err := rd.Parse(ctx)
	if err != nil && ctx.Err() != nil {
		// Interrupted: leave the file pending, it was not examined
		flog.Debug().Err(err).Msg("not processed")
		return
	}
	file.Reader = rd.Kind()
	if err != nil {
		file.Status = StatusUndated
		file.Err = err
		flog.Warn().Err(err).Str("reader", string(rd.Kind())).Msg("no capture date")
		return
	}

	file.Date = date
	file.DestDir = filepath.Join(o.cfg.DestDir, filepath.FromSlash(date.Path()))
	flog.Debug().Str("date", date.String()).Str("reader", string(rd.Kind())).Msg("read capture date")

	if !o.cfg.Copy {
		file.Status = StatusPlanned
		return
	}
	o.placeFile(file, flog)
}

// exists reports whether path is taken on disk or by an earlier file in
// this run.
func (o *organizer) exists(path string) bool {
	return naming.Exists(path) || o.claims.Has(path)
}

// placeFile picks a free destination name and copies the file there. The
// directory lock is held from the existence check until the copy exists.
func (o *organizer) placeFile(file *FileInfo, flog zerolog.Logger) {
	unlock := o.locks.Lock(file.DestDir)
	defer unlock()

	name, err := naming.EnsureUniqueName(file.DestDir, file.SourceName, o.exists)
	if err != nil {
		file.Status = StatusUnnamable
		file.Err = err
		flog.Error().Err(err).Msg("no free destination name")
		return
	}
	file.DestName = name
	dest := file.DestPath()

	if o.cfg.DryRun {
		o.claims.Claim(dest)
		file.Status = StatusPlanned
		flog.Info().Str("dest", dest).Msg("would copy")
		return
	}

	if err := os.MkdirAll(file.DestDir, 0755); err != nil {
		file.Status = StatusFailed
		file.Err = fmt.Errorf("failed to create directory %s: %w", file.DestDir, err)
		flog.Error().Err(file.Err).Msg("copy failed")
		return
	}

	if err := copyFile(file.SourcePath(), dest); err != nil {
		file.Status = StatusFailed
		file.Err = err
		flog.Error().Err(err).Str("dest", dest).Msg("copy failed")
		return
	}
	o.claims.Claim(dest)
	file.Status = StatusCopied
	flog.Debug().
		Str("dest", dest).
		Str("size", humanize.Bytes(uint64(file.Size))).
		Msg("copied")
}

// deleteOriginalFiles removes the sources of copied files. Failures are
// logged and leave the original in place.
func (o *organizer) deleteOriginalFiles(files []FileInfo) {
	if !o.cfg.DeleteOriginals {
		return
	}

	var deletedCount int
	var deletedSize int64

	for _, file := range files {
		if file.Status != StatusCopied {
			continue
		}
		sourcePath := file.SourcePath()
		if err := os.Remove(sourcePath); err != nil {
			o.log.Warn().Err(err).Str("file", sourcePath).Msg("failed to delete original")
			continue
		}
		deletedCount++
		deletedSize += file.Size
		o.log.Debug().Str("file", sourcePath).Msg("deleted original")
	}

	o.log.Info().
		Int("deleted", deletedCount).
		Str("size", humanize.Bytes(uint64(deletedSize))).
		Msg("original files deleted")
}
