// Package reader extracts the capture year and month from media files.
//
// A Reader is bound to one file. Parse either populates both year and month
// or leaves the reader undated; it never reports a partial date. Failures are
// returned as errors wrapping ErrMetadataUnavailable so callers can route the
// file to a failed bucket without aborting a batch.
package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tonimelisma/photokeeper/internal/filetype"
)

var (
	// ErrUnsupportedType means no reader is registered for the file's extension.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrMetadataUnavailable means a reader ran but found no capture date.
	ErrMetadataUnavailable = errors.New("capture date unavailable")
	// ErrDecode means a metadata decoder rejected the file.
	ErrDecode = errors.New("metadata decode failed")
	// ErrDecodeTimeout means a decoder did not finish within its time bound.
	ErrDecodeTimeout = errors.New("metadata decode timed out")
)

// DefaultTimeout bounds a single decode call.
const DefaultTimeout = 30 * time.Second

// CaptureDate is the year and month a file was recorded.
type CaptureDate struct {
	Year  int
	Month time.Month
}

// Valid reports whether d is a real calendar month.
func (d CaptureDate) Valid() bool {
	return d.Year > 0 && d.Month >= time.January && d.Month <= time.December
}

// Path returns the destination subdirectory for d, e.g. "2024/06".
func (d CaptureDate) Path() string {
	return fmt.Sprintf("%d/%02d", d.Year, int(d.Month))
}

func (d CaptureDate) String() string {
	return fmt.Sprintf("%d-%02d", d.Year, int(d.Month))
}

// Reader extracts a capture date from one file.
type Reader interface {
	// Filename returns the file the reader is bound to.
	Filename() string
	// Kind returns the reader variant.
	Kind() filetype.ReaderKind
	// Parse reads the file's metadata. On success the date is also
	// available through Date.
	Parse(ctx context.Context) (CaptureDate, error)
	// Date returns the parsed date, or false if Parse has not succeeded.
	Date() (CaptureDate, bool)
}

// Options configure readers created by New.
type Options struct {
	// Timeout bounds each decode call. Zero disables the bound.
	Timeout time.Duration
}

// New returns the reader variant kind bound to filename.
func New(kind filetype.ReaderKind, filename string, opts Options) (Reader, error) {
	switch kind {
	case filetype.Exif:
		return &ExifReader{base: base{filename: filename}, Timeout: opts.Timeout}, nil
	case filetype.Container:
		return &ContainerReader{base: base{filename: filename}, Timeout: opts.Timeout}, nil
	default:
		return nil, fmt.Errorf("unknown reader %q", kind)
	}
}

// base holds the state shared by every reader variant.
type base struct {
	filename string
	date     CaptureDate
	ok       bool
}

// Filename returns the file the reader is bound to.
func (b *base) Filename() string {
	return b.filename
}

// Date returns the date recorded by the last successful Parse.
func (b *base) Date() (CaptureDate, bool) {
	return b.date, b.ok
}

// set records t's year and month together, or nothing at all.
func (b *base) set(t time.Time) (CaptureDate, error) {
	d := CaptureDate{Year: t.Year(), Month: t.Month()}
	if t.IsZero() || !d.Valid() {
		return CaptureDate{}, fmt.Errorf("%w: invalid date %v", ErrMetadataUnavailable, t)
	}
	b.date = d
	b.ok = true
	return d, nil
}

// unavailable wraps a decoder failure so it matches ErrMetadataUnavailable.
func unavailable(err error) error {
	if errors.Is(err, ErrMetadataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
}

type result[T any] struct {
	val T
	err error
}

// decode runs fn, giving up after timeout or when ctx is done. On timeout the
// goroutine running fn is left to finish on its own. Panics in fn are
// reported as ErrDecode. fn is not started once ctx is done.
func decode[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch := make(chan result[T], 1)
	go func() {
		var res result[T]
		defer func() {
			if p := recover(); p != nil {
				res.err = fmt.Errorf("%w: panic: %v", ErrDecode, p)
			}
			ch <- res
		}()
		res.val, res.err = fn()
	}()

	select {
	case res := <-ch:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrDecodeTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}
