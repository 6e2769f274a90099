package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonimelisma/photokeeper/internal/filetype"
)

// Fallback tries several readers for the same file in order and keeps the
// first date found.
type Fallback struct {
	readers []Reader
	used    Reader
}

// NewFallback returns a reader trying readers in the given order. All of
// them must be bound to the same file.
func NewFallback(readers ...Reader) *Fallback {
	return &Fallback{readers: readers}
}

// Filename returns the file the readers are bound to.
func (f *Fallback) Filename() string {
	if len(f.readers) == 0 {
		return ""
	}
	return f.readers[0].Filename()
}

// Kind returns the kind of the reader that produced the date, or of the
// first reader before a successful Parse.
func (f *Fallback) Kind() filetype.ReaderKind {
	if f.used != nil {
		return f.used.Kind()
	}
	if len(f.readers) == 0 {
		return ""
	}
	return f.readers[0].Kind()
}

// Parse returns the first date any reader finds. When all fail the
// joined errors wrap ErrMetadataUnavailable.
func (f *Fallback) Parse(ctx context.Context) (CaptureDate, error) {
	var errs []error
	for _, r := range f.readers {
		d, err := r.Parse(ctx)
		if err == nil {
			f.used = r
			return d, nil
		}
		if ctx.Err() != nil {
			return CaptureDate{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Kind(), err))
	}
	if len(errs) == 0 {
		return CaptureDate{}, fmt.Errorf("%w: no readers", ErrMetadataUnavailable)
	}
	return CaptureDate{}, unavailable(errors.Join(errs...))
}

// Date returns the date read by the successful reader.
func (f *Fallback) Date() (CaptureDate, bool) {
	if f.used == nil {
		return CaptureDate{}, false
	}
	return f.used.Date()
}
