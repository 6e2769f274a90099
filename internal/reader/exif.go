package reader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/tonimelisma/photokeeper/internal/filetype"
)

// exifDateLayout is the EXIF 2.x date format, "YYYY:MM:DD HH:MM:SS".
const exifDateLayout = "2006:01:02 15:04:05"

// ExifReader reads the EXIF DateTimeOriginal tag.
type ExifReader struct {
	base
	Timeout time.Duration
}

// NewExifReader returns an EXIF reader for filename using DefaultTimeout.
func NewExifReader(filename string) *ExifReader {
	return &ExifReader{base: base{filename: filename}, Timeout: DefaultTimeout}
}

// Kind returns filetype.Exif.
func (r *ExifReader) Kind() filetype.ReaderKind {
	return filetype.Exif
}

// Parse reads DateTimeOriginal. A file without the tag leaves the reader
// undated and returns ErrMetadataUnavailable.
func (r *ExifReader) Parse(ctx context.Context) (CaptureDate, error) {
	value, err := decode(ctx, r.Timeout, func() (string, error) {
		return exifField(r.filename, exif.DateTimeOriginal)
	})
	if err != nil {
		return CaptureDate{}, unavailable(err)
	}
	if value == "" {
		return CaptureDate{}, fmt.Errorf("%w: no %s tag", ErrMetadataUnavailable, exif.DateTimeOriginal)
	}

	t, err := time.Parse(exifDateLayout, value)
	if err != nil {
		return CaptureDate{}, unavailable(fmt.Errorf("%w: %s %q: %v", ErrDecode, exif.DateTimeOriginal, value, err))
	}
	return r.set(t)
}

// exifField returns the string value of an EXIF field, or "" when the file
// has EXIF data but not that field.
func exifField(path string, name exif.FieldName) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	tag, err := x.Get(name)
	if err != nil {
		if exif.IsTagNotPresentError(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	val, err := tag.StringVal()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return strings.TrimRight(val, "\x00 "), nil
}
