package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abema/go-mp4"
	"github.com/evanoberholster/imagemeta"

	"github.com/tonimelisma/photokeeper/internal/filetype"
)

// appleEpochOffset is the number of seconds between 1904-01-01 (the
// ISO-BMFF epoch) and 1970-01-01.
const appleEpochOffset = 2082844800

var errNoCreationDate = errors.New("no creation date")

// ContainerReader reads the creation date from the file's container
// structure. ISO-BMFF files (MOV, MP4, 3GP) use the movie header; images use
// their embedded EXIF block.
type ContainerReader struct {
	base
	Timeout time.Duration
}

// NewContainerReader returns a container reader for filename using
// DefaultTimeout.
func NewContainerReader(filename string) *ContainerReader {
	return &ContainerReader{base: base{filename: filename}, Timeout: DefaultTimeout}
}

// Kind returns filetype.Container.
func (r *ContainerReader) Kind() filetype.ReaderKind {
	return filetype.Container
}

// Parse extracts the creation date. Files no parser recognises, corrupt
// containers and containers without a date all return an error wrapping
// ErrMetadataUnavailable.
func (r *ContainerReader) Parse(ctx context.Context) (CaptureDate, error) {
	t, err := decode(ctx, r.Timeout, func() (time.Time, error) {
		return containerCreationTime(r.filename)
	})
	if err != nil {
		return CaptureDate{}, unavailable(err)
	}
	return r.set(t)
}

type containerFormat int

const (
	formatUnknown containerFormat = iota
	formatISOBMFF
	formatImage
)

// heifBrands are ISO-BMFF major brands holding still images rather than a
// movie header.
var heifBrands = map[string]bool{
	"heic": true, "heix": true, "heim": true, "heis": true,
	"hevc": true, "hevx": true, "mif1": true, "msf1": true,
	"avif": true, "avis": true,
}

// sniff picks a parser from the first bytes of a file.
func sniff(header []byte) containerFormat {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return formatImage
	case bytes.HasPrefix(header, []byte("II*\x00")), bytes.HasPrefix(header, []byte("MM\x00*")):
		return formatImage
	}
	if len(header) < 8 {
		return formatUnknown
	}
	switch string(header[4:8]) {
	case "ftyp":
		if len(header) >= 12 && heifBrands[string(header[8:12])] {
			return formatImage
		}
		return formatISOBMFF
	case "moov", "mdat", "wide", "free", "skip":
		// QuickTime files predating ftyp
		return formatISOBMFF
	}
	return formatUnknown
}

func containerCreationTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return time.Time{}, err
	}
	format := sniff(header[:n])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return time.Time{}, err
	}

	switch format {
	case formatISOBMFF:
		return movieCreationTime(f)
	case formatImage:
		return imageCreationTime(f)
	default:
		return time.Time{}, fmt.Errorf("%w: unable to create parser for %s", ErrDecode, path)
	}
}

// movieCreationTime reads creation_time from moov/mvhd.
func movieCreationTime(r io.ReadSeeker) (time.Time, error) {
	boxes, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(boxes) == 0 {
		return time.Time{}, fmt.Errorf("%w: no movie header", errNoCreationDate)
	}

	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unexpected mvhd payload %T", ErrDecode, boxes[0].Payload)
	}

	var created uint64
	if mvhd.GetVersion() == 0 {
		created = uint64(mvhd.CreationTimeV0)
	} else {
		created = mvhd.CreationTimeV1
	}
	if created == 0 {
		return time.Time{}, fmt.Errorf("%w: creation time unset", errNoCreationDate)
	}
	if created < appleEpochOffset {
		return time.Time{}, fmt.Errorf("%w: creation time %d predates 1970", errNoCreationDate, created)
	}

	return time.Unix(int64(created-appleEpochOffset), 0).UTC(), nil
}

// imageCreationTime reads DateTimeOriginal, falling back to CreateDate.
func imageCreationTime(r io.ReadSeeker) (time.Time, error) {
	e, err := imagemeta.Decode(r)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if t := e.DateTimeOriginal(); !t.IsZero() {
		return t, nil
	}
	if t := e.CreateDate(); !t.IsZero() {
		return t, nil
	}
	return time.Time{}, errNoCreationDate
}
