// Package mediatest writes minimal media files for tests.
package mediatest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"
	"time"
)

// AppleEpochOffset is the number of seconds between 1904-01-01 and
// 1970-01-01.
const AppleEpochOffset = 2082844800

// MovieTime converts t to ISO-BMFF seconds since 1904.
func MovieTime(t time.Time) uint32 {
	return uint32(t.Unix() + AppleEpochOffset)
}

// WriteMP4 writes an ftyp box followed by a moov box holding a version 0
// mvhd. creationTime is in seconds since 1904-01-01.
func WriteMP4(tb testing.TB, path string, creationTime uint32) {
	tb.Helper()

	// 8 header + 4 version/flags + 4 creation + 4 modification + 4 timescale
	// + 4 duration + 4 rate + 2 volume + 2 reserved + 8 reserved + 36 matrix
	// + 24 pre_defined + 4 next_track_id = 108
	mvhd := make([]byte, 108)
	binary.BigEndian.PutUint32(mvhd[0:4], uint32(len(mvhd)))
	copy(mvhd[4:8], "mvhd")
	binary.BigEndian.PutUint32(mvhd[12:16], creationTime) // creation_time
	binary.BigEndian.PutUint32(mvhd[16:20], creationTime) // modification_time
	binary.BigEndian.PutUint32(mvhd[20:24], 1000)         // timescale
	binary.BigEndian.PutUint32(mvhd[28:32], 0x00010000)   // rate 1.0
	binary.BigEndian.PutUint16(mvhd[32:34], 0x0100)       // volume 1.0
	binary.BigEndian.PutUint32(mvhd[44:48], 0x00010000)   // identity matrix
	binary.BigEndian.PutUint32(mvhd[60:64], 0x00010000)
	binary.BigEndian.PutUint32(mvhd[76:80], 0x40000000)
	binary.BigEndian.PutUint32(mvhd[104:108], 1) // next_track_id

	moov := make([]byte, 8)
	binary.BigEndian.PutUint32(moov[0:4], uint32(8+len(mvhd)))
	copy(moov[4:8], "moov")

	ftyp := make([]byte, 20)
	binary.BigEndian.PutUint32(ftyp[0:4], 20)
	copy(ftyp[4:8], "ftyp")
	copy(ftyp[8:12], "isom")
	binary.BigEndian.PutUint32(ftyp[12:16], 0x200)
	copy(ftyp[16:20], "isom")

	var data []byte
	data = append(data, ftyp...)
	data = append(data, moov...)
	data = append(data, mvhd...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatal(err)
	}
}

// EXIF tag ids for WriteExifJPEG.
const (
	TagDateTimeOriginal  uint16 = 0x9003
	TagDateTimeDigitized uint16 = 0x9004
)

// WriteExifJPEG writes an 8x8 JPEG with an APP1 EXIF segment. The EXIF
// sub-IFD contains a single ASCII tag with the given id and value, which must
// be longer than four bytes so it is stored out of line.
func WriteExifJPEG(tb testing.TB, path string, tagID uint16, value string) {
	tb.Helper()

	le := binary.LittleEndian
	tiff := make([]byte, 44)
	copy(tiff[0:2], "II")
	le.PutUint16(tiff[2:4], 42)
	le.PutUint32(tiff[4:8], 8) // IFD0 offset

	// IFD0: one entry pointing at the EXIF sub-IFD
	le.PutUint16(tiff[8:10], 1)
	le.PutUint16(tiff[10:12], 0x8769) // ExifIFDPointer
	le.PutUint16(tiff[12:14], 4)      // LONG
	le.PutUint32(tiff[14:18], 1)
	le.PutUint32(tiff[18:22], 26)
	le.PutUint32(tiff[22:26], 0) // no next IFD

	// EXIF sub-IFD: one ASCII entry stored at offset 44
	le.PutUint16(tiff[26:28], 1)
	le.PutUint16(tiff[28:30], tagID)
	le.PutUint16(tiff[30:32], 2) // ASCII
	le.PutUint32(tiff[32:36], uint32(len(value)+1))
	le.PutUint32(tiff[36:40], 44)
	le.PutUint32(tiff[40:44], 0)
	tiff = append(tiff, value...)
	tiff = append(tiff, 0)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	app1 := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(app1[2:4], uint16(len(payload)+2))
	app1 = append(app1, payload...)

	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: uint8(i * 4)}.Y
	}
	var body bytes.Buffer
	if err := jpeg.Encode(&body, img, nil); err != nil {
		tb.Fatal(err)
	}

	// APP1 goes right after SOI, ahead of the encoder's segments
	var data []byte
	data = append(data, body.Bytes()[:2]...)
	data = append(data, app1...)
	data = append(data, body.Bytes()[2:]...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatal(err)
	}
}
