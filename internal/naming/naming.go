// Package naming generates destination filenames that do not collide with
// files already present in a directory.
//
// A taken name gets a numeric suffix before its extension: "photo.jpg"
// becomes "photo_1.jpg", "photo_1.jpg" becomes "photo_2.jpg". A trailing
// "_word" that is not a number is kept and a fresh suffix appended, so
// "shot_HDR.jpg" becomes "shot_HDR_1.jpg".
package naming

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxAttempts bounds the number of names EnsureUniqueName tries.
const MaxAttempts = 10000

// ErrNamingExhausted is returned when no free name was found within
// MaxAttempts candidates.
var ErrNamingExhausted = errors.New("no unique filename found")

// NextName returns the candidate following name. It does no I/O.
func NextName(name string) string {
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		stem, ext = name[:i], name[i:]
	}

	if i := strings.LastIndex(stem, "_"); i >= 0 {
		n, err := strconv.ParseUint(stem[i+1:], 10, 64)
		if err == nil && n < math.MaxUint64 {
			return stem[:i] + "_" + strconv.FormatUint(n+1, 10) + ext
		}
	}
	return stem + "_1" + ext
}

// EnsureUniqueName returns the base name of desired, or the first successor
// produced by NextName, for which exists reports false inside dir.
//
// The result is only free at the moment of the check. Callers creating files
// concurrently in the same directory must hold that directory's lock (see
// DirLocks) until the file is created.
func EnsureUniqueName(dir, desired string, exists func(path string) bool) (string, error) {
	name := filepath.Base(desired)
	for i := 0; i < MaxAttempts; i++ {
		if !exists(filepath.Join(dir, name)) {
			return name, nil
		}
		name = NextName(name)
	}
	return "", fmt.Errorf("%w for %s in %s after %d attempts", ErrNamingExhausted, filepath.Base(desired), dir, MaxAttempts)
}

// Exists reports whether path exists. Errors other than "not exist" count as
// existing so the name is not reused.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return !os.IsNotExist(err)
}
