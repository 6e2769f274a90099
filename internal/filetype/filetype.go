// Package filetype maps file extensions to the metadata readers able to
// extract a capture date from them.
package filetype

import (
	"fmt"
	"strings"
)

// ReaderKind identifies a metadata reader variant.
type ReaderKind string

const (
	// Container parses the file structure (ISO-BMFF boxes, image EXIF blocks).
	// Works for every supported type but is slower.
	Container ReaderKind = "container"
	// Exif reads the EXIF DateTimeOriginal tag directly.
	Exif ReaderKind = "exif"
)

// Valid reports whether k names a known reader variant.
func (k ReaderKind) Valid() bool {
	return k == Container || k == Exif
}

// Spec describes one file type: the extensions it owns, the readers able to
// handle it in preference order, and which of them is used by default.
type Spec struct {
	Name       string
	Extensions []string
	Readers    []ReaderKind
	Preferred  int
}

// PreferredReader returns the reader variant instantiated by default.
func (s Spec) PreferredReader() ReaderKind {
	return s.Readers[s.Preferred]
}

// HasExtension reports whether ext, already lowercased, belongs to s.
func (s Spec) HasExtension(ext string) bool {
	for _, e := range s.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Registry is an ordered, immutable list of specs. It is safe for
// concurrent use.
type Registry struct {
	specs []Spec
}

// NewRegistry validates specs and returns a registry scanning them in the
// given order. Extensions are lowercased.
func NewRegistry(specs []Spec) (*Registry, error) {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if len(s.Extensions) == 0 {
			return nil, fmt.Errorf("file type %q has no extensions", s.Name)
		}
		if len(s.Readers) == 0 {
			return nil, fmt.Errorf("file type %q has no readers", s.Name)
		}
		if s.Preferred < 0 || s.Preferred >= len(s.Readers) {
			return nil, fmt.Errorf("file type %q: preferred index %d out of range", s.Name, s.Preferred)
		}
		for _, r := range s.Readers {
			if !r.Valid() {
				return nil, fmt.Errorf("file type %q: unknown reader %q", s.Name, r)
			}
		}

		seen := make(map[string]bool, len(s.Extensions))
		exts := make([]string, 0, len(s.Extensions))
		for _, e := range s.Extensions {
			e = strings.ToLower(strings.TrimPrefix(e, "."))
			if e == "" {
				return nil, fmt.Errorf("file type %q has an empty extension", s.Name)
			}
			if seen[e] {
				return nil, fmt.Errorf("file type %q lists extension %q twice", s.Name, e)
			}
			seen[e] = true
			exts = append(exts, e)
		}

		out = append(out, Spec{
			Name:       s.Name,
			Extensions: exts,
			Readers:    append([]ReaderKind(nil), s.Readers...),
			Preferred:  s.Preferred,
		})
	}
	return &Registry{specs: out}, nil
}

// Lookup returns the first spec owning ext. ext must already be lowercase.
// A miss is not an error; it means the type is unsupported.
func (r *Registry) Lookup(ext string) (Spec, bool) {
	for _, s := range r.specs {
		if s.HasExtension(ext) {
			return s.clone(), true
		}
	}
	return Spec{}, false
}

// Specs returns a copy of the registered specs in scan order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.clone()
	}
	return out
}

// clone copies s so callers cannot reach the registry's slices.
func (s Spec) clone() Spec {
	s.Extensions = append([]string(nil), s.Extensions...)
	s.Readers = append([]ReaderKind(nil), s.Readers...)
	return s
}

var defaultSpecs = []Spec{
	{
		Name:       "jpeg",
		Extensions: []string{"jpg", "jpeg"},
		Readers:    []ReaderKind{Container, Exif},
		Preferred:  1,
	},
	{
		Name:       "mp4",
		Extensions: []string{"mp4", "mpeg4"},
		Readers:    []ReaderKind{Container},
		Preferred:  0,
	},
	{
		Name:       "mov",
		Extensions: []string{"mov"},
		Readers:    []ReaderKind{Container},
		Preferred:  0,
	},
}

// DefaultRegistry returns the built-in JPEG, MP4 and MOV table.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultSpecs)
	if err != nil {
		panic(err)
	}
	return r
}
