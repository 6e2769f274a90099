// Package resolver picks the metadata reader for a file from its extension.
package resolver

import (
	"path/filepath"
	"strings"

	"github.com/tonimelisma/photokeeper/internal/filetype"
	"github.com/tonimelisma/photokeeper/internal/reader"
)

// Resolver maps filenames to readers through a Registry. It keeps no
// per-file state and is safe for concurrent use.
type Resolver struct {
	registry *filetype.Registry
	opts     reader.Options
	fallback bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReaderOptions sets the options passed to every reader created.
func WithReaderOptions(opts reader.Options) Option {
	return func(r *Resolver) {
		r.opts = opts
	}
}

// WithFallback makes Resolve return a reader that tries the preferred
// variant first and then every other variant of the type in order.
func WithFallback(enabled bool) Option {
	return func(r *Resolver) {
		r.fallback = enabled
	}
}

// New returns a resolver over registry. A nil registry uses the default table.
func New(registry *filetype.Registry, opts ...Option) *Resolver {
	if registry == nil {
		registry = filetype.DefaultRegistry()
	}
	r := &Resolver{
		registry: registry,
		opts:     reader.Options{Timeout: reader.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extension returns the lowercased text after the last dot of filename's
// base name. A name without a dot is its own extension.
func Extension(filename string) string {
	base := filepath.Base(filename)
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	return strings.ToLower(base)
}

// Lookup returns the spec owning filename's extension.
func (r *Resolver) Lookup(filename string) (filetype.Spec, bool) {
	return r.registry.Lookup(Extension(filename))
}

// Resolve returns the preferred reader for filename, or false when the type
// is not supported.
func (r *Resolver) Resolve(filename string) (reader.Reader, bool) {
	spec, ok := r.Lookup(filename)
	if !ok {
		return nil, false
	}

	preferred, err := reader.New(spec.PreferredReader(), filename, r.opts)
	if err != nil {
		return nil, false
	}
	if !r.fallback || len(spec.Readers) == 1 {
		return preferred, true
	}

	chain := []reader.Reader{preferred}
	for i, kind := range spec.Readers {
		if i == spec.Preferred {
			continue
		}
		rd, err := reader.New(kind, filename, r.opts)
		if err != nil {
			continue
		}
		chain = append(chain, rd)
	}
	return reader.NewFallback(chain...), true
}
