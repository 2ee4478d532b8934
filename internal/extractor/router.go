// Package extractor routes a monitor's source identifier to the extractor
// implementation that can search it.
package extractor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// ErrUnsupportedSource indicates no extractor is registered for a source.
// The scheduler marks such monitors unsupported instead of attempting them.
var ErrUnsupportedSource = errors.New("unsupported source")

// Router maps source identifiers to extractors. Selection is a table lookup,
// never runtime type inspection.
type Router struct {
	extractors map[monitor.Source]monitor.Extractor
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{extractors: make(map[monitor.Source]monitor.Extractor)}
}

// Register binds an extractor to a source identifier, replacing any previous
// binding.
func (r *Router) Register(source monitor.Source, e monitor.Extractor) {
	r.extractors[source] = e
}

// Lookup returns the extractor for source, or ErrUnsupportedSource.
func (r *Router) Lookup(source monitor.Source) (monitor.Extractor, error) {
	e, ok := r.extractors[source]
	if !ok || e == nil {
		return nil, fmt.Errorf("source %q: %w", source, ErrUnsupportedSource)
	}
	return e, nil
}

// Supports reports whether a source has a registered extractor.
func (r *Router) Supports(source monitor.Source) bool {
	e, ok := r.extractors[source]
	return ok && e != nil
}

// Sources lists the registered source identifiers in stable order.
func (r *Router) Sources() []monitor.Source {
	out := make([]monitor.Source, 0, len(r.extractors))
	for s, e := range r.extractors {
		if e == nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
