// Package model contains domain models passed between layers.
package model

import (
	"net/url"
	"sort"
)

// SourceID names one upstream environmental dataset.
type SourceID string

const (
	SourcePermits        SourceID = "permits"        // national permit registry
	SourceEmissions      SourceID = "emissions"      // national emissions database
	SourceCertifications SourceID = "certifications" // international certification registry
	SourceRegional       SourceID = "regional"       // regional environmental indicator set
	SourceGridded        SourceID = "gridded"        // global gridded emissions dataset
)

// Sources lists every source in its fixed reporting order.
var Sources = []SourceID{
	SourcePermits,
	SourceEmissions,
	SourceCertifications,
	SourceRegional,
	SourceGridded,
}

// Order returns the position of the source in the fixed reporting order.
// Unknown sources sort last.
func (s SourceID) Order() int {
	for i, id := range Sources {
		if id == s {
			return i
		}
	}
	return len(Sources)
}

// Valid reports whether s is one of the known sources.
func (s SourceID) Valid() bool {
	return s.Order() < len(Sources)
}

func (s SourceID) String() string { return string(s) }

// ParseSource maps a source name to its SourceID.
func ParseSource(name string) (SourceID, bool) {
	id := SourceID(name)
	return id, id.Valid()
}

// Params are the upstream request parameters for one fetch.
type Params map[string]string

// Key serializes params deterministically: keys sorted, empty values dropped.
// Equivalent parameter sets always produce the same key.
func (p Params) Key() string {
	v := url.Values{}
	for k, val := range p {
		if val == "" {
			continue
		}
		v.Set(k, val)
	}
	// url.Values.Encode sorts by key.
	return v.Encode()
}

// Clone returns a copy safe to mutate.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Names returns the non-empty parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k, v := range p {
		if v != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// RawRow is one untyped row returned by a source adapter.
type RawRow map[string]any

// RefreshJob asks the cache warmer to refresh one (source, params) slot.
type RefreshJob struct {
	Source SourceID
	Params Params
}
