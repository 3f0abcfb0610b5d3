// Package country canonicalizes free-text country names and codes.
package country

import (
	"context"
	"strings"

	"github.com/okian/cevs/internal/domain/dedupe"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/logger"
	"github.com/okian/cevs/pkg/metrics"
)

// Method tells how a Resolution was reached.
type Method string

const (
	MethodExact    Method = "exact"
	MethodFuzzy    Method = "fuzzy"
	MethodFallback Method = "fallback"
	MethodEmpty    Method = "empty"
)

// Resolution is the diagnostic form of Normalize.
type Resolution struct {
	Input      string  `json:"input"`
	Key        string  `json:"key"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
	Ambiguous  bool    `json:"ambiguous,omitempty"`
}

// Mapped reports whether the key came from the table.
func (r Resolution) Mapped() bool {
	return r.Method == MethodExact || r.Method == MethodFuzzy || r.Method == MethodEmpty
}

// Err returns model.ErrNormalizationAmbiguous for ambiguous inputs.
func (r Resolution) Err() error {
	if r.Ambiguous {
		return model.ErrNormalizationAmbiguous
	}
	return nil
}

// Resolve maps raw to a canonical key and reports how. Pure and total.
func Resolve(raw string) Resolution {
	cleaned := clean(raw)
	if cleaned == "" {
		return Resolution{Input: raw, Key: Unknown, Method: MethodEmpty, Confidence: 1}
	}
	if key, ok := exact[cleaned]; ok {
		return Resolution{Input: raw, Key: key, Method: MethodExact, Confidence: 1}
	}
	fallback := strings.ReplaceAll(cleaned, " ", "_")
	if m, ok := fuzzyMatch(cleaned); ok {
		if m.ambiguous {
			return Resolution{Input: raw, Key: fallback, Method: MethodFallback, Confidence: m.confidence, Ambiguous: true}
		}
		return Resolution{Input: raw, Key: m.key, Method: MethodFuzzy, Confidence: m.confidence}
	}
	return Resolution{Input: raw, Key: fallback, Method: MethodFallback}
}

// Normalize returns the canonical key for raw. Empty input yields Unknown.
func Normalize(raw string) string {
	return Resolve(raw).Key
}

// Resolver is anything that maps raw country text to a canonical key.
type Resolver interface {
	Normalize(raw string) string
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(string) string

func (f ResolverFunc) Normalize(raw string) string { return f(raw) }

// Pure is the Resolver with no diagnostics.
var Pure Resolver = ResolverFunc(Normalize)

// Normalizer wraps Resolve with diagnostics: every fallback is counted and
// each distinct fallback input is logged once.
type Normalizer struct {
	seen dedupe.Deduper
	log  logger.Logger
}

// NewNormalizer returns a Normalizer with the given options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.seen == nil {
		n.seen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(defaultSeenSize))
	}
	if n.log == nil {
		n.log = logger.Nop()
	}
	return n
}

// Normalize resolves raw and reports fallbacks.
func (n *Normalizer) Normalize(raw string) string {
	return n.Resolve(raw).Key
}

// Resolve is Resolve with diagnostics.
func (n *Normalizer) Resolve(raw string) Resolution {
	res := Resolve(raw)
	if res.Mapped() {
		return res
	}

	reason := "unmapped"
	if res.Ambiguous {
		reason = "ambiguous"
	}
	metrics.RecordUnmappedCountry(reason)

	ctx := context.Background()
	if !n.seen.SeenAndRecord(ctx, reason+"|"+res.Key) {
		n.log.Warn(ctx, "country resolved by fallback",
			logger.String("input", raw),
			logger.String("key", res.Key),
			logger.String("reason", reason),
			logger.Float64("confidence", res.Confidence))
	}
	return res
}

// Unmapped returns how many distinct fallback inputs have been seen.
func (n *Normalizer) Unmapped() int64 {
	return n.seen.Size()
}
