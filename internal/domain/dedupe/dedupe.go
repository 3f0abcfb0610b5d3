// Package dedupe tracks first sightings of string keys.
package dedupe

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 50000

// Deduper records seen keys so a caller can act only on the first sighting.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so its next sighting counts as new again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper is bounded by an LRU; the least recently seen key is
// forgotten first once maxSize is reached.
type inMemoryDeduper struct {
	maxSize int
	seen    *lru.Cache[string, struct{}]
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = defaultMaxSize
	}
	// lru.New only fails for a non-positive size.
	d.seen, _ = lru.New[string, struct{}](d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	ok, _ := d.seen.ContainsOrAdd(id, struct{}{})
	if ok {
		// refresh recency
		d.seen.Get(id)
	}
	return ok
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Remove(id)
}

func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.Len())
}
