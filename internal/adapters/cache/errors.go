package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrUnknownSource = errors.New("cache: unknown source")
	ErrNilLoader     = errors.New("cache: nil loader")
)
