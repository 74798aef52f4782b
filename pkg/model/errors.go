package model

import "errors"

// Custom errors.
var (
	// ErrMemoryUsedExceedsTotal indicates a reader reported memory_used
	// greater than memory_total while memory_total was known. This should
	// never happen; readers must clamp or omit before returning.
	ErrMemoryUsedExceedsTotal = errors.New("model: memory_used exceeds memory_total")
)
