package domain

import "errors"

var (
	// ErrFetch indicates a single page could not be retrieved (network error,
	// timeout or non-success status). It never fails a whole sync on its own.
	ErrFetch = errors.New("fetch failed")

	// ErrManifest indicates a source manifest could not be fetched or parsed.
	// The source's sync fails and its previous index entry is kept.
	ErrManifest = errors.New("manifest unavailable")

	// ErrCacheRead indicates a cache entry could not be read or decoded.
	// Callers treat it as a cache miss.
	ErrCacheRead = errors.New("cache read failed")

	// ErrCachePersist indicates a cache entry could not be written.
	ErrCachePersist = errors.New("cache persist failed")

	// ErrInvalidArgument indicates an unknown source ID or a malformed query.
	ErrInvalidArgument = errors.New("invalid argument")
)
