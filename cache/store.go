// Package cache stores HTTP responses in memory.
package cache

import "errors"

// Store keeps cache entries by key.
// Implementations must be safe for concurrent use, and operations on one
// key must not interleave: no caller ever observes a partially written entry.
type Store interface {
	// Get returns a copy of the entry, if present. It counts as an access
	// for eviction.
	Get(key string) (Entry, bool, error)
	// Put stores the entry under entry.Key, replacing any previous entry.
	// A revalidation in flight for the key stays in flight. Entries larger
	// than the maximum object size are not stored, in which case Put returns
	// false and no error. Putting a new key into a full store evicts the
	// least recently accessed entry.
	Put(entry Entry) (bool, error)
	// Invalidate removes the entry, if present.
	Invalidate(key string) error
	// Len returns the number of entries.
	Len() int
	// BeginRevalidation marks the key as Revalidating and returns a token
	// for EndRevalidation. It returns false if there is no entry or if a
	// revalidation of the key is already in flight.
	// The mark belongs to the key, not to the stored content: replacing or
	// invalidating the entry leaves it in place.
	BeginRevalidation(key string) (uint64, bool, error)
	// EndRevalidation clears the mark, if it still holds the token returned
	// by BeginRevalidation.
	EndRevalidation(key string, token uint64) error
	Stats() Stats
	Close() error
}

// Options are the capacity limits of a store.
type Options struct {
	// Maximum number of entries. Defaults to 1000.
	MaxEntries int
	// Maximum body size of an entry in bytes. Defaults to 8192.
	MaxObjectSize int64
}

const (
	DefaultMaxEntries    = 1000
	DefaultMaxObjectSize = 8192
)

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.MaxObjectSize <= 0 {
		o.MaxObjectSize = DefaultMaxObjectSize
	}
	return o
}

// Stats contains storage-level statistics.
type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Evictions int64 `json:"evictions"`
	Rejected  int64 `json:"rejected"`
}

var ErrClosed = errors.New("cache store closed")
