package cache

import (
	"net/http"
	"time"

	"github.com/always-cache/cacheclient/rfc5861"
	"github.com/always-cache/cacheclient/rfc9111"
)

// RevalidationState tells whether a background revalidation of the entry is
// in flight.
type RevalidationState int

const (
	Idle RevalidationState = iota
	Revalidating
)

func (s RevalidationState) String() string {
	if s == Revalidating {
		return "revalidating"
	}
	return "idle"
}

// Entry is a stored response and its freshness metadata.
type Entry struct {
	Key        string
	StatusCode int
	Header     http.Header
	Body       []byte
	// The value of the clock when the request was sent.
	RequestedAt time.Time
	// The value of the clock when the response was received.
	StoredAt time.Time
	// Age of the response when it was received, see rfc9111.InitialAge.
	InitialAge           time.Duration
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration

	// Set by the store.
	State RevalidationState
	// Incremented by the store on every Put.
	Version uint64
}

// Age returns the current age of the stored response.
func (e Entry) Age(now time.Time) time.Duration {
	return rfc9111.CurrentAge(e.InitialAge, e.StoredAt, now)
}

// Freshness classifies the entry at time now.
func (e Entry) Freshness(now time.Time) rfc5861.Freshness {
	return rfc5861.Classify(e.StoredAt.Add(-e.InitialAge), e.MaxAge, e.StaleWhileRevalidate, now)
}

// TimeToLive is the remaining freshness lifetime; negative when stale.
func (e Entry) TimeToLive(now time.Time) time.Duration {
	return e.MaxAge - e.Age(now)
}

// Size is the size counted against the maximum object size.
func (e Entry) Size() int64 {
	return int64(len(e.Body))
}

// clone copies the header, the body is shared and never modified.
func (e Entry) clone() Entry {
	e.Header = e.Header.Clone()
	return e
}
