// Package rfc5861 classifies stored responses according to the
// stale-while-revalidate extension of RFC 5861.
package rfc5861

import (
	"net/http"
	"time"

	"github.com/always-cache/cacheclient/rfc9111"
)

// §  3.  The stale-while-revalidate Cache-Control Extension
// §
// §     When present in an HTTP response, the stale-while-revalidate Cache-
// §     Control extension indicates that caches MAY serve the response in
// §     which it appears after it becomes stale, up to the indicated number
// §     of seconds.
// §
// §       stale-while-revalidate = "stale-while-revalidate" "=" delta-seconds
// §
// §     If a cached response is served stale due to the presence of this
// §     extension, the cache SHOULD attempt to revalidate it while still
// §     serving stale responses (i.e., without blocking).

// Freshness is the classification of a stored response at a point in time.
type Freshness int

const (
	// Fresh responses are served without contacting the origin.
	Fresh Freshness = iota
	// StaleRevalidatable responses are served while revalidating in the background.
	StaleRevalidatable
	// StaleExpired responses must not be served.
	StaleExpired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case StaleRevalidatable:
		return "stale-revalidatable"
	case StaleExpired:
		return "stale-expired"
	}
	return "unknown"
}

// Directives returns the freshness lifetime and the stale-while-revalidate
// window declared by the response header.
// The boolean is false when the response lacks either a freshness lifetime
// or a valid stale-while-revalidate, which makes it non-cacheable.
// In a shared cache s-maxage overrides max-age.
func Directives(header http.Header, shared bool) (maxAge, staleWhileRevalidate time.Duration, ok bool) {
	cc := rfc9111.ResponseCacheControl(header)
	if shared {
		maxAge, ok = cc.SMaxAge()
	}
	if !ok {
		maxAge, ok = cc.MaxAge()
	}
	if !ok {
		return 0, 0, false
	}
	staleWhileRevalidate, ok = cc.StaleWhileRevalidate()
	if !ok {
		return 0, 0, false
	}
	// §  5.2.2.2.  must-revalidate (RFC 9111)
	// §
	// §     The must-revalidate response directive indicates that once the
	// §     response has become stale, a cache MUST NOT reuse that response to
	// §     satisfy another request until it has been successfully validated by
	// §     the origin
	if cc.NoCache() || cc.HasDirective("must-revalidate") || cc.HasDirective("proxy-revalidate") {
		return maxAge, 0, true
	}
	return maxAge, staleWhileRevalidate, true
}

// Classify returns the freshness of a response stored at storedAt, with the
// given freshness lifetime and stale-while-revalidate window, at time now.
//
//	age <  max-age                               Fresh
//	max-age <= age < max-age + swr               StaleRevalidatable
//	age >= max-age + swr                         StaleExpired
func Classify(storedAt time.Time, maxAge, staleWhileRevalidate time.Duration, now time.Time) Freshness {
	age := now.Sub(storedAt)
	if age < 0 {
		age = 0
	}
	switch {
	case age < maxAge:
		return Fresh
	case age < maxAge+staleWhileRevalidate:
		return StaleRevalidatable
	default:
		return StaleExpired
	}
}
