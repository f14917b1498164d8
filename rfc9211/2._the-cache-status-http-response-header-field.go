package rfc9211

import (
	"fmt"
	"strings"
)

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches' handling
// §     of the request corresponding to the response it occurs within.
// §
// §     Its value is a List:
// §
// §     Cache-Status   = sf-list
// §
// §     Each member of the List represents a cache that has handled the
// §     request.  The first member of the List represents the cache closest
// §     to the origin server, and the last member of the List represents the
// §     cache closest to the user (possibly including the user agent's cache
// §     itself, if it appends a value).

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

// §  2.2.  The fwd Parameter
// §
// §     "fwd" indicates that the request went forward towards the origin and
// §     why.
type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"

	// The request method's semantics require the request to be
	// forwarded.
	FwdReasonMethod FwdReason = "method"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"

	// The cache was able to select a fresh response for the
	// request, but the request's semantics (e.g., Cache-Control request
	// directives) did not allow its use.
	FwdReasonRequest FwdReason = "request"

	// The cache was able to select a response for the request, but
	// it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus is one member of the Cache-Status list.
type CacheStatus struct {
	Status    CacheStatusStatus
	FwdReason FwdReason
	// §  2.3.  The fwd-status Parameter
	FwdStatus int
	// §  2.4.  The ttl Parameter
	// §
	// §     "ttl" indicates the response's remaining freshness lifetime as
	// §     calculated by the cache, as an integer number of seconds, measured
	// §     when the response header section is sent by the cache.  This
	// §     includes freshness assigned by the cache
	// §     [...] This can be negative, in which case the response is stale.
	TimeToLive int
	ttlSet     bool
	// §  2.5.  The stored Parameter
	Stored bool
	// §  2.8.  The detail Parameter
	Detail string
}

func (cs *CacheStatus) Hit() {
	cs.Status = CacheStatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = CacheStatusFwd
	cs.FwdReason = reason
}

func (cs *CacheStatus) SetTimeToLive(seconds int) {
	cs.TimeToLive = seconds
	cs.ttlSet = true
}

// String returns the structured field representation of the member,
// e.g. `cacheclient; fwd=stale; fwd-status=200; stored`.
func (cs CacheStatus) String() string {
	params := []string{CacheName}
	if cs.Status == CacheStatusHit {
		params = append(params, "hit")
	} else if cs.FwdReason != "" {
		params = append(params, "fwd="+string(cs.FwdReason))
	}
	if cs.FwdStatus != 0 {
		params = append(params, fmt.Sprintf("fwd-status=%d", cs.FwdStatus))
	}
	if cs.ttlSet {
		params = append(params, fmt.Sprintf("ttl=%d", cs.TimeToLive))
	}
	if cs.Stored {
		params = append(params, "stored")
	}
	if cs.Detail != "" {
		params = append(params, fmt.Sprintf("detail=%q", cs.Detail))
	}
	return strings.Join(params, "; ")
}
