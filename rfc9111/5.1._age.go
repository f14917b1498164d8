package rfc9111

import (
	"net/http"
	"time"
)

// §  5.1.  Age
// §
// §     The "Age" response header field conveys the sender's estimate of the
// §     time since the response was generated or successfully validated at
// §     the origin server.
// §
// §       Age = delta-seconds
// §
// §     A cache SHOULD ignore a response with an Age field value that is not
// §     a valid delta-seconds.

// Age returns the value of the Age header field, or 0 if absent or invalid.
func Age(header http.Header) time.Duration {
	if secondsStr := header.Get("Age"); secondsStr != "" {
		if age, ok := deltaSeconds(secondsStr); ok {
			return age
		}
	}
	return 0
}

// §     The presence of an Age header field implies that the response was not
// §     generated or validated by the origin server for this request.

// SetAge sets the Age header field of a response constructed from the cache.
func SetAge(header http.Header, age time.Duration) {
	header.Set("Age", toDeltaSeconds(age))
}
