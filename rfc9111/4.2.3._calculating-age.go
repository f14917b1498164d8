package rfc9111

import (
	"net/http"
	"time"
)

// §  4.2.3.  Calculating Age
// §
// §     The Age header field is used to convey an estimated age of the
// §     response message when obtained from a cache.
// §
// §     [...]
// §
// §       response_delay = response_time - request_time;
// §       corrected_age_value = age_value + response_delay;
// §
// §       corrected_initial_age = max(apparent_age, corrected_age_value);
// §
// §       resident_time = now - response_time;
// §       current_age = corrected_initial_age + resident_time;
//
// apparent_age is derived from the Date header, so it depends on the origin
// clock. It is left out: the corrected initial age is corrected_age_value.

// InitialAge returns the corrected initial age of a response received at
// responseTime for a request sent at requestTime.
func InitialAge(header http.Header, requestTime, responseTime time.Time) time.Duration {
	return Age(header) + durationMax(0, responseTime.Sub(requestTime))
}

// CurrentAge returns the age of a stored response at time now.
func CurrentAge(initialAge time.Duration, responseTime, now time.Time) time.Duration {
	return initialAge + durationMax(0, now.Sub(responseTime))
}

func durationMax(d1, d2 time.Duration) time.Duration {
	if d1 > d2 {
		return d1
	}
	return d2
}
