package rfc9111

import "net/http"

// §  4.4.  Invalidating Stored Responses
// §
// §     Because unsafe request methods (Section 9.2.1 of [HTTP]) such as PUT,
// §     POST, or DELETE have the potential for changing state on the origin
// §     server, intervening caches are required to invalidate stored
// §     responses to keep their contents up to date.
// §
// §     A cache MUST invalidate the target URI (Section 7.1 of [HTTP]) when it
// §     receives a non-error status code in response to an unsafe request
// §     method (including methods whose safety is unknown).

// MustInvalidate returns whether a response with the given status code to a
// request with the given method invalidates the stored responses of the
// target URI.
func MustInvalidate(method string, statusCode int) bool {
	return !safeMethod(method) && nonErrorStatus(statusCode)
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// §     Here, a "non-error response" is one with a 2xx (Successful) or 3xx
// §     (Redirection) status code.
func nonErrorStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}
