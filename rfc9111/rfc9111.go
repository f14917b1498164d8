// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) that the
// caching client relies on: Cache-Control parsing, age calculation,
// storability and validation requests.
//
// Files are named after the section of the RFC they implement, and the
// relevant RFC text is quoted inline with a leading "§".
// Vary handling, authentication-aware caching and partial content are not
// implemented.
package rfc9111

import "net/http"

// Shared and private caches differ in how "private" and "s-maxage" are
// interpreted.
const (
	Shared  = true
	Private = false
)

// understoodMethod returns whether the request method is one whose responses
// this cache stores.
func understoodMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
