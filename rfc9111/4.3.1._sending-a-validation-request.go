package rfc9111

import "net/http"

// §  4.3.1.  Sending a Validation Request
// §
// §     When generating a conditional request for validation, a cache either
// §     starts with a request it is attempting to satisfy or -- if it is
// §     initiating the request independently -- synthesizes a request using
// §     a stored response by copying the method, target URI, and request
// §     header fields identified by the Vary header field (Section 4.1).
// §
// §     It then updates that request with one or more precondition header
// §     fields.  These contain validator metadata sourced from a stored
// §     response(s) that has the same URI.
// §
// §     [...]
// §
// §     When generating a conditional request for validation, a cache:
// §
// §     *  MUST send the relevant entity tags (using If-Match, If-None-Match,
// §        or If-Range) if the entity tags were provided in the stored
// §        response(s) being validated.
// §
// §     *  SHOULD send the Last-Modified value (using If-Modified-Since) if
// §        the request is not for a subrange, a single stored response is
// §        being validated, and that response contains a Last-Modified value.

// HasValidator returns whether the stored response header carries a
// validator usable in a conditional request.
func HasValidator(stored http.Header) bool {
	return stored.Get("ETag") != "" || stored.Get("Last-Modified") != ""
}

// AddValidators adds precondition header fields to req, sourced from the
// stored response header. It returns false if no validator was added.
// Preconditions already present on the request are left as is.
func AddValidators(req *http.Request, stored http.Header) bool {
	if req.Header.Get("If-None-Match") != "" || req.Header.Get("If-Modified-Since") != "" {
		return false
	}
	added := false
	if etag := stored.Get("ETag"); etag != "" {
		req.Header.Set("If-None-Match", etag)
		added = true
	}
	if lastModified := stored.Get("Last-Modified"); lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
		added = true
	}
	return added
}
