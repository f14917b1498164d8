package rfc9111

import "net/http"

// §  4.3.4.  Freshening Stored Responses upon Validation
// §
// §     When a cache receives a 304 (Not Modified) response, it needs to
// §     identify stored responses that are suitable for updating with the new
// §     information provided, and then do so.
// §
// §     [...]
// §
// §     For each stored response identified, the cache MUST update its header
// §     fields with the header fields provided in the 304 (Not Modified)
// §     response, as per Section 3.2.

// §  3.2.  Updating Stored Header Fields
// §
// §     Caches are required to update a stored response's header fields from
// §     another (typically newer) response in several situations
// §
// §     [...]
// §
// §     *  The cache MUST NOT update the following header fields: Content-
// §        Length, Content-Encoding, Transfer-Encoding
var notUpdatedHeaders = []string{"Content-Length", "Content-Encoding", "Transfer-Encoding", "Content-Range"}

// FreshenHeader returns a copy of the stored header updated with the fields
// of a 304 (Not Modified) response.
func FreshenHeader(stored, notModified http.Header) http.Header {
	updated := stored.Clone()
	if updated == nil {
		updated = make(http.Header)
	}
	for name, values := range notModified {
		if skipUpdate(name) {
			continue
		}
		updated[name] = append([]string(nil), values...)
	}
	return updated
}

func skipUpdate(name string) bool {
	for _, h := range notUpdatedHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}
