package rfc9111

import "net/http"

// §  3.  Storing Responses in Caches
// §
// §     A cache MUST NOT store a response to a request unless:
// §
// §     *  the request method is understood by the cache;
// §
// §     *  the response status code is final (see Section 15 of [HTTP]);
// §
// §     *  the no-store cache directive is not present in the response (see
// §        Section 5.2.2.5);
// §
// §     *  if the cache is shared: the private response directive is either
// §        not present or allows a shared cache to store a modified response;
// §
// §     *  if the cache is shared: the Authorization header field is not
// §        present in the request (see Section 11.6.2 of [HTTP]) or a
// §        response directive is present that explicitly allows shared
// §        caching (see Section 3.5); and
// §
// §     *  the response contains at least one of the following:
// §        -  a public response directive (see Section 5.2.2.9);
// §        -  a private response directive, if the cache is not shared;
// §        -  a max-age response directive (see Section 5.2.2.1);
// §        -  if the cache is shared: an s-maxage response directive;
// §        -  a status code that is defined as heuristically cacheable.
//
// Expires and heuristic freshness are not used: without max-age (or s-maxage)
// the caching client cannot compute a freshness lifetime.

// MustNotStore returns whether the response to req MUST NOT be stored.
// The request method, and the status code and header of the response are
// consulted; the body is not.
func MustNotStore(req *http.Request, statusCode int, header http.Header, shared bool) bool {
	reqCacheControl := RequestCacheControl(req)
	resCacheControl := ResponseCacheControl(header)

	if !understoodMethod(req.Method) {
		return true
	}
	if !responseStatusCodeIsFinal(statusCode) || !heuristicallyCacheable(statusCode) {
		return true
	}
	// the request no-store directive applies to the response as well
	if reqCacheControl.NoStore() || resCacheControl.NoStore() {
		return true
	}
	if shared && resCacheControl.Private() {
		return true
	}
	if shared && req.Header.Get("Authorization") != "" && !mayUseResponseForAuthenticatedRequest(resCacheControl) {
		return true
	}
	_, hasMaxAge := resCacheControl.MaxAge()
	_, hasSMaxAge := resCacheControl.SMaxAge()
	return !(hasMaxAge || (shared && hasSMaxAge))
}

func responseStatusCodeIsFinal(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 599
}

// §  15.1.  Overview of Status Codes (RFC 9110)
// §
// §     Responses with status codes that are defined as heuristically
// §     cacheable (e.g., 200, 203, 204, 206, 300, 301, 308, 404, 405, 410,
// §     414, and 501 in this specification) can be reused by a cache with
// §     heuristic expiration unless otherwise indicated by the method
// §     definition or explicit cache controls
//
// 206 is left out, partial content is not stored.
func heuristicallyCacheable(statusCode int) bool {
	switch statusCode {
	case 200, 203, 204, 300, 301, 308, 404, 405, 410, 414, 501:
		return true
	}
	return false
}

// §  3.5.  Storing Responses to Authenticated Requests
// §
// §     [...] the "must-revalidate", "public", and "s-maxage" response
// §     directives [...] allow a shared cache to reuse a response
func mayUseResponseForAuthenticatedRequest(cc CacheControl) bool {
	_, hasSMaxAge := cc.SMaxAge()
	return cc.HasDirective("must-revalidate") || cc.Public() || hasSMaxAge
}
