package rfc9111

import (
	"net/http"
	"strings"
	"time"
)

// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. [...] Cache directives are identified by a token,
// §  to be compared case-insensitively, and have an optional argument that can use
// §  both token and quoted-string syntax.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]

// CacheControl holds the parsed directives of one or more Cache-Control fields.
type CacheControl struct {
	directives map[string]string
}

// Get returns the argument of the specified directive,
// along with a boolean indicating whether this directive is present
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// HasDirective returns whether the specified directive is present
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// ParseCacheControl takes Cache-Control field values as a slice of strings
// and returns an instance of `CacheControl`.
// When a directive is repeated the last one wins.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		for _, directive := range splitList(header) {
			name, arg, _ := strings.Cut(directive, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			m[name] = unquote(strings.TrimSpace(arg))
		}
	}
	return CacheControl{m}
}

// RequestCacheControl parses the Cache-Control fields of a request.
func RequestCacheControl(req *http.Request) CacheControl {
	return ParseCacheControl(req.Header.Values("Cache-Control"))
}

// ResponseCacheControl parses the Cache-Control fields of response headers.
func ResponseCacheControl(header http.Header) CacheControl {
	return ParseCacheControl(header.Values("Cache-Control"))
}

// splitList splits a "#" list on commas that are not inside a quoted-string.
func splitList(field string) []string {
	var (
		parts   []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '"':
			inQuote = !inQuote
		case '\\':
			if inQuote {
				i++
			}
		case ',':
			if !inQuote {
				parts = append(parts, strings.TrimSpace(field[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(field[start:]))
}

// unquote converts the argument from "quoted-string" to "token" form if needed.
func unquote(arg string) string {
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return strings.ReplaceAll(arg[1:len(arg)-1], `\`, "")
	}
	return arg
}

// §  5.2.1.7.  only-if-cached
// §
// §     The only-if-cached request directive indicates that the client only
// §     wishes to obtain a stored response.  Caches that honor this request
// §     directive SHOULD, upon receiving it, respond with either a stored
// §     response consistent with the other constraints of the request or a
// §     504 (Gateway Timeout) status code.

func (c CacheControl) OnlyIfCached() bool {
	return c.HasDirective("only-if-cached")
}

// §  5.2.2.1. max-age
// §
// §     The max-age response directive indicates that the response is to be
// §     considered stale after its age is greater than the specified number
// §     of seconds.

// MaxAge returns "max-age" as a duration, along with a boolean indicating
// whether a valid "max-age" directive was present.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// §  5.2.2.4.  no-cache
// §
// §     The no-cache response directive, in its unqualified form (without an
// §     argument), indicates that the response MUST NOT be used to satisfy
// §     any other request without forwarding it for validation and receiving
// §     a successful response; see Section 4.3.

func (c CacheControl) NoCache() bool {
	return c.HasDirective("no-cache")
}

// §  5.2.2.5.  no-store
// §
// §     The no-store response directive indicates that a cache MUST NOT store
// §     any part of either the immediate request or the response and MUST NOT
// §     use the response to satisfy any other request.

func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// §  5.2.2.7.  private
// §
// §     The unqualified private response directive indicates that a shared
// §     cache MUST NOT store the response (i.e., the response is intended
// §     for a single user).

func (c CacheControl) Private() bool {
	return c.HasDirective("private")
}

// §  5.2.2.9.  public
// §
// §     The public response directive indicates that a cache MAY store the
// §     response even if it would otherwise be prohibited, subject to the
// §     constraints defined in Section 3.

func (c CacheControl) Public() bool {
	return c.HasDirective("public")
}

// §  5.2.2.10.  s-maxage
// §
// §     The s-maxage response directive indicates that, for a shared cache,
// §     the maximum age specified by this directive overrides the maximum age
// §     specified by either the max-age directive or the Expires header
// §     field.

func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// StaleWhileRevalidate is the extension directive of RFC 5861.
// It is parsed here since it shares the delta-seconds syntax.
func (c CacheControl) StaleWhileRevalidate() (time.Duration, bool) {
	return c.getDeltaSeconds("stale-while-revalidate")
}

// getDeltaSeconds returns the "delta-seconds" as `time.Duration`,
// as well as a boolean indicating whether the directive was set.
//
// Examples:
// directive    -> 0,  false
// directive=x  -> 0,  false
// directive=0  -> 0,  true
// directive=60 -> 60, true
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	if secondsStr, ok := c.Get(directive); ok && secondsStr != "" {
		return deltaSeconds(secondsStr)
	}
	return 0, false
}
