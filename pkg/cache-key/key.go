package cachekey

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/always-cache/cacheclient/pkg/transport"
)

var ErrorMethodNotSupported = errors.New("method not supported")

const (
	methodSeparator = ":"
	extraSeparator  = "\t"
)

// CacheKeyHeader is a request header whose value is appended to the key.
// Use it to keep apart responses that the origin varies on something the
// URI does not show.
const CacheKeyHeader = "Cache-Key"

// Key returns the cache key of a request: method and absolute URI, plus the
// Cache-Key request header if present. Vary is not taken into account.
// The scheme and host are normalized, so that http://Example.com/a and
// http://example.com:80/a share a key.
func Key(r *http.Request) (string, error) {
	uri, err := normalizedURI(r.URL)
	if err != nil {
		return "", err
	}
	key := r.Method + methodSeparator + uri + extraSeparator
	if ck := r.Header.Get(CacheKeyHeader); ck != "" {
		key += ck
	}
	return key, nil
}

// URIKeys returns the keys of all cacheable methods for the target URI of r.
// These are the entries an unsafe request invalidates.
func URIKeys(r *http.Request) ([]string, error) {
	keys := make([]string, 0, 2)
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := r.Clone(r.Context())
		req.Method = method
		key, err := Key(req)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func normalizedURI(u *url.URL) (string, error) {
	route, err := transport.RouteOf(u)
	if err != nil {
		return "", err
	}
	return route.String() + u.RequestURI(), nil
}

// RequestFromKey returns a request equal, cache-wise, to the one that
// produced the key. Only GET and HEAD keys are supported.
func RequestFromKey(key string) (*http.Request, error) {
	method, rest, found := strings.Cut(key, methodSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %q", key)
	}
	if method != http.MethodGet && method != http.MethodHead {
		return nil, ErrorMethodNotSupported
	}
	uri, extra, found := strings.Cut(rest, extraSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %q", key)
	}
	req, err := http.NewRequest(method, uri, nil)
	if err != nil {
		return nil, err
	}
	if extra != "" {
		req.Header.Set(CacheKeyHeader, extra)
	}
	return req, nil
}
