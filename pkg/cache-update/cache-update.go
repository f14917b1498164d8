// Package cacheupdate reads the Cache-Update response header, with which an
// origin names the resources that a state-changing request has modified.
//
//	Cache-Update: /articles/1, /articles
//
// Each member is a path, resolved against the URL of the request.
// Parameters after a semicolon are ignored.
package cacheupdate

import (
	"net/http"
	"net/url"
	"strings"
)

const HeaderName = "Cache-Update"

// URLs returns the resources listed in the Cache-Update fields of header,
// resolved against reqURL. Members that do not resolve to the origin of
// reqURL are skipped.
func URLs(reqURL *url.URL, header http.Header) []*url.URL {
	var urls []*url.URL
	for _, field := range header.Values(HeaderName) {
		for _, member := range strings.Split(field, ",") {
			// path is the first element
			path, _, _ := strings.Cut(member, ";")
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			ref, err := url.Parse(path)
			if err != nil {
				continue
			}
			u := reqURL.ResolveReference(ref)
			if u.Scheme != reqURL.Scheme || u.Host != reqURL.Host {
				continue
			}
			u.Fragment = ""
			urls = append(urls, u)
		}
	}
	return urls
}
