package main

import (
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/always-cache/cacheclient"
)

// proxy serves requests from the cache, fetching from the origin through
// the caching client.
type proxy struct {
	client *cacheclient.Client
	origin *url.URL
	// Host header override
	host string
	log  zerolog.Logger
}

// hop-by-hop header fields are not forwarded
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := *p.origin
	target.Path = r.URL.Path
	target.RawPath = r.URL.RawPath
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		p.log.Error().Err(err).Msg("Could not create origin request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.ContentLength = r.ContentLength
	copyHeader(req.Header, r.Header)
	if p.host != "" {
		req.Host = p.host
	}

	res, status, err := p.client.Execute(r.Context(), req)
	if err != nil {
		p.log.Error().Err(err).Str("url", target.String()).Msg("Could not get response")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(w, res.Body)
	if err != nil {
		p.log.Error().Err(err).Msg("Could not write response body to client")
	}
	p.log.Trace().Str("status", status.String()).Msgf("Wrote body (%d bytes)", bytesWritten)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// this is a workaround to remove default headers sent by an upstream proxy
		// some servers do not like the presence of these headers in the downstream request
		if k == "X-Forwarded-For" || k == "X-Forwarded-Proto" || k == "X-Forwarded-Host" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
