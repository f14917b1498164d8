package cacheclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/always-cache/cacheclient/cache"
	"github.com/always-cache/cacheclient/pkg/connpool"
	"github.com/always-cache/cacheclient/pkg/transport"
	"github.com/always-cache/cacheclient/rfc5861"
	"github.com/always-cache/cacheclient/rfc9111"
)

const (
	pathSync  = "sync"
	pathAsync = "async"
)

// originResponse is a complete response from the origin. The connection it
// came over is back in the pool.
type originResponse struct {
	statusCode  int
	header      http.Header
	body        []byte
	requestedAt time.Time
	receivedAt  time.Time
}

// fetch performs one exchange with the origin over a pooled connection.
// The body is read completely and the lease released before fetch returns,
// on every path.
func (c *Client) fetch(ctx context.Context, req *http.Request, path string) (*originResponse, error) {
	route, err := transport.RouteOf(req.URL)
	if err != nil {
		return nil, err
	}
	waitStart := time.Now()
	lease, err := c.pool.Lease(ctx, route, c.cfg.ConnectionRequestTimeout)
	c.metrics.LeaseWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		c.countFetch(path, err)
		return nil, err
	}
	reuse := false
	defer func() {
		if reuse {
			lease.Release()
		} else {
			lease.Discard()
		}
	}()

	requestedAt := c.cfg.Now()
	res, err := lease.Conn().RoundTrip(req.WithContext(ctx))
	if err != nil {
		c.countFetch(path, err)
		return nil, fmt.Errorf("could not fetch %s: %w", req.URL, err)
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		c.countFetch(path, err)
		return nil, fmt.Errorf("could not read response body of %s: %w", req.URL, err)
	}
	reuse = true
	c.countFetch(path, nil)
	if c.cfg.ResponseModifier != nil {
		if err := c.cfg.ResponseModifier(res); err != nil {
			return nil, fmt.Errorf("could not modify response of %s: %w", req.URL, err)
		}
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("path", path).
		Int("status", res.StatusCode).
		Int("bytes", len(body)).
		Msg("Fetched from origin")

	return &originResponse{
		statusCode:  res.StatusCode,
		header:      res.Header,
		body:        body,
		requestedAt: requestedAt,
		receivedAt:  c.cfg.Now(),
	}, nil
}

func (c *Client) countFetch(path string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, connpool.ErrLeaseTimeout):
		result = "lease_timeout"
	default:
		result = "error"
	}
	c.metrics.OriginFetches.WithLabelValues(path, result).Inc()
}

type storeResult int

const (
	stored storeResult = iota
	notStorable
	oversized
	storeFailed
)

// storeResponse stores the origin response to req under key. A response
// that is not stored removes any entry it supersedes.
func (c *Client) storeResponse(req *http.Request, key string, res *originResponse) storeResult {
	log := c.log.With().Str("key", key).Logger()
	if rfc9111.MustNotStore(req, res.statusCode, res.header, c.cfg.SharedCache) {
		log.Trace().Msg("Response must not be stored")
		c.invalidate(key)
		return notStorable
	}
	maxAge, swr, ok := rfc5861.Directives(res.header, c.cfg.SharedCache)
	if !ok {
		log.Trace().Msg("Response has no freshness lifetime")
		c.invalidate(key)
		return notStorable
	}
	entry := cache.Entry{
		Key:                  key,
		StatusCode:           res.statusCode,
		Header:               res.header,
		Body:                 res.body,
		RequestedAt:          res.requestedAt,
		StoredAt:             res.receivedAt,
		InitialAge:           rfc9111.InitialAge(res.header, res.requestedAt, res.receivedAt),
		MaxAge:               maxAge,
		StaleWhileRevalidate: swr,
	}
	return c.put(entry)
}

// freshen returns the stored entry updated with a 304 response.
func freshen(entry cache.Entry, res *originResponse, shared bool) cache.Entry {
	entry.Header = rfc9111.FreshenHeader(entry.Header, res.header)
	if maxAge, swr, ok := rfc5861.Directives(entry.Header, shared); ok {
		entry.MaxAge = maxAge
		entry.StaleWhileRevalidate = swr
	}
	entry.RequestedAt = res.requestedAt
	entry.StoredAt = res.receivedAt
	entry.InitialAge = rfc9111.InitialAge(res.header, res.requestedAt, res.receivedAt)
	return entry
}

func (c *Client) put(entry cache.Entry) storeResult {
	ok, err := c.store.Put(entry)
	if err != nil {
		c.log.Error().Err(err).Str("key", entry.Key).Msg("Could not write to cache")
		return storeFailed
	}
	if !ok {
		c.log.Trace().Str("key", entry.Key).Int64("size", entry.Size()).Msg("Response too large to store")
		c.invalidate(entry.Key)
		return oversized
	}
	c.log.Trace().Str("key", entry.Key).Dur("maxAge", entry.MaxAge).
		Dur("swr", entry.StaleWhileRevalidate).Msg("Wrote to cache")
	return stored
}

func (c *Client) invalidate(key string) {
	if err := c.store.Invalidate(key); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not invalidate cache entry")
	}
}

// newResponse builds a response around a body held in memory.
func newResponse(req *http.Request, statusCode int, header http.Header, body []byte) *http.Response {
	res := &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Request:       req,
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}
	if req.Method == http.MethodHead {
		res.Body = http.NoBody
		res.ContentLength = -1
		if cl, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil {
			res.ContentLength = cl
		}
	}
	return res
}
