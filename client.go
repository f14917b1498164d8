// Package cacheclient is an HTTP client with a response cache that serves
// stale content while revalidating it in the background (RFC 5861).
//
// Origin connections come from a bounded pool, and background revalidations
// run on a bounded set of workers. A pooled connection is always returned to
// the pool, whatever the outcome of the exchange, so that a failed or
// oversized revalidation cannot starve later requests.
package cacheclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/always-cache/cacheclient/cache"
	cachekey "github.com/always-cache/cacheclient/pkg/cache-key"
	cacheupdate "github.com/always-cache/cacheclient/pkg/cache-update"
	"github.com/always-cache/cacheclient/pkg/connpool"
	"github.com/always-cache/cacheclient/pkg/metrics"
	"github.com/always-cache/cacheclient/pkg/transport"
	"github.com/always-cache/cacheclient/pkg/workerpool"
	"github.com/always-cache/cacheclient/rfc5861"
	"github.com/always-cache/cacheclient/rfc9111"
	"github.com/always-cache/cacheclient/rfc9211"
)

type Client struct {
	cfg       Config
	store     cache.Store
	pool      *connpool.Pool
	scheduler *RevalidationScheduler
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New creates a client and starts its revalidation workers.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	// use console logger if not specified in config
	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *cfg.Logger
	}

	store := cfg.Store
	if store == nil {
		s, err := cache.NewMemoryStore(cache.Options{
			MaxEntries:    cfg.MaxCacheEntries,
			MaxObjectSize: cfg.MaxObjectSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		store = s
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = transport.NewDialer(transport.Config{
			ConnectTimeout: cfg.ConnectTimeout,
			SocketTimeout:  cfg.SocketTimeout,
			TLSConfig:      cfg.TLSConfig,
		}, logger)
	}

	c := &Client{
		cfg:   cfg,
		store: store,
		pool: connpool.New(connpool.Config{
			MaxTotal:    cfg.MaxConnTotal,
			MaxPerRoute: cfg.MaxConnPerRoute,
			IdleTimeout: cfg.ConnectionIdleTimeout,
		}, dialer, logger),
		metrics: metrics.New(cfg.Registerer),
		log:     logger,
	}
	c.scheduler = newRevalidationScheduler(c, workerpool.Config{
		Core:         cfg.AsynchronousWorkersCore,
		Max:          cfg.AsynchronousWorkersMax,
		IdleLifetime: cfg.AsynchronousWorkerIdleLifetime,
		QueueSize:    cfg.RevalidationQueueSize,
	})
	metrics.RegisterGauges(cfg.Registerer, map[string]func() float64{
		"leased_connections":    func() float64 { return float64(c.pool.Leased()) },
		"cache_entries":         func() float64 { return float64(c.store.Len()) },
		"revalidations_pending": func() float64 { return float64(c.scheduler.Pending()) },
	})
	return c, nil
}

// Execute returns a response to req, from the cache when possible.
// The request URL must be absolute.
//
// Transport errors and pool timeouts of the exchanges made on behalf of
// the caller are returned; background revalidations never fail a call.
func (c *Client) Execute(ctx context.Context, req *http.Request) (*http.Response, CacheResponseStatus, error) {
	res, status, err := c.execute(ctx, req)
	if err == nil {
		c.metrics.Responses.WithLabelValues(status.String()).Inc()
	}
	return res, status, err
}

func (c *Client) execute(ctx context.Context, req *http.Request) (*http.Response, CacheResponseStatus, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return c.forward(ctx, req)
	}
	key, err := cachekey.Key(req)
	if err != nil {
		return nil, CacheMiss, err
	}
	log := c.log.With().Str("key", key).Logger()
	reqCacheControl := rfc9111.RequestCacheControl(req)

	entry, found, err := c.store.Get(key)
	if err != nil {
		log.Error().Err(err).Msg("Could not retrieve from cache")
		found = false
	}
	if !found {
		log.Trace().Msg("Cache miss")
		if reqCacheControl.OnlyIfCached() {
			return c.gatewayTimeout(req), CacheModuleResponse, nil
		}
		return c.fetchAndStore(ctx, req, key, nil, rfc9211.FwdReasonUriMiss)
	}

	now := c.cfg.Now()
	freshness := entry.Freshness(now)
	log.Trace().Str("freshness", freshness.String()).Dur("age", entry.Age(now)).Msg("Found cached response")

	if reqCacheControl.NoCache() && !reqCacheControl.OnlyIfCached() {
		return c.fetchAndStore(ctx, req, key, &entry, rfc9211.FwdReasonRequest)
	}
	switch freshness {
	case rfc5861.Fresh:
		return c.cachedResponse(req, entry, now, nil), CacheHit, nil
	case rfc5861.StaleRevalidatable:
		c.revalidateInBackground(key, log)
		return c.cachedResponse(req, entry, now, nil), CacheHit, nil
	}

	// stale beyond the revalidation window: never served
	c.invalidate(key)
	if reqCacheControl.OnlyIfCached() {
		return c.gatewayTimeout(req), CacheModuleResponse, nil
	}
	return c.fetchAndStore(ctx, req, key, &entry, rfc9211.FwdReasonStale)
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	res, _, err := c.Execute(req.Context(), req)
	return res, err
}

// revalidateInBackground schedules a revalidation of the entry unless one is
// already in flight.
func (c *Client) revalidateInBackground(key string, log zerolog.Logger) {
	token, ok, err := c.store.BeginRevalidation(key)
	if err != nil {
		log.Error().Err(err).Msg("Could not mark entry for revalidation")
		return
	}
	if !ok {
		log.Trace().Msg("Revalidation already in flight")
		return
	}
	task := newRevalidationTask(key, token, c.cfg.Now())
	if c.scheduler.Submit(task) {
		log.Trace().Str("task", task.ID.String()).Msg("Scheduled revalidation")
		return
	}
	log.Debug().Msg("Revalidation queue full, skipping revalidation")
	c.metrics.Revalidations.WithLabelValues(metrics.OutcomeRejected).Inc()
	if err := c.store.EndRevalidation(key, token); err != nil {
		log.Error().Err(err).Msg("Could not clear revalidation flag")
	}
}

// fetchAndStore forwards req to the origin and stores the response.
// With a stale entry holding a validator, the request is made conditional
// and a 304 response revives the stored one.
func (c *Client) fetchAndStore(ctx context.Context, req *http.Request, key string, stale *cache.Entry, reason rfc9211.FwdReason) (*http.Response, CacheResponseStatus, error) {
	outReq := req.Clone(ctx)
	conditional := stale != nil && rfc9111.AddValidators(outReq, stale.Header)

	res, err := c.fetch(ctx, outReq, pathSync)
	if err != nil {
		return nil, CacheMiss, err
	}

	cs := rfc9211.CacheStatus{}
	cs.Forward(reason)
	cs.FwdStatus = res.statusCode

	if conditional && res.statusCode == http.StatusNotModified {
		entry := freshen(*stale, res, c.cfg.SharedCache)
		cs.Stored = c.put(entry) == stored
		return c.cachedResponse(req, entry, c.cfg.Now(), &cs), Validated, nil
	}

	cs.Stored = c.storeResponse(req, key, res) == stored
	header := res.header.Clone()
	header.Add(rfc9211.HeaderName, cs.String())
	c.logRequest(req, cs)
	return newResponse(req, res.statusCode, header, res.body), CacheMiss, nil
}

// forward sends a request with a method the cache does not store
// responses for. Unsafe methods invalidate the stored responses of the
// target URI.
func (c *Client) forward(ctx context.Context, req *http.Request) (*http.Response, CacheResponseStatus, error) {
	res, err := c.fetch(ctx, req.Clone(ctx), pathSync)
	if err != nil {
		return nil, CacheMiss, err
	}
	if rfc9111.MustInvalidate(req.Method, res.statusCode) {
		keys, err := cachekey.URIKeys(req)
		if err != nil {
			c.log.Error().Err(err).Msg("Could not get keys to invalidate")
		}
		for _, key := range keys {
			c.log.Trace().Str("key", key).Str("method", req.Method).Msg("Invalidating")
			c.invalidate(key)
		}
		c.refreshUpdated(req, res.header)
	}
	cs := rfc9211.CacheStatus{}
	cs.Forward(rfc9211.FwdReasonMethod)
	cs.FwdStatus = res.statusCode
	header := res.header.Clone()
	header.Add(rfc9211.HeaderName, cs.String())
	c.logRequest(req, cs)
	return newResponse(req, res.statusCode, header, res.body), CacheMiss, nil
}

// refreshUpdated revalidates in the background the stored responses the
// origin lists in Cache-Update.
func (c *Client) refreshUpdated(req *http.Request, header http.Header) {
	for _, u := range cacheupdate.URLs(req.URL, header) {
		updateReq, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			continue
		}
		key, err := cachekey.Key(updateReq)
		if err != nil {
			c.log.Error().Err(err).Str("url", u.String()).Msg("Could not get key for update")
			continue
		}
		log := c.log.With().Str("key", key).Logger()
		log.Trace().Msg("Updating cache based on header")
		c.revalidateInBackground(key, log)
	}
}

// cachedResponse builds the response to req from a stored entry.
// A nil cacheStatus means a hit.
func (c *Client) cachedResponse(req *http.Request, entry cache.Entry, now time.Time, cacheStatus *rfc9211.CacheStatus) *http.Response {
	cs := rfc9211.CacheStatus{}
	cs.Hit()
	if cacheStatus != nil {
		cs = *cacheStatus
	}
	cs.SetTimeToLive(int(entry.TimeToLive(now) / time.Second))

	header := entry.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	rfc9111.SetAge(header, entry.Age(now))
	header.Add(rfc9211.HeaderName, cs.String())
	c.logRequest(req, cs)
	return newResponse(req, entry.StatusCode, header, entry.Body)
}

// gatewayTimeout is the response to an only-if-cached request that cannot
// be satisfied from the cache.
func (c *Client) gatewayTimeout(req *http.Request) *http.Response {
	cs := rfc9211.CacheStatus{}
	cs.Forward(rfc9211.FwdReasonRequest)
	cs.Detail = "only-if-cached"
	header := make(http.Header)
	header.Set("Content-Length", "0")
	header.Set(rfc9211.HeaderName, cs.String())
	c.logRequest(req, cs)
	return newResponse(req, http.StatusGatewayTimeout, header, nil)
}

func (c *Client) logRequest(r *http.Request, cs rfc9211.CacheStatus) {
	isHit := 0
	if cs.Status == rfc9211.CacheStatusHit {
		isHit = 1
	}
	c.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("status", string(cs.Status)).
		Str("fwd", string(cs.FwdReason)).
		Bool("stored", cs.Stored).
		Int("ttl", cs.TimeToLive).
		Int("hit", isHit).
		Msg("Sending response to client")
}

// Stats is a snapshot of the client resources.
type Stats struct {
	Store       cache.Stats
	Connections connpool.Stats
	Workers     WorkerStats
}

func (c *Client) Stats() Stats {
	return Stats{
		Store:       c.store.Stats(),
		Connections: c.pool.Stats(),
		Workers:     c.scheduler.Stats(),
	}
}

// Close stops the revalidation workers, then closes the pool and the store.
// Queued revalidations are dropped.
func (c *Client) Close() error {
	c.scheduler.Close()
	return errors.Join(c.pool.Close(), c.store.Close())
}
