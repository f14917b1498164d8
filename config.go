package cacheclient

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/always-cache/cacheclient/cache"
	"github.com/always-cache/cacheclient/pkg/transport"
)

type Config struct {
	// Maximum number of stored responses.
	MaxCacheEntries int
	// Maximum body size of a stored response, in bytes.
	// Larger responses are delivered to the caller but not stored.
	MaxObjectSize int64
	// Whether the cache is shared between users. A shared cache does not
	// store "private" responses and honors "s-maxage".
	SharedCache bool

	// Workers kept alive for background revalidation.
	AsynchronousWorkersCore int
	// Upper bound on revalidation workers.
	AsynchronousWorkersMax int
	// Workers above the core count stop after being idle this long.
	AsynchronousWorkerIdleLifetime time.Duration
	// Revalidations waiting for a worker. When full, further revalidations
	// are skipped until the next stale hit.
	RevalidationQueueSize int

	// Maximum number of connections over all routes.
	MaxConnTotal int
	// Maximum number of connections to a single route.
	MaxConnPerRoute int
	// Maximum time to establish a connection.
	ConnectTimeout time.Duration
	// Maximum inactivity on an established connection.
	SocketTimeout time.Duration
	// Maximum time to wait for a connection from the pool.
	ConnectionRequestTimeout time.Duration
	// Pooled connections idle for longer than this are closed instead of
	// being reused.
	ConnectionIdleTimeout time.Duration
	// TLS configuration for https origins.
	TLSConfig *tls.Config

	// Storage for cache entries. A MemoryStore sized by MaxCacheEntries and
	// MaxObjectSize is used if nil.
	Store cache.Store
	// Opens origin connections. An HTTP/1.1 dialer is used if nil.
	Dialer transport.Dialer
	// Optional function for transforming origin responses before the cache
	// decides whether to store them. The body is already consumed.
	// Use it e.g. for adding Cache-Control or other headers.
	ResponseModifier func(*http.Response) error
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Registerer for the client metrics. Metrics are not exported if nil.
	Registerer prometheus.Registerer
	// Clock used for freshness decisions. time.Now if nil.
	Now func() time.Time
}

const (
	DefaultMaxCacheEntries                = cache.DefaultMaxEntries
	DefaultMaxObjectSize                  = cache.DefaultMaxObjectSize
	DefaultAsynchronousWorkersCore        = 1
	DefaultAsynchronousWorkersMax         = 1
	DefaultAsynchronousWorkerIdleLifetime = 60 * time.Second
	DefaultRevalidationQueueSize          = 100
	DefaultMaxConnTotal                   = 20
	DefaultMaxConnPerRoute                = 2
	DefaultConnectTimeout                 = 10 * time.Second
	DefaultSocketTimeout                  = 30 * time.Second
	DefaultConnectionRequestTimeout       = 10 * time.Second
	DefaultConnectionIdleTimeout          = 60 * time.Second
)

// DefaultConfig returns the default configuration of a shared cache.
func DefaultConfig() Config {
	return Config{SharedCache: true}.withDefaults()
}

// withDefaults replaces zero values with defaults.
// SharedCache is left as is, since false is meaningful.
func (cfg Config) withDefaults() Config {
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = DefaultMaxCacheEntries
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	if cfg.AsynchronousWorkersCore <= 0 {
		cfg.AsynchronousWorkersCore = DefaultAsynchronousWorkersCore
	}
	if cfg.AsynchronousWorkersMax <= 0 {
		cfg.AsynchronousWorkersMax = DefaultAsynchronousWorkersMax
	}
	if cfg.AsynchronousWorkersMax < cfg.AsynchronousWorkersCore {
		cfg.AsynchronousWorkersMax = cfg.AsynchronousWorkersCore
	}
	if cfg.AsynchronousWorkerIdleLifetime <= 0 {
		cfg.AsynchronousWorkerIdleLifetime = DefaultAsynchronousWorkerIdleLifetime
	}
	if cfg.RevalidationQueueSize <= 0 {
		cfg.RevalidationQueueSize = DefaultRevalidationQueueSize
	}
	if cfg.MaxConnTotal <= 0 {
		cfg.MaxConnTotal = DefaultMaxConnTotal
	}
	if cfg.MaxConnPerRoute <= 0 {
		cfg.MaxConnPerRoute = DefaultMaxConnPerRoute
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = DefaultSocketTimeout
	}
	if cfg.ConnectionRequestTimeout <= 0 {
		cfg.ConnectionRequestTimeout = DefaultConnectionRequestTimeout
	}
	if cfg.ConnectionIdleTimeout <= 0 {
		cfg.ConnectionIdleTimeout = DefaultConnectionIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}
