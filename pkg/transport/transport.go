// Package transport performs HTTP exchanges over single connections.
// It is the collaborator the connection pool hands out: one Conn is one
// reusable connection to one route.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Route is the destination of a connection.
type Route struct {
	Scheme string
	Host   string
	Port   int
}

// RouteOf returns the route of an absolute URL.
// Default ports are filled in for http and https.
func RouteOf(u *url.URL) (Route, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Route{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return Route{}, fmt.Errorf("url %q has no host", u.String())
	}
	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		var err error
		if port, err = strconv.Atoi(p); err != nil {
			return Route{}, fmt.Errorf("invalid port in %q: %w", u.String(), err)
		}
	}
	return Route{Scheme: scheme, Host: strings.ToLower(host), Port: port}, nil
}

// Addr returns the host:port to dial.
func (r Route) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r Route) String() string {
	return r.Scheme + "://" + r.Addr()
}

// Conn is one connection to a route. It performs one exchange at a time.
type Conn interface {
	// RoundTrip sends the request and returns the response.
	// The response body must be read to EOF and closed before the
	// connection can be used again.
	RoundTrip(req *http.Request) (*http.Response, error)
	// Close closes the underlying network connection.
	Close() error
}

// Dialer opens connections to routes.
type Dialer interface {
	Dial(ctx context.Context, route Route) (Conn, error)
}

// Config configures the connections opened by HTTPDialer.
type Config struct {
	// Maximum time to establish the TCP connection.
	ConnectTimeout time.Duration
	// Maximum inactivity between two reads or two writes on the connection.
	SocketTimeout time.Duration
	// TLS configuration for https routes. Optional.
	TLSConfig *tls.Config
}

// HTTPDialer opens HTTP/1.1 connections.
type HTTPDialer struct {
	cfg Config
	log zerolog.Logger
}

// NewDialer returns a dialer for HTTP/1.1 connections.
func NewDialer(cfg Config, log zerolog.Logger) *HTTPDialer {
	return &HTTPDialer{cfg: cfg, log: log.With().Str("component", "transport").Logger()}
}

// Dial returns a connection to the route.
// The network connection is established on the first exchange and
// re-established transparently if the origin closes it while idle.
func (d *HTTPDialer) Dial(ctx context.Context, route Route) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	netDialer := &net.Dialer{Timeout: d.cfg.ConnectTimeout}
	socketTimeout := d.cfg.SocketTimeout
	log := d.log.With().Str("route", route.String()).Logger()
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			log.Trace().Msg("Opening connection")
			conn, err := netDialer.DialContext(ctx, network, route.Addr())
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, timeout: socketTimeout}, nil
		},
		TLSClientConfig:     d.cfg.TLSConfig,
		TLSHandshakeTimeout: d.cfg.ConnectTimeout,
		// one network connection per Conn
		MaxConnsPerHost:     1,
		MaxIdleConnsPerHost: 1,
		MaxIdleConns:        1,
		DisableCompression:  true,
	}
	return &httpConn{route: route, transport: transport}, nil
}

type httpConn struct {
	route     Route
	transport *http.Transport
}

func (c *httpConn) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.transport.RoundTrip(req)
}

func (c *httpConn) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// deadlineConn extends the deadline of the connection before every read and
// write, so that SocketTimeout bounds inactivity rather than the exchange.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
