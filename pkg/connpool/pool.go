// Package connpool is a bounded pool of transport connections, keyed by route.
//
// Connections are handed out as leases. A lease must be released exactly once
// on every exit path of the work that uses it, otherwise the pool loses that
// capacity for good.
package connpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/always-cache/cacheclient/pkg/transport"
)

var (
	// ErrLeaseTimeout is returned when no connection became available
	// within the lease timeout.
	ErrLeaseTimeout = errors.New("timeout waiting for connection from pool")
	// ErrClosed is returned by Lease after Close.
	ErrClosed = errors.New("connection pool closed")
)

type Config struct {
	// Maximum number of connections, leased or idle, over all routes.
	MaxTotal int
	// Maximum number of leased connections per route.
	MaxPerRoute int
	// Idle connections unused for longer than this are closed instead of
	// being reused. Zero keeps them indefinitely.
	IdleTimeout time.Duration
}

// Pool is safe for concurrent use. Capacities are fixed at construction.
type Pool struct {
	cfg    Config
	dialer transport.Dialer
	log    zerolog.Logger
	now    func() time.Time

	total  *semaphore.Weighted
	leased atomic.Int64

	mu     sync.Mutex
	routes map[transport.Route]*routePool
	open   int
	closed bool
}

type routePool struct {
	sem    *semaphore.Weighted
	idle   []*pooledConn
	leased int
}

type pooledConn struct {
	conn         transport.Conn
	route        transport.Route
	lastActivity time.Time
}

// Stats is a snapshot of the pool accounting.
type Stats struct {
	Leased int
	Idle   int
	Open   int
	Routes map[string]RouteStats
}

type RouteStats struct {
	Leased int
	Idle   int
}

// New creates a pool. Non-positive capacities are set to 1.
func New(cfg Config, dialer transport.Dialer, log zerolog.Logger) *Pool {
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 1
	}
	if cfg.MaxPerRoute <= 0 {
		cfg.MaxPerRoute = 1
	}
	return &Pool{
		cfg:    cfg,
		dialer: dialer,
		log:    log.With().Str("component", "connpool").Logger(),
		now:    time.Now,
		total:  semaphore.NewWeighted(int64(cfg.MaxTotal)),
		routes: make(map[transport.Route]*routePool),
	}
}

// Lease blocks until a connection to route is available, or timeout elapses.
// A timeout of zero waits as long as ctx allows.
// On timeout the returned error wraps ErrLeaseTimeout.
func (p *Pool) Lease(ctx context.Context, route transport.Route, timeout time.Duration) (*Lease, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	rp, err := p.routePool(route)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := rp.sem.Acquire(ctx, 1); err != nil {
		return nil, p.leaseError(ctx, route, err, start)
	}
	if err := p.total.Acquire(ctx, 1); err != nil {
		rp.sem.Release(1)
		return nil, p.leaseError(ctx, route, err, start)
	}
	pc, err := p.take(ctx, route, rp)
	if err != nil {
		p.total.Release(1)
		rp.sem.Release(1)
		return nil, err
	}
	p.leased.Add(1)
	p.log.Trace().Str("route", route.String()).Dur("waited", time.Since(start)).Msg("Leased connection")
	return &Lease{pool: p, rp: rp, pc: pc, leasedAt: start}, nil
}

func (p *Pool) leaseError(ctx context.Context, route transport.Route, err error, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.log.Debug().Str("route", route.String()).Dur("waited", time.Since(start)).Msg("Timeout leasing connection")
		return fmt.Errorf("%w: %s", ErrLeaseTimeout, route)
	}
	return err
}

func (p *Pool) routePool(route transport.Route) (*routePool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	rp, ok := p.routes[route]
	if !ok {
		rp = &routePool{sem: semaphore.NewWeighted(int64(p.cfg.MaxPerRoute))}
		p.routes[route] = rp
	}
	return rp, nil
}

// take returns an idle connection of the route or dials a new one.
// The caller holds a route slot and a total slot.
func (p *Pool) take(ctx context.Context, route transport.Route, rp *routePool) (*pooledConn, error) {
	var toClose []*pooledConn
	defer func() {
		for _, pc := range toClose {
			p.closeConn(pc)
		}
	}()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	now := p.now()
	for len(rp.idle) > 0 {
		pc := rp.idle[len(rp.idle)-1]
		rp.idle = rp.idle[:len(rp.idle)-1]
		if p.cfg.IdleTimeout > 0 && now.Sub(pc.lastActivity) > p.cfg.IdleTimeout {
			p.open--
			toClose = append(toClose, pc)
			continue
		}
		rp.leased++
		p.mu.Unlock()
		return pc, nil
	}
	// make room by closing the least recently used idle connection of
	// another route
	if p.open >= p.cfg.MaxTotal {
		if victim := p.evictIdle(); victim != nil {
			p.open--
			toClose = append(toClose, victim)
		}
	}
	p.open++
	rp.leased++
	p.mu.Unlock()

	conn, err := p.dialer.Dial(ctx, route)
	if err != nil {
		p.mu.Lock()
		p.open--
		rp.leased--
		p.mu.Unlock()
		return nil, fmt.Errorf("could not connect to %s: %w", route, err)
	}
	p.log.Trace().Str("route", route.String()).Msg("Opened connection")
	return &pooledConn{conn: conn, route: route, lastActivity: now}, nil
}

// evictIdle removes the idle connection with the oldest activity.
// Must be called with mu held.
func (p *Pool) evictIdle() *pooledConn {
	var (
		victimRoute *routePool
		victimIdx   int
	)
	for _, rp := range p.routes {
		for i, pc := range rp.idle {
			if victimRoute == nil || pc.lastActivity.Before(victimRoute.idle[victimIdx].lastActivity) {
				victimRoute, victimIdx = rp, i
			}
		}
	}
	if victimRoute == nil {
		return nil
	}
	victim := victimRoute.idle[victimIdx]
	victimRoute.idle = append(victimRoute.idle[:victimIdx], victimRoute.idle[victimIdx+1:]...)
	return victim
}

func (p *Pool) release(l *Lease, reuse bool) {
	p.mu.Lock()
	l.rp.leased--
	if reuse && !p.closed {
		l.pc.lastActivity = p.now()
		l.rp.idle = append(l.rp.idle, l.pc)
		p.mu.Unlock()
	} else {
		p.open--
		p.mu.Unlock()
		p.closeConn(l.pc)
	}
	p.leased.Add(-1)
	p.total.Release(1)
	l.rp.sem.Release(1)
	p.log.Trace().Str("route", l.pc.route.String()).Bool("reuse", reuse).
		Dur("held", time.Since(l.leasedAt)).Msg("Released connection")
}

func (p *Pool) closeConn(pc *pooledConn) {
	if err := pc.conn.Close(); err != nil {
		p.log.Debug().Err(err).Str("route", pc.route.String()).Msg("Error closing connection")
	}
}

// Leased returns the number of outstanding leases.
func (p *Pool) Leased() int {
	return int(p.leased.Load())
}

// Stats returns a snapshot of the pool accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := Stats{
		Open:   p.open,
		Routes: make(map[string]RouteStats, len(p.routes)),
	}
	for route, rp := range p.routes {
		stats.Leased += rp.leased
		stats.Idle += len(rp.idle)
		stats.Routes[route.String()] = RouteStats{Leased: rp.leased, Idle: len(rp.idle)}
	}
	return stats
}

// Close closes the idle connections. Connections still leased are closed
// when released. Later calls to Lease fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var idle []*pooledConn
	for _, rp := range p.routes {
		idle = append(idle, rp.idle...)
		rp.idle = nil
	}
	p.open -= len(idle)
	p.mu.Unlock()

	for _, pc := range idle {
		p.closeConn(pc)
	}
	return nil
}
