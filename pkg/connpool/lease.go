package connpool

import (
	"sync"
	"time"

	"github.com/always-cache/cacheclient/pkg/transport"
)

// Lease grants exclusive use of one pooled connection until it is released.
// Release and Discard may be called any number of times; only the first call
// returns the connection.
type Lease struct {
	pool     *Pool
	rp       *routePool
	pc       *pooledConn
	leasedAt time.Time
	once     sync.Once
}

// Conn returns the leased connection.
func (l *Lease) Conn() transport.Conn {
	return l.pc.conn
}

// Route returns the destination of the leased connection.
func (l *Lease) Route() transport.Route {
	return l.pc.route
}

// Release returns the connection to the pool for reuse.
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.release(l, true) })
}

// Discard closes the connection and returns its capacity to the pool.
// Use it when the connection is in an unknown state, e.g. after a transport
// error or a response body that was not read to the end.
func (l *Lease) Discard() {
	l.once.Do(func() { l.pool.release(l, false) })
}
