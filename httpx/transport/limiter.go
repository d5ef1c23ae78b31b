package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// PoolTimeoutError reports that no pooled connection became available
// within the connection request timeout. It is a net.Error timeout, so the
// retry loop treats it as retryable.
type PoolTimeoutError struct {
	Wait time.Duration
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("no pooled connection available after %s", e.Wait)
}

func (e *PoolTimeoutError) Timeout() bool   { return true }
func (e *PoolTimeoutError) Temporary() bool { return true }

var _ net.Error = (*PoolTimeoutError)(nil)

// connLimiter bounds the number of open connections across all routes.
// A permit is held from dial until the connection is closed.
type connLimiter struct {
	sem            *semaphore.Weighted
	dialer         *net.Dialer
	acquireTimeout time.Duration

	// onStarved runs before blocking on a full pool so idle connections
	// can give their permits back.
	onStarved func()

	open atomic.Int64
}

func newConnLimiter(max int, dialer *net.Dialer, acquireTimeout time.Duration) *connLimiter {
	return &connLimiter{
		sem:            semaphore.NewWeighted(int64(max)),
		dialer:         dialer,
		acquireTimeout: acquireTimeout,
	}
}

func (l *connLimiter) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}

	conn, err := l.dialer.DialContext(ctx, network, addr)
	if err != nil {
		l.sem.Release(1)
		return nil, err
	}

	l.open.Add(1)
	return &limitedConn{Conn: conn, release: func() {
		l.open.Add(-1)
		l.sem.Release(1)
	}}, nil
}

func (l *connLimiter) acquire(ctx context.Context) error {
	if l.sem.TryAcquire(1) {
		return nil
	}
	if l.onStarved != nil {
		l.onStarved()
	}

	wait := ctx
	if l.acquireTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, l.acquireTimeout)
		defer cancel()
	}

	if err := l.sem.Acquire(wait, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &PoolTimeoutError{Wait: l.acquireTimeout}
	}
	return nil
}

// Open returns the number of connections currently holding a permit.
func (l *connLimiter) Open() int64 {
	return l.open.Load()
}

type limitedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *limitedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}
