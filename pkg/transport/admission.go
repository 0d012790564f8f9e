package transport

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Admission implements two-level admission control:
// connection_semaphore bounds concurrently accepted connections,
// processing_semaphore bounds concurrently executing handlers. The
// invariant active_handlers <= handle_connections <= active_connections
// <= max_connections falls out of acquiring the connection permit for
// the whole connection lifetime and the processing permit only around
// dispatch.
type Admission struct {
	connSem *semaphore.Weighted
	procSem *semaphore.Weighted

	maxConnections    int
	handleConnections int

	active atomic.Int64
}

// NewAdmission builds an Admission with the given capacities.
// handleConnections must be between 1 and maxConnections inclusive.
func NewAdmission(maxConnections, handleConnections int) (*Admission, error) {
	if maxConnections < 1 {
		return nil, ErrInvalidMaxConnections
	}
	if handleConnections < 1 || handleConnections > maxConnections {
		return nil, ErrInvalidHandleConnections
	}
	return &Admission{
		connSem:           semaphore.NewWeighted(int64(maxConnections)),
		procSem:           semaphore.NewWeighted(int64(handleConnections)),
		maxConnections:    maxConnections,
		handleConnections: handleConnections,
	}, nil
}

// AcquireConn blocks until a connection permit is available or ctx is done.
func (a *Admission) AcquireConn(ctx context.Context) error {
	if err := a.connSem.Acquire(ctx, 1); err != nil {
		return err
	}
	a.active.Add(1)
	return nil
}

// ReleaseConn releases a connection permit acquired by AcquireConn.
func (a *Admission) ReleaseConn() {
	a.active.Add(-1)
	a.connSem.Release(1)
}

// ActiveConnections returns the number of connection permits currently
// held. Safe to call from any goroutine, including handlers.
func (a *Admission) ActiveConnections() int {
	return int(a.active.Load())
}

// AcquireProc blocks until a processing permit is available or ctx is done.
// Held only for the duration of one handler dispatch, never the whole
// connection lifetime.
func (a *Admission) AcquireProc(ctx context.Context) error {
	return a.procSem.Acquire(ctx, 1)
}

// ReleaseProc releases a processing permit acquired by AcquireProc.
func (a *Admission) ReleaseProc() {
	a.procSem.Release(1)
}

// MaxConnections returns the configured connection permit capacity.
func (a *Admission) MaxConnections() int { return a.maxConnections }

// HandleConnections returns the configured processing permit capacity.
func (a *Admission) HandleConnections() int { return a.handleConnections }
