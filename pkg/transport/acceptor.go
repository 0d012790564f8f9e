package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/pion/logging"
)

// ConnHandler drives one accepted connection to completion. It owns
// conn for the connection's whole lifetime and must close it (or leave
// it to the caller's defer) before returning.
type ConnHandler func(ctx context.Context, conn net.Conn) error

// Acceptor runs a TCP accept loop, gating each accepted connection on
// an Admission's connection permit before handing it to a
// ConnHandler. Permits are released when the handler returns,
// whatever the outcome.
type Acceptor struct {
	listener  net.Listener
	admission *Admission
	handler   ConnHandler
	log       logging.LeveledLogger

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	closed  bool
}

// AcceptorConfig configures a new Acceptor.
type AcceptorConfig struct {
	Listener      net.Listener
	Admission     *Admission
	Handler       ConnHandler
	LoggerFactory logging.LoggerFactory
}

// NewAcceptor validates cfg and constructs an Acceptor.
func NewAcceptor(cfg AcceptorConfig) (*Acceptor, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}

	a := &Acceptor{
		listener:  cfg.Listener,
		admission: cfg.Admission,
		handler:   cfg.Handler,
	}
	if cfg.LoggerFactory != nil {
		a.log = cfg.LoggerFactory.NewLogger("htcp-transport")
	}
	return a, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. It blocks; callers typically run it in its own goroutine.
// Cancellation cascades: the loop stops accepting and
// in-flight connections drain naturally — Serve does not forcibly
// close them.
func (a *Acceptor) Serve(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	if a.log != nil {
		a.log.Infof("accepting connections on %s", a.listener.Addr())
	}

	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				a.wg.Wait()
				return nil
			}
			return err
		}

		if err := a.admission.AcquireConn(ctx); err != nil {
			conn.Close()
			a.wg.Wait()
			return nil
		}

		a.wg.Add(1)
		go a.serve(ctx, conn)
	}
}

func (a *Acceptor) serve(ctx context.Context, conn net.Conn) {
	defer a.wg.Done()
	defer a.admission.ReleaseConn()
	defer conn.Close()

	if err := a.handler(ctx, conn); err != nil {
		if a.log != nil {
			a.log.Debugf("connection from %s ended: %v", conn.RemoteAddr(), err)
		}
	}
}

// Close stops the listener and waits for in-flight connections to drain.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	err := a.listener.Close()
	a.wg.Wait()
	return err
}
