// Package htcp wires the wire, proto, crypto, session, transport, and
// handler packages into the top-level Server a deployment constructs.
package htcp

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/logging"

	"github.com/htcpproto/htcp/pkg/handler"
	"github.com/htcpproto/htcp/pkg/session"
	"github.com/htcpproto/htcp/pkg/transport"
)

// Server accepts TCP connections, gates them under two-level admission
// control, and drives each one through the HTCP connection state
// machine, dispatching decoded requests to a Registry.
type Server struct {
	cfg      Config
	registry *handler.Registry
	log      logging.LeveledLogger

	listener  net.Listener
	admission *transport.Admission
	acceptor  *transport.Acceptor
}

// NewServer validates cfg, applies its defaults, opens the listener,
// and constructs a Server bound to the given handler registry. No
// connection is accepted until Serve is called.
func NewServer(cfg Config, registry *handler.Registry) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	admission, err := transport.NewAdmission(cfg.MaxConnections, cfg.HandleConnections)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		registry:  registry,
		admission: admission,
		listener:  listener,
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger(cfg.Name)
	}
	return s, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConnections returns the number of connections currently held
// open under the connection semaphore.
func (s *Server) ActiveConnections() int {
	return s.admission.ActiveConnections()
}

// Serve runs the accept loop until ctx is cancelled. It blocks;
// callers typically run it in its own goroutine and cancel ctx to
// shut down.
func (s *Server) Serve(ctx context.Context) error {
	if s.acceptor != nil {
		return ErrAlreadyServing
	}

	fromAddr := s.listener.Addr().String()

	acceptor, err := transport.NewAcceptor(transport.AcceptorConfig{
		Listener:      s.listener,
		Admission:     s.admission,
		LoggerFactory: s.cfg.LoggerFactory,
		Handler: func(ctx context.Context, conn net.Conn) error {
			return s.serveConn(ctx, conn, fromAddr)
		},
	})
	if err != nil {
		return err
	}
	s.acceptor = acceptor

	if s.log != nil {
		s.log.Infof("htcp server %q listening on %s", s.cfg.Name, s.listener.Addr())
	}
	return acceptor.Serve(ctx)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, fromAddr string) error {
	cfg := session.Config{
		DHEncryption: s.cfg.DHEncryption,
		Profile:      s.cfg.Profile,
		Passkey:      s.cfg.ConnectPasskey,
		FromAddr:     fromAddr,
		Registry:     s.registry,
		AcquireProc:  s.admission.AcquireProc,
		ReleaseProc:  s.admission.ReleaseProc,
		ActiveConns:  s.admission.ActiveConnections,
		Log:          s.log,
	}
	return session.New(conn, cfg).Serve(ctx)
}

// Close stops accepting new connections and waits for in-flight
// connections to drain.
func (s *Server) Close() error {
	if s.acceptor == nil {
		return s.listener.Close()
	}
	return s.acceptor.Close()
}
