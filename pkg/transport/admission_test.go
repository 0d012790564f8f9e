package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestNewAdmissionValidatesCapacities(t *testing.T) {
	cases := []struct {
		name              string
		maxConnections    int
		handleConnections int
		wantErr           error
	}{
		{"zero max", 0, 1, ErrInvalidMaxConnections},
		{"negative max", -1, 1, ErrInvalidMaxConnections},
		{"zero handle", 4, 0, ErrInvalidHandleConnections},
		{"handle exceeds max", 2, 3, ErrInvalidHandleConnections},
		{"valid equal", 2, 2, nil},
		{"valid less", 4, 2, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAdmission(tc.maxConnections, tc.handleConnections)
			if err != tc.wantErr {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAdmissionConnPermitBlocksAtCapacity(t *testing.T) {
	a, err := NewAdmission(1, 1)
	if err != nil {
		t.Fatalf("NewAdmission: %v", err)
	}

	ctx := context.Background()
	if err := a.AcquireConn(ctx); err != nil {
		t.Fatalf("first AcquireConn: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if acqErr := a.AcquireConn(blocked); acqErr == nil {
		t.Fatal("expected second AcquireConn to block until the deadline")
	}

	a.ReleaseConn()
	if err := a.AcquireConn(context.Background()); err != nil {
		t.Fatalf("AcquireConn after release: %v", err)
	}
}

// TestAdmissionBoundsOverTCP checks that with max_connections=2 and
// handle_connections=1, a third connection's first request blocks
// until one of the first two closes.
func TestAdmissionBoundsOverTCP(t *testing.T) {
	admission, err := NewAdmission(2, 1)
	if err != nil {
		t.Fatalf("NewAdmission: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	handled := func(ctx context.Context, conn net.Conn) error {
		if err := admission.AcquireProc(ctx); err != nil {
			return err
		}
		buf := make([]byte, 1)
		if _, err := io.ReadFull(conn, buf); err != nil {
			admission.ReleaseProc()
			return err
		}
		if _, err := conn.Write(buf); err != nil {
			admission.ReleaseProc()
			return err
		}
		admission.ReleaseProc()

		// Hold the connection open, as a Serving loop would, until the
		// peer disconnects.
		_, _ = io.Copy(io.Discard, conn)
		return nil
	}

	acceptor, err := NewAcceptor(AcceptorConfig{
		Listener:  listener,
		Admission: admission,
		Handler:   handled,
	})
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go acceptor.Serve(ctx)

	dial := func() net.Conn {
		conn, err := net.Dial("tcp", listener.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		return conn
	}

	c1 := dial()
	defer c1.Close()
	c2 := dial()
	defer c2.Close()
	c3 := dial()
	defer c3.Close()

	ping := func(conn net.Conn) {
		if _, err := conn.Write([]byte{1}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	expectAck := func(conn net.Conn, timeout time.Duration) bool {
		conn.SetReadDeadline(time.Now().Add(timeout))
		buf := make([]byte, 1)
		_, err := conn.Read(buf)
		return err == nil
	}

	ping(c1)
	if !expectAck(c1, time.Second) {
		t.Fatal("expected connection 1 to be served immediately")
	}
	ping(c2)
	if !expectAck(c2, time.Second) {
		t.Fatal("expected connection 2 to be served immediately")
	}

	// The third connection is accepted off the backlog, but the
	// acceptor holds it in AcquireConn, before any protocol work,
	// until a connection permit frees up.
	ping(c3)
	if expectAck(c3, 100*time.Millisecond) {
		t.Fatal("connection 3 should not be served while both permits are held")
	}

	// Freeing one permit lets the third connection proceed.
	c1.Close()
	if !expectAck(c3, 2*time.Second) {
		t.Fatal("expected connection 3 to be served after connection 1 closed")
	}
}
