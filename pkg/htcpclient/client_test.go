package htcpclient

import (
	"errors"
	"net"
	"testing"

	"github.com/htcpproto/htcp/pkg/proto"
	"github.com/htcpproto/htcp/pkg/wire"
)

// fakeServer accepts one connection and answers each request with
// respond's package, letting tests control correlation behavior
// without a full server.
func fakeServer(t *testing.T, respond func(req *proto.Package) *proto.Package) net.Addr {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, payload, err := wire.ReadFrame(conn)
			if err != nil {
				return
			}
			req, err := proto.Decode(payload)
			if err != nil {
				return
			}

			resp := respond(req)
			out, err := proto.Encode(resp)
			if err != nil {
				return
			}
			frame, err := wire.Encode(out, resp.Flags(false, true))
			if err != nil {
				return
			}
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()

	return listener.Addr()
}

func TestAskMatchingUUID(t *testing.T) {
	addr := fakeServer(t, func(req *proto.Package) *proto.Package {
		resp := &proto.Package{
			Transaction: req.Transaction,
			Content:     req.Content,
			UUID:        req.UUID,
		}
		return resp
	})

	client, err := Connect(addr.String(), Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	req := proto.New("echo", []byte("hello"))
	resp, err := client.Ask(req)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.UUID != req.UUID {
		t.Errorf("uuid = %q, want %q", resp.UUID, req.UUID)
	}
	if string(resp.Content) != "hello" {
		t.Errorf("content = %q, want %q", resp.Content, "hello")
	}
}

func TestAskMismatchedUUIDIsCorrelationError(t *testing.T) {
	addr := fakeServer(t, func(req *proto.Package) *proto.Package {
		// Reply under a freshly minted uuid, never the request's.
		return proto.New(req.Transaction, req.Content)
	})

	client, err := Connect(addr.String(), Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	_, err = client.Ask(proto.New("echo", []byte("x")))
	var corrErr *CorrelationError
	if !errors.As(err, &corrErr) {
		t.Fatalf("got %v, want *CorrelationError", err)
	}
	if corrErr.Want == corrErr.Got {
		t.Error("CorrelationError carries identical uuids")
	}
}

func TestSendFireAndForget(t *testing.T) {
	received := make(chan string, 1)
	addr := fakeServer(t, func(req *proto.Package) *proto.Package {
		received <- req.Transaction
		return &proto.Package{Transaction: req.Transaction, UUID: req.UUID}
	})

	client, err := Connect(addr.String(), Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if err := client.Send(proto.New("notify", nil)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := <-received; got != "notify" {
		t.Errorf("server saw transaction %q, want %q", got, "notify")
	}
}

func TestWithClientClosesOnReturn(t *testing.T) {
	addr := fakeServer(t, func(req *proto.Package) *proto.Package {
		return &proto.Package{Transaction: req.Transaction, UUID: req.UUID}
	})

	var captured *Client
	err := WithClient(addr.String(), Config{}, func(c *Client) error {
		captured = c
		_, err := c.Ask(proto.New("ping", nil))
		return err
	})
	if err != nil {
		t.Fatalf("WithClient: %v", err)
	}

	// The connection must be closed once fn returns.
	if err := captured.Send(proto.New("late", nil)); err == nil {
		t.Error("expected Send on a closed client to fail")
	}
}

func TestWithClientPropagatesError(t *testing.T) {
	addr := fakeServer(t, func(req *proto.Package) *proto.Package {
		return &proto.Package{Transaction: req.Transaction, UUID: req.UUID}
	})

	sentinel := errors.New("handler decided to bail")
	err := WithClient(addr.String(), Config{}, func(c *Client) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("got %v, want the fn's own error", err)
	}
}
