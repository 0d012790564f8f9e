// Package session drives one accepted connection through the HTCP
// state machine: optional DH handshake, optional passkey
// authentication, then a strictly sequential request/response loop.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"

	"github.com/pion/logging"

	"github.com/htcpproto/htcp/pkg/crypto"
	"github.com/htcpproto/htcp/pkg/handler"
	"github.com/htcpproto/htcp/pkg/proto"
	"github.com/htcpproto/htcp/pkg/wire"
)

// authTransaction is the fixed transaction name a passkey frame must
// carry.
const authTransaction = "_auth"

// dhInit is the server's handshake-opening message.
type dhInit struct {
	Type   string   `json:"type"`
	P      *big.Int `json:"p"`
	G      *big.Int `json:"g"`
	Public *big.Int `json:"public"`
}

// dhReply is the client's handshake-completing message.
type dhReply struct {
	Type   string   `json:"type"`
	Public *big.Int `json:"public"`
}

// Config configures a server-side Conn. It is built fresh per accepted
// connection by the owning htcp.Server.
type Config struct {
	// DHEncryption requires a handshake before any other frame is
	// read.
	DHEncryption bool

	// Profile selects the record cipher derived from the handshake.
	// Ignored when DHEncryption is false.
	Profile crypto.Profile

	// Passkey, when non-empty, requires a matching "_auth" frame
	// immediately after the handshake.
	Passkey string

	// FromAddr is stamped into every response Package's FromAddr
	// field, normally the server's bound host:port.
	FromAddr string

	// Registry dispatches decoded requests to user handlers.
	Registry *handler.Registry

	// AcquireProc/ReleaseProc gate handler dispatch on the processing
	// admission semaphore; held only around a single dispatch, never
	// for the whole connection.
	AcquireProc func(ctx context.Context) error
	ReleaseProc func()

	// ActiveConns reports the server's current connection count, for
	// snapshotting into each dispatched Request. May be nil.
	ActiveConns func() int

	// Log receives per-connection diagnostics. May be nil.
	Log logging.LeveledLogger
}

// Conn drives one accepted net.Conn through the HTCP connection state
// machine. A Conn is used once and discarded; it is not safe to call
// Serve from more than one goroutine.
type Conn struct {
	conn   net.Conn
	cfg    Config
	cipher *crypto.Cipher
}

// New wraps conn for driving through cfg's state machine.
func New(conn net.Conn, cfg Config) *Conn {
	return &Conn{conn: conn, cfg: cfg}
}

// Serve runs the connection to completion: handshake, authentication,
// then the request loop, returning when the peer closes cleanly, ctx
// is cancelled, or a protocol/crypto error occurs. It never returns an
// error for a clean close, a failed handshake, or a failed passkey
// check (all are ordinary, logged outcomes); it returns one only when
// the request loop ends on a frame, crypto, or write error.
func (c *Conn) Serve(ctx context.Context) error {
	if c.cfg.DHEncryption {
		if err := c.handshake(); err != nil {
			c.logf("handshake failed: %v", err)
			return nil
		}
	}

	if c.cfg.Passkey != "" {
		if err := c.authenticate(); err != nil {
			// Deliberate fingerprinting-resistance: close silently,
			// never report why authentication failed.
			c.logf("authentication failed, closing silently: %v", err)
			return nil
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		done, err := c.serveOne(ctx)
		if err != nil {
			c.logf("connection error: %v", err)
			return err
		}
		if done {
			return nil
		}
	}
}

// handshake runs the server side of the DH key agreement over the
// raw, flags-less handshake framing.
func (c *Conn) handshake() error {
	hs, err := crypto.NewServerHandshake()
	if err != nil {
		return err
	}

	params := hs.Params()
	initMsg := dhInit{Type: "dh_init", P: params.P, G: params.G, Public: hs.PublicValue()}
	data, err := json.Marshal(initMsg)
	if err != nil {
		return err
	}
	if err := wire.WriteRaw(c.conn, data); err != nil {
		return err
	}

	raw, err := wire.ReadRaw(c.conn)
	if err != nil {
		return err
	}
	var reply dhReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownHandshakeType, err)
	}
	if reply.Type != "dh_reply" {
		return ErrUnknownHandshakeType
	}

	if err := hs.DeriveShared(reply.Public); err != nil {
		return err
	}
	cipher, err := hs.Cipher(c.cfg.Profile)
	if err != nil {
		return err
	}
	c.cipher = cipher
	return nil
}

// authenticate reads exactly one frame and validates it as the "_auth"
// passkey package.
func (c *Conn) authenticate() error {
	flags, payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if flags&wire.FlagEncrypted != 0 {
		if c.cipher == nil {
			return ErrAuthFailed
		}
		payload, err = c.cipher.Decrypt(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	pkg, err := proto.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if pkg.Transaction != authTransaction {
		return ErrAuthFailed
	}
	if pkg.Passkey == nil {
		return ErrAuthFailed
	}
	if subtle.ConstantTimeCompare([]byte(*pkg.Passkey), []byte(c.cfg.Passkey)) != 1 {
		return ErrAuthFailed
	}
	return nil
}

// serveOne handles one request/response cycle. done reports a clean
// peer close (not an error); a non-nil err is a fatal frame/crypto
// error that must close the connection. A handler error is reported
// to the peer and is not fatal.
func (c *Conn) serveOne(ctx context.Context) (done bool, err error) {
	flags, payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		if errors.Is(err, wire.ErrClosed) {
			return true, nil
		}
		return false, err
	}

	encrypted := flags&wire.FlagEncrypted != 0
	if encrypted {
		if c.cipher == nil {
			return false, wire.ErrProtocol
		}
		payload, err = c.cipher.Decrypt(payload)
		if err != nil {
			return false, err
		}
	}

	req, err := proto.Decode(payload)
	if err != nil {
		return false, err
	}

	if c.cfg.AcquireProc != nil {
		if err := c.cfg.AcquireProc(ctx); err != nil {
			return false, err
		}
		defer c.cfg.ReleaseProc()
	}

	active := 0
	if c.cfg.ActiveConns != nil {
		active = c.cfg.ActiveConns()
	}
	result, dispatchErr := c.cfg.Registry.Dispatch(ctx, &handler.Request{
		Transaction:       req.Transaction,
		Content:           req.Content,
		UUID:              req.UUID,
		PeerAddr:          c.conn.RemoteAddr().String(),
		ActiveConnections: active,
	})

	var resp *proto.Package
	if dispatchErr != nil {
		resp = proto.NewErrorPackage(req.Transaction, dispatchErr.Error(), req.UUID)
	} else {
		resp = &proto.Package{
			Transaction: req.Transaction,
			Content:     result,
			UUID:        req.UUID,
			FromAddr:    c.cfg.FromAddr,
		}
	}
	resp.FromAddr = c.cfg.FromAddr
	// Version tags are echoed through unchanged.
	resp.ProtocolVersion = req.ProtocolVersion
	resp.ProtocolID = req.ProtocolID

	// Responses are encrypted whenever a session key exists, even if
	// the request arrived in the clear.
	if err := c.sendResponse(resp, c.cipher != nil); err != nil {
		return false, err
	}
	return false, nil
}

func (c *Conn) sendResponse(resp *proto.Package, encrypted bool) error {
	payload, err := proto.Encode(resp)
	if err != nil {
		return err
	}

	flags := resp.Flags(encrypted, true)
	if encrypted {
		payload, err = c.cipher.Encrypt(payload)
		if err != nil {
			return err
		}
	}

	frame, err := wire.Encode(payload, flags)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	return err
}

func (c *Conn) logf(format string, args ...any) {
	if c.cfg.Log != nil {
		c.cfg.Log.Debugf(format, args...)
	}
}
