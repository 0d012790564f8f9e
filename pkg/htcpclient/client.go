// Package htcpclient implements the client mirror of the HTCP
// connection state machine: connect,
// optionally handshake and authenticate, then ask/send requests.
package htcpclient

import (
	"encoding/json"
	"math/big"
	"net"

	"github.com/htcpproto/htcp/pkg/crypto"
	"github.com/htcpproto/htcp/pkg/proto"
	"github.com/htcpproto/htcp/pkg/wire"
)

// authTransaction is the fixed transaction name the server expects the
// passkey frame to carry.
const authTransaction = "_auth"

type dhInit struct {
	Type   string   `json:"type"`
	P      *big.Int `json:"p"`
	G      *big.Int `json:"g"`
	Public *big.Int `json:"public"`
}

type dhReply struct {
	Type   string   `json:"type"`
	Public *big.Int `json:"public"`
}

// Config configures a Client's connection behavior. It must match the
// server's Config for the handshake/auth steps to succeed.
type Config struct {
	// DHEncryption runs the client side of the DH handshake
	// immediately after connecting.
	DHEncryption bool

	// Profile selects the record cipher derived from the handshake.
	// Must match the server's configured profile.
	Profile crypto.Profile

	// Passkey, when non-empty, is sent as an "_auth" package
	// immediately after the handshake (or immediately after connecting,
	// if DHEncryption is false).
	Passkey string
}

// Client is a connected HTCP peer driving the client side of the
// connection state machine.
type Client struct {
	conn   net.Conn
	cfg    Config
	cipher *crypto.Cipher
}

// Connect dials addr and runs the configured handshake/auth steps.
func Connect(addr string, cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{conn: conn, cfg: cfg}

	if cfg.DHEncryption {
		if err := c.handshake(); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if cfg.Passkey != "" {
		if err := c.sendAuth(); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return c, nil
}

// WithClient opens a connection, runs fn, and closes the connection
// when fn returns, whatever the outcome.
func WithClient(addr string, cfg Config, fn func(*Client) error) error {
	c, err := Connect(addr, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func (c *Client) handshake() error {
	raw, err := wire.ReadRaw(c.conn)
	if err != nil {
		return err
	}
	var init dhInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return err
	}
	if init.Type != "dh_init" {
		return ErrUnknownHandshakeType
	}

	hs, err := crypto.NewClientHandshake(init.P, init.G)
	if err != nil {
		return err
	}
	if err := hs.DeriveShared(init.Public); err != nil {
		return err
	}

	reply := dhReply{Type: "dh_reply", Public: hs.PublicValue()}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	if err := wire.WriteRaw(c.conn, data); err != nil {
		return err
	}

	cipher, err := hs.Cipher(c.cfg.Profile)
	if err != nil {
		return err
	}
	c.cipher = cipher
	return nil
}

func (c *Client) sendAuth() error {
	passkey := c.cfg.Passkey
	pkg := proto.New(authTransaction, nil)
	pkg.Passkey = &passkey
	return c.Send(pkg)
}

// Ask sends p and waits for its response, verifying the response's
// uuid matches p's.
func (c *Client) Ask(p *proto.Package) (*proto.Package, error) {
	if err := c.Send(p); err != nil {
		return nil, err
	}

	resp, err := c.recv()
	if err != nil {
		return nil, err
	}
	if resp.UUID != p.UUID {
		return nil, &CorrelationError{Want: p.UUID, Got: resp.UUID}
	}
	return resp, nil
}

// Send transmits p without waiting for a response.
func (c *Client) Send(p *proto.Package) error {
	encrypted := c.cipher != nil

	payload, err := proto.Encode(p)
	if err != nil {
		return err
	}
	flags := p.Flags(encrypted, false)
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

func (c *Client) recv() (*proto.Package, error) {
	flags, payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	if flags&wire.FlagEncrypted != 0 {
		if c.cipher == nil {
			return nil, wire.ErrProtocol
		}
		payload, err = c.cipher.Decrypt(payload)
		if err != nil {
			return nil, err
		}
	}
	return proto.Decode(payload)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
