// Package retriever implements the optional upstream Blaze client used to
// authenticate Origin-linked accounts against the publisher's own servers
// (spec.md §4.J). It speaks the same framer/codec as the main listener, just
// as a client instead of a server, grounded on the teacher's client/server
// protocol symmetry (internal/protocol is shared both directions).
package retriever

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

// requestTimeout bounds any single round trip (spec.md §5: "Retriever
// request: <= 30 s").
const requestTimeout = 30 * time.Second

// ErrUpstreamError is returned when the publisher server answers a request
// with an Error packet.
var ErrUpstreamError = errors.New("retriever: upstream returned an error packet")

// ErrClosed is returned by in-flight and subsequent calls once the
// connection has terminated.
var ErrClosed = errors.New("retriever: connection closed")

// pending is one in-flight request's completion channel.
type pending struct {
	ch chan *packet.Packet
}

// Client is a connected upstream Blaze session: monotonically increasing
// request ids correlated against responses by a background reader, Notify
// packets discarded, Error packets surfaced as ErrUpstreamError.
type Client struct {
	conn net.Conn

	nextID atomic.Uint32

	mu      sync.Mutex
	waiting map[uint16]*pending
	closed  bool
	closeCh chan struct{}
}

// Dial opens a TLS connection to addr and starts the background reader.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Client, error) {
	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("retriever: dialing %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		waiting: make(map[uint16]*pending),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close terminates the connection and fails every in-flight request.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, p := range c.waiting {
		close(p.ch)
		delete(c.waiting, id)
	}
	close(c.closeCh)
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		pkt, err := packet.Read(c.conn)
		if err != nil {
			slog.Debug("retriever connection read terminated", "error", err)
			c.Close()
			return
		}
		if pkt.Header.Type == packet.TypeNotify {
			continue // discarded per spec.md §4.J
		}

		c.mu.Lock()
		p, ok := c.waiting[pkt.Header.ID]
		if ok {
			delete(c.waiting, pkt.Header.ID)
		}
		c.mu.Unlock()

		if !ok {
			continue
		}
		p.ch <- pkt
	}
}

// request sends a Request packet and waits for its correlated Response or
// Error, bounded by requestTimeout and ctx.
func (c *Client) request(ctx context.Context, component components.Component, command uint16, body *tdf.Writer) (*packet.Packet, error) {
	id := uint16(c.nextID.Add(1))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	p := &pending{ch: make(chan *packet.Packet, 1)}
	c.waiting[id] = p
	c.mu.Unlock()

	var bodyBytes []byte
	if body != nil {
		bodyBytes = body.Bytes()
	}
	header := packet.Header{Component: uint16(component), Command: command, Type: packet.TypeRequest, ID: id}
	if err := packet.Write(c.conn, header, bodyBytes); err != nil {
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("retriever: writing request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case resp, ok := <-p.ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Header.Type == packet.TypeError {
			return nil, fmt.Errorf("%w: code %#x", ErrUpstreamError, resp.Header.Error)
		}
		return resp, nil
	case <-reqCtx.Done():
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("retriever: request timed out: %w", reqCtx.Err())
	case <-c.closeCh:
		return nil, ErrClosed
	}
}

// OriginLogin authenticates an Origin token against the upstream
// Authentication/OriginLogin command and returns the resolved account
// email and display name, grounded on
// original_source/src/session/models/auth.rs OriginLoginRequest/Response.
func (c *Client) OriginLogin(ctx context.Context, token string) (email, displayName string, err error) {
	w := tdf.NewWriter()
	w.String("AUTH", token)
	w.VarInt("TYPE", 0)

	resp, err := c.request(ctx, components.Authentication, components.AuthOriginLogin, w)
	if err != nil {
		return "", "", err
	}

	r := tdf.NewReader(resp.Body)
	email, err = r.ExpectString("MAIL")
	if err != nil {
		return "", "", fmt.Errorf("retriever: decoding origin login response: %w", err)
	}
	displayName, err = r.ExpectString("DSNM")
	if err != nil {
		return "", "", fmt.Errorf("retriever: decoding origin login response: %w", err)
	}
	return email, displayName, nil
}

// OriginSettings loads the account's full settings map from the upstream
// Util/UserSettingsLoadAll command, grounded on
// original_source/src/session/models/util.rs SettingsResponse (tag SMAP).
func (c *Client) OriginSettings(ctx context.Context) (map[string]string, error) {
	resp, err := c.request(ctx, components.Util, components.UtilUserSettingsLoadAll, nil)
	if err != nil {
		return nil, err
	}

	r := tdf.NewReader(resp.Body)
	settings, err := r.ExpectStringMap("SMAP")
	if err != nil {
		return nil, fmt.Errorf("retriever: decoding settings response: %w", err)
	}
	return settings, nil
}
