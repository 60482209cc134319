// Package redirector implements the TLS-terminated bootstrap listener game
// clients connect to first, which points them at the main server and closes
// (spec.md §4.I), grounded on the teacher's login accept loop shape
// (internal/login/server.go).
package redirector

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

// idleTimeout terminates a redirector connection that never asks for the
// server instance (spec.md §5: "Redirector idle: 60 s").
const idleTimeout = 60 * time.Second

// Server is the bootstrap listener. It tells every connecting client the
// main server's address and closes the connection.
type Server struct {
	tlsConfig  *tls.Config
	mainHost   string
	mainPort   uint16

	mu       sync.Mutex
	listener net.Listener
}

// New returns a redirector Server pointing clients at mainHost:mainPort.
func New(tlsConfig *tls.Config, mainHost string, mainPort uint16) *Server {
	return &Server{tlsConfig: tlsConfig, mainHost: mainHost, mainPort: mainPort}
}

// Addr returns the listening address, or nil before Run/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := tls.Listen("tcp", addr, s.tlsConfig)
	if err != nil {
		return fmt.Errorf("redirector: listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("redirector accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(conn, s.mainHost, s.mainPort)
		}()
	}
	wg.Wait()
	return nil
}

func handleConn(conn net.Conn, mainHost string, mainPort uint16) {
	defer conn.Close()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		in, err := packet.Read(conn)
		if err != nil {
			return
		}

		var out *packet.Packet
		if in.Header.Component == uint16(components.Redirector) && in.Header.Command == components.RedirectorGetServerInstance {
			out = instanceResponse(in.Header, mainHost, mainPort)
		} else {
			out = emptyResponse(in.Header)
		}

		if err := packet.Write(conn, out.Header, out.Body); err != nil {
			return
		}

		if in.Header.Component == uint16(components.Redirector) && in.Header.Command == components.RedirectorGetServerInstance {
			return
		}
	}
}

func emptyResponse(req packet.Header) *packet.Packet {
	return &packet.Packet{Header: packet.Header{
		Component: req.Component,
		Command:   req.Command,
		Type:      packet.TypeResponse,
		ID:        req.ID,
	}}
}

// instanceResponse builds the InstanceDetails response: an ADDR union
// wrapping a host (IPv4 address or hostname) and port, plus SECU/XDNS
// booleans, grounded on original_source/src/utils/models.rs InstanceDetails.
func instanceResponse(req packet.Header, host string, port uint16) *packet.Packet {
	w := tdf.NewWriter()
	w.Union("ADDR", 0x0, func(w *tdf.Writer) {
		w.NestedGroupStart("VALU")
		if addr, err := netip.ParseAddr(host); err == nil && addr.Is4() {
			b := addr.As4()
			w.VarInt("IP", uint64(binary.BigEndian.Uint32(b[:])))
		} else {
			w.String("HOST", host)
		}
		w.VarInt("PORT", uint64(port))
		w.GroupEnd()
	})
	w.Bool("SECU", false)
	w.Bool("XDNS", false)

	return &packet.Packet{
		Header: packet.Header{
			Component: req.Component,
			Command:   req.Command,
			Type:      packet.TypeResponse,
			ID:        req.ID,
		},
		Body: w.Bytes(),
	}
}
