// Package qos implements the UDP echo probe used by the game client to
// measure latency and learn its own public address (spec.md §4.K), grounded
// on the teacher's raw net usage pattern (no framework needed for a
// single-packet echo).
package qos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// maxDatagramSize bounds a single read; QoS probes are small fixed packets.
const maxDatagramSize = 1024

// echoPrefixLen is how many leading bytes of the client's probe are echoed
// back verbatim before the address trailer (spec.md §4.K).
const echoPrefixLen = 20

// Server answers UDP QoS probes.
type Server struct {
	conn *net.UDPConn
}

// New returns an empty qos Server.
func New() *Server { return &Server{} }

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("qos: resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("qos: listening on %s: %w", addr, err)
	}
	s.conn = conn
	return s.Serve(ctx, conn)
}

// Serve answers probes received on conn until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Debug("qos read failed", "error", err)
			continue
		}

		reply := buildReply(buf[:n], peer)
		if _, err := conn.WriteToUDP(reply, peer); err != nil {
			slog.Debug("qos write failed", "error", err)
		}
	}
}

// Close closes the listening socket.
func (s *Server) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// buildReply echoes the first 20 bytes of the probe (zero-padded if the
// probe is shorter), then the peer's IPv4 address, big-endian port, and
// four zero bytes (spec.md §4.K).
func buildReply(probe []byte, peer *net.UDPAddr) []byte {
	reply := make([]byte, echoPrefixLen+4+2+4)
	copy(reply[:echoPrefixLen], probe)

	ip4 := peer.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(reply[echoPrefixLen:echoPrefixLen+4], ip4)

	port := uint16(peer.Port)
	reply[echoPrefixLen+4] = byte(port >> 8)
	reply[echoPrefixLen+5] = byte(port)

	return reply
}
