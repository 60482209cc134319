// Package session implements the per-connection actor: a reader goroutine
// dispatching through the router, and a dedicated writer goroutine draining
// a buffered send queue, modeled on the teacher's GameClient/writePump
// architecture (internal/gameserver/client.go, internal/gameserver/server.go)
// and generalized to the Blaze packet framer (spec.md §4.D).
package session

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/router"
)

// defaultSendQueueSize is the buffered notification queue depth before a
// slow session is disconnected, mirroring the teacher's defaultSendQueueSize.
const defaultSendQueueSize = 256

// shutdownFlushTimeout bounds how long Close waits for the writer to drain
// on shutdown (spec.md §5 "Writer flush on shutdown: <= 5 s").
const shutdownFlushTimeout = 5 * time.Second

// ID identifies a session for matchmaking-queue bookkeeping and logging.
type ID uint32

// Session is one accepted connection: an inbound reader loop dispatching
// through a router.Router, and an outbound writer goroutine that serializes
// all packets (responses and notifications) onto the wire in enqueue order.
type Session struct {
	id     ID
	conn   net.Conn
	router *router.Router

	sendCh  chan *packet.Packet
	closeCh chan struct{}
	closed  atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup

	// sendMu protects the enqueue ordering described in spec.md §4.D: a
	// handler's response and any notifications it produced for this same
	// session must enqueue contiguously, with no other caller's Notify
	// interleaved in between.
	sendMu sync.Mutex

	// OnClose, if set, runs once after the session terminates (reader loop
	// exit or explicit Close), used by callers to evict roster/queue entries.
	OnClose func()
}

// New wraps conn as a session dispatching through rt. id is caller-assigned
// (the gamemanager registry key space, or any unique value for tests).
func New(id ID, conn net.Conn, rt *router.Router) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		router:  rt,
		sendCh:  make(chan *packet.Packet, defaultSendQueueSize),
		closeCh: make(chan struct{}),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() ID { return s.id }

// SetRouter assigns the router used to dispatch inbound packets. Handlers
// often need the session itself as their notification sink, so callers
// construct the Session first and wire its router once that sink is
// available to the handler factory.
func (s *Session) SetRouter(rt *router.Router) { s.router = rt }

// Run starts the writer goroutine and blocks in the reader loop until the
// connection errors, ctx is cancelled, or Close is called. It always closes
// the session before returning.
func (s *Session) Run(ctx context.Context) {
	s.wg.Add(1)
	go s.writeLoop()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closeCh:
		}
	}()

	defer s.Close()

	for {
		pkt, err := packet.Read(s.conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Debug("session read terminated", "session", s.id, "error", err)
			}
			return
		}

		var outbox []*packet.Packet
		reqCtx := router.WithOutbox(ctx, &outbox)
		resp := s.router.Dispatch(reqCtx, pkt)

		s.sendMu.Lock()
		s.enqueueLocked(resp)
		for _, n := range outbox {
			s.enqueueLocked(n)
		}
		s.sendMu.Unlock()
	}
}

// Notify delivers pkt asynchronously, implementing game.Sink. Per spec.md
// §4.D, it never blocks or errors the caller: a closed session silently
// drops the notification, and a session whose send queue is full is closed.
func (s *Session) Notify(pkt *packet.Packet) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.enqueueLocked(pkt)
}

func (s *Session) enqueueLocked(pkt *packet.Packet) {
	if pkt == nil || s.closed.Load() {
		return
	}
	select {
	case s.sendCh <- pkt:
	default:
		slog.Warn("session send queue full, closing session", "session", s.id)
		// the caller holds sendMu, which Close also takes
		go s.Close()
	}
}

// writeLoop drains sendCh in order, the only goroutine that touches conn for
// writes. It exits once sendCh is closed and drained, so Close's flush
// window has a chance to deliver everything already queued.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	for pkt := range s.sendCh {
		if err := packet.Write(s.conn, pkt.Header, pkt.Body); err != nil {
			slog.Debug("session write failed", "session", s.id, "error", err)
			return
		}
	}
}

// Close terminates the session. Safe to call multiple times and from any
// goroutine. Waits up to shutdownFlushTimeout for the writer to drain
// already-queued packets before closing the connection.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closeCh)

		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.sendCh)
		s.sendMu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownFlushTimeout):
		}

		_ = s.conn.Close()
		if s.OnClose != nil {
			s.OnClose()
		}
	})
}
