// Package router dispatches (component, command) packets to registered
// handlers, decoding typed request bodies and mapping handler errors to
// Blaze error codes (spec.md §4.C, §7).
package router

import (
	"context"
	"fmt"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

// Code is the wire error code carried in a packet's error field.
type Code uint32

// Error kinds surfaced on the wire, per spec.md §7.
const (
	CodeNone Code = 0

	AuthInvalidUser     Code = 0x0B
	AuthInvalidPassword Code = 0x0C
	AuthInvalidToken    Code = 0x0D
	AuthExpiredToken    Code = 0x0E
	AuthEmailTaken      Code = 0x0F
	AuthOriginAccess    Code = 0x10

	GameNotFound Code = 0x0200
	GameFull     Code = 0x0201
	GameStopping Code = 0x0202

	MatchmakingCancelled Code = 0x0300

	LeaderboardRangeInvalid     Code = 0x0400
	LeaderboardPlayerNotFound   Code = 0x0401

	CodecError       Code = 0x7000
	ServerUnavailable Code = 0x7001
)

// CodedError is a handler-local error that maps directly to an Error packet.
type CodedError struct {
	Code Code
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("router: code %#x: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("router: code %#x", e.Code)
}

func (e *CodedError) Unwrap() error { return e.Err }

// Fail wraps err (or a default message) with a wire error code.
func Fail(code Code, err error) error {
	return &CodedError{Code: code, Err: err}
}

// Request is the decoded inbound packet handed to a handler.
type Request struct {
	Header packet.Header
	Body   *tdf.Reader
}

// Response is a handler's successful result. A nil Body produces an empty
// response body, matching "unknown route -> empty Response".
type Response struct {
	Body *tdf.Writer
}

// Handler processes one request. ctx carries cancellation for suspension
// points (persistence, retriever, locks) per SPEC_FULL.md §5.
type Handler func(ctx context.Context, req Request) (*Response, error)

type routeKey struct {
	component uint16
	command   uint16
}

// Router is a (component, command) -> Handler dispatch table.
type Router struct {
	routes map[routeKey]Handler
}

// New returns an empty Router.
func New() *Router {
	return &Router{routes: make(map[routeKey]Handler)}
}

// Handle registers a handler for (component, command). Re-registering the
// same pair overwrites the previous handler.
func (rt *Router) Handle(component, command uint16, h Handler) {
	rt.routes[routeKey{component, command}] = h
}

// Dispatch looks up and invokes the handler for the packet's (component,
// command), applying the dispatch policy from spec.md §4.C:
//   - unknown route: empty Response packet, echoing id.
//   - handler returns *CodedError: Error packet with that code.
//   - handler returns any other error: Error packet with ServerUnavailable.
//   - handler succeeds: Response packet with the encoded body.
//
// Dispatch never returns an error itself; errors are always translated into
// an outgoing Error packet so a single bad request never aborts the session.
func (rt *Router) Dispatch(ctx context.Context, in *packet.Packet) *packet.Packet {
	h, ok := rt.routes[routeKey{in.Header.Component, in.Header.Command}]
	if !ok {
		return emptyResponse(in.Header)
	}

	req := Request{Header: in.Header, Body: tdf.NewReader(in.Body)}
	resp, err := h(ctx, req)
	if err != nil {
		return errorResponse(in.Header, err)
	}
	if resp == nil || resp.Body == nil {
		return emptyResponse(in.Header)
	}
	return &packet.Packet{
		Header: packet.Header{
			Component: in.Header.Component,
			Command:   in.Header.Command,
			Type:      packet.TypeResponse,
			ID:        in.Header.ID,
		},
		Body: resp.Body.Bytes(),
	}
}

func emptyResponse(req packet.Header) *packet.Packet {
	return &packet.Packet{
		Header: packet.Header{
			Component: req.Component,
			Command:   req.Command,
			Type:      packet.TypeResponse,
			ID:        req.ID,
		},
	}
}

func errorResponse(req packet.Header, err error) *packet.Packet {
	code := ServerUnavailable
	var coded *CodedError
	if ce, ok := err.(*CodedError); ok {
		coded = ce
	}
	if coded != nil {
		code = coded.Code
	}
	return &packet.Packet{
		Header: packet.Header{
			Component: req.Component,
			Command:   req.Command,
			Type:      packet.TypeError,
			ID:        req.ID,
			Error:     uint16(code),
		},
	}
}

// DecodeError wraps a request body decode failure as CODEC_ERROR, per
// spec.md §4.C and §7 ("decode failure -> Error packet with code
// CODEC_ERROR").
func DecodeError(err error) error {
	return Fail(CodecError, err)
}

type outboxKey struct{}

// WithOutbox attaches a notification outbox to ctx. A handler that produces
// notifications targeting the requesting session itself (as opposed to other
// sessions it reaches directly through a Sink) appends them via AppendNotify
// instead of delivering them inline, so the session can enqueue them strictly
// after the response (spec.md §4.D: "appends its response, may then append
// any notifications it produced").
func WithOutbox(ctx context.Context, outbox *[]*packet.Packet) context.Context {
	return context.WithValue(ctx, outboxKey{}, outbox)
}

// AppendNotify records a self-directed notification produced while handling
// the current request. A no-op if ctx carries no outbox.
func AppendNotify(ctx context.Context, pkt *packet.Packet) {
	if ob, ok := ctx.Value(outboxKey{}).(*[]*packet.Packet); ok {
		*ob = append(*ob, pkt)
	}
}
