package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

func TestDispatchUnknownRouteReturnsEmptyResponse(t *testing.T) {
	rt := New()
	in := &packet.Packet{Header: packet.Header{Component: 1, Command: 1, Type: packet.TypeRequest, ID: 9}}

	out := rt.Dispatch(context.Background(), in)
	require.NotNil(t, out)
	assert.Equal(t, packet.TypeResponse, out.Header.Type)
	assert.Equal(t, uint16(9), out.Header.ID)
	assert.Empty(t, out.Body)
}

func TestDispatchHandlerSuccess(t *testing.T) {
	rt := New()
	rt.Handle(1, 1, func(ctx context.Context, req Request) (*Response, error) {
		w := tdf.NewWriter()
		w.VarInt("OKAY", 1)
		return &Response{Body: w}, nil
	})

	in := &packet.Packet{Header: packet.Header{Component: 1, Command: 1, Type: packet.TypeRequest, ID: 5}}
	out := rt.Dispatch(context.Background(), in)

	assert.Equal(t, packet.TypeResponse, out.Header.Type)
	assert.Equal(t, uint16(5), out.Header.ID)
	assert.NotEmpty(t, out.Body)
}

func TestDispatchCodedErrorMapsToErrorPacket(t *testing.T) {
	rt := New()
	rt.Handle(1, 1, func(ctx context.Context, req Request) (*Response, error) {
		return nil, Fail(GameNotFound, errors.New("no such game"))
	})

	in := &packet.Packet{Header: packet.Header{Component: 1, Command: 1, Type: packet.TypeRequest, ID: 2}}
	out := rt.Dispatch(context.Background(), in)

	assert.Equal(t, packet.TypeError, out.Header.Type)
	assert.Equal(t, uint16(GameNotFound), out.Header.Error)
	assert.Equal(t, uint16(2), out.Header.ID)
}

func TestDispatchPlainErrorMapsToServerUnavailable(t *testing.T) {
	rt := New()
	rt.Handle(1, 1, func(ctx context.Context, req Request) (*Response, error) {
		return nil, errors.New("boom")
	})

	in := &packet.Packet{Header: packet.Header{Component: 1, Command: 1, Type: packet.TypeRequest, ID: 3}}
	out := rt.Dispatch(context.Background(), in)

	assert.Equal(t, packet.TypeError, out.Header.Type)
	assert.Equal(t, uint16(ServerUnavailable), out.Header.Error)
}

func TestDispatchDecodeFailureUsesCodecError(t *testing.T) {
	rt := New()
	rt.Handle(1, 1, func(ctx context.Context, req Request) (*Response, error) {
		if _, err := req.Body.ExpectString("NOPE"); err != nil {
			return nil, DecodeError(err)
		}
		return &Response{}, nil
	})

	in := &packet.Packet{Header: packet.Header{Component: 1, Command: 1, Type: packet.TypeRequest, ID: 4}}
	out := rt.Dispatch(context.Background(), in)

	assert.Equal(t, packet.TypeError, out.Header.Type)
	assert.Equal(t, uint16(CodecError), out.Header.Error)
}
