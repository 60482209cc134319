package retriever

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
	"github.com/blazerelay/server/internal/testutil"
)

func newTestClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientConn, upstream := testutil.PipeConn(t)
	c := &Client{
		conn:    clientConn,
		waiting: make(map[uint16]*pending),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(func() { c.Close() })
	return c, upstream
}

func TestOriginLoginDecodesEmailAndDisplayName(t *testing.T) {
	c, upstream := newTestClient(t)

	go func() {
		req, err := packet.Read(upstream)
		require.NoError(t, err)
		assert.Equal(t, uint16(components.Authentication), req.Header.Component)
		assert.Equal(t, components.AuthOriginLogin, req.Header.Command)

		w := tdf.NewWriter()
		w.String("MAIL", "player@example.com")
		w.String("DSNM", "ShepardN7")
		require.NoError(t, packet.Write(upstream, packet.Header{
			Component: req.Header.Component,
			Command:   req.Header.Command,
			Type:      packet.TypeResponse,
			ID:        req.Header.ID,
		}, w.Bytes()))
	}()

	email, displayName, err := c.OriginLogin(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "player@example.com", email)
	assert.Equal(t, "ShepardN7", displayName)
}

func TestNotifyPacketsAreDiscarded(t *testing.T) {
	c, upstream := newTestClient(t)

	go func() {
		require.NoError(t, packet.Write(upstream, packet.Header{
			Component: 0x99,
			Command:   0x1,
			Type:      packet.TypeNotify,
		}, nil))

		req, err := packet.Read(upstream)
		require.NoError(t, err)

		w := tdf.NewWriter()
		w.StringMap("SMAP", map[string]string{"k": "v"})
		require.NoError(t, packet.Write(upstream, packet.Header{
			Component: req.Header.Component,
			Command:   req.Header.Command,
			Type:      packet.TypeResponse,
			ID:        req.Header.ID,
		}, w.Bytes()))
	}()

	settings, err := c.OriginSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, settings)
}

func TestErrorPacketSurfacesAsUpstreamError(t *testing.T) {
	c, upstream := newTestClient(t)

	go func() {
		req, err := packet.Read(upstream)
		require.NoError(t, err)
		require.NoError(t, packet.Write(upstream, packet.Header{
			Component: req.Header.Component,
			Command:   req.Header.Command,
			Type:      packet.TypeError,
			ID:        req.Header.ID,
			Error:     0x0B,
		}, nil))
	}()

	_, _, err := c.OriginLogin(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrUpstreamError)
}
