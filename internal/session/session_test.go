package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/router"
	"github.com/blazerelay/server/internal/testutil"
)

const (
	testComponent = 0x4
	testCommand   = 0x1
)

func TestResponsePrecedesSelfProducedNotify(t *testing.T) {
	client, server := testutil.PipeConn(t)

	rt := router.New()
	rt.Handle(testComponent, testCommand, func(ctx context.Context, req router.Request) (*router.Response, error) {
		router.AppendNotify(ctx, &packet.Packet{
			Header: packet.Header{Component: testComponent, Command: 0x2, Type: packet.TypeNotify},
		})
		return &router.Response{}, nil
	})

	sess := New(1, server, rt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.NoError(t, packet.Write(client, packet.Header{
		Component: testComponent,
		Command:   testCommand,
		Type:      packet.TypeRequest,
		ID:        7,
	}, nil))

	first, err := packet.Read(client)
	require.NoError(t, err)
	second, err := packet.Read(client)
	require.NoError(t, err)

	assert.Equal(t, packet.TypeResponse, first.Header.Type)
	assert.Equal(t, uint16(7), first.Header.ID)
	assert.Equal(t, packet.TypeNotify, second.Header.Type)
	assert.Equal(t, uint16(0x2), second.Header.Command)
}

func TestCrossSessionNotifyDoesNotInterleaveWithResponseBatch(t *testing.T) {
	client, server := testutil.PipeConn(t)

	rt := router.New()
	handlerEntered := make(chan struct{})
	releaseHandler := make(chan struct{})
	rt.Handle(testComponent, testCommand, func(ctx context.Context, req router.Request) (*router.Response, error) {
		router.AppendNotify(ctx, &packet.Packet{
			Header: packet.Header{Component: testComponent, Command: 0x2, Type: packet.TypeNotify},
		})
		close(handlerEntered)
		<-releaseHandler
		return &router.Response{}, nil
	})

	sess := New(1, server, rt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.NoError(t, packet.Write(client, packet.Header{
		Component: testComponent,
		Command:   testCommand,
		Type:      packet.TypeRequest,
		ID:        9,
	}, nil))

	<-handlerEntered
	// A concurrent broadcast arrives while the handler is mid-flight; it must
	// not land between the response and the handler's own notify.
	go sess.Notify(&packet.Packet{
		Header: packet.Header{Component: testComponent, Command: 0x3, Type: packet.TypeNotify},
	})
	time.Sleep(20 * time.Millisecond)
	close(releaseHandler)

	// The broadcast was enqueued while the handler was still running, so it
	// goes out first; the response and the handler's own notify follow it
	// back to back.
	cross, err := packet.Read(client)
	require.NoError(t, err)
	first, err := packet.Read(client)
	require.NoError(t, err)
	second, err := packet.Read(client)
	require.NoError(t, err)

	assert.Equal(t, packet.TypeNotify, cross.Header.Type)
	assert.Equal(t, uint16(0x3), cross.Header.Command)
	assert.Equal(t, packet.TypeResponse, first.Header.Type)
	assert.Equal(t, packet.TypeNotify, second.Header.Type)
	assert.Equal(t, uint16(0x2), second.Header.Command)
}

func TestNotifyAfterCloseIsDroppedSilently(t *testing.T) {
	_, server := testutil.PipeConn(t)
	rt := router.New()
	sess := New(1, server, rt)
	sess.Close()

	assert.NotPanics(t, func() {
		sess.Notify(&packet.Packet{Header: packet.Header{Type: packet.TypeNotify}})
	})
}
