package qos

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReplyEchoesPrefixAndAppendsPeerAddress(t *testing.T) {
	peer := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 7), Port: 3659}
	probe := []byte("QOSPROBEPACKETDATA!!")
	require.Len(t, probe, echoPrefixLen)

	reply := buildReply(probe, peer)
	require.Len(t, reply, echoPrefixLen+4+2+4)
	assert.Equal(t, probe, reply[:echoPrefixLen])
	assert.Equal(t, []byte{203, 0, 113, 7}, reply[echoPrefixLen:echoPrefixLen+4])
	assert.Equal(t, byte(3659>>8), reply[echoPrefixLen+4])
	assert.Equal(t, byte(3659), reply[echoPrefixLen+5])
	assert.Equal(t, []byte{0, 0, 0, 0}, reply[echoPrefixLen+6:])
}

func TestBuildReplyPadsShortProbe(t *testing.T) {
	peer := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}
	reply := buildReply([]byte("short"), peer)
	assert.Equal(t, "short", string(reply[:5]))
	for _, b := range reply[5:echoPrefixLen] {
		assert.Equal(t, byte(0), b)
	}
}
