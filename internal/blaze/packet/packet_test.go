package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	h := Header{Component: 0x4, Command: 0x1, Error: 0, Type: TypeResponse, ID: 42}
	body := []byte{1, 2, 3, 4, 5}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, body))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got.Header)
	assert.Equal(t, body, got.Body)
}

func TestRoundTripEmptyBody(t *testing.T) {
	h := Header{Component: 0x1, Command: 0x32, Type: TypeRequest, ID: 1}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got.Header)
	assert.Empty(t, got.Body)
}

func TestRoundTripExtendedLength(t *testing.T) {
	h := Header{Component: 0x4, Command: 0x2, Type: TypeNotify, ID: 7}
	body := bytes.Repeat([]byte{0xAB}, 0x10005)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, body))

	raw := buf.Bytes()
	require.True(t, raw[8]&extendedLengthFlag != 0, "extended length flag must be set")

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got.Header)
	assert.Equal(t, body, got.Body)
}

func TestErrorPacketPreservesErrorCode(t *testing.T) {
	h := Header{Component: 0x1, Command: 0x32, Type: TypeError, Error: 0x0B, ID: 5}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0B), got.Header.Error)
	assert.Equal(t, TypeError, got.Header.Type)
}

func TestReadTruncatedHeader(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}

func TestReadTruncatedBody(t *testing.T) {
	h := Header{Component: 1, Command: 1, Type: TypeRequest, ID: 1}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, []byte{1, 2, 3, 4}))

	truncated := buf.Bytes()[:headerSize+2]
	_, err := Read(bytes.NewReader(truncated))
	require.Error(t, err)
}
