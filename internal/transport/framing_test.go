package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	require.NoError(t, writeFrame(&buf, body))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Zero(t, buf.Len(), "no trailing bytes")
}

func TestFraming_EmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, nil))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFraming_MultipleFragments(t *testing.T) {
	var buf bytes.Buffer

	// Two fragments: "hello " without the last bit, "world" with it.
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 6)
	buf.Write(header[:])
	buf.WriteString("hello ")
	binary.BigEndian.PutUint32(header[:], 5|0x80000000)
	buf.Write(header[:])
	buf.WriteString("world")

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestFraming_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], (MaxFrameSize+1)|0x80000000)
	buf.Write(header[:])

	_, err := readFrame(&buf)
	assert.Error(t, err)

	assert.Error(t, writeFrame(io.Discard, make([]byte, MaxFrameSize+1)))
}

func TestFraming_EOFOnClosedStream(t *testing.T) {
	_, err := readFrame(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}
