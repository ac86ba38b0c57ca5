package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_NestedValueRoundTrip(t *testing.T) {
	v := Map(map[string]Value{
		"null":    Null(),
		"bool":    Bool(true),
		"int":     Int(-1234567),
		"uint":    UInt(18446744073709551615),
		"double":  Double(3.5),
		"decimal": Decimal(3141, -3),
		"time":    DateTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		"string":  String("čau\x00world"),
		"blob":    Blob([]byte{0, 1, 2, 255}),
		"list":    List(Int(1), String("two"), List()),
		"imap": IMap(map[int]Value{
			-1: String("minus one"),
			8:  Int(42),
		}),
	})

	data, err := encodeValue(v)
	require.NoError(t, err)

	got, err := decodeValue(data)
	require.NoError(t, err)
	assert.True(t, v.Equal(got), "decoded value differs: %s vs %s", v, got)
}

func TestCodec_RejectsTrailingGarbage(t *testing.T) {
	data, err := encodeValue(Int(1))
	require.NoError(t, err)
	_, err = decodeValue(append(data, 0x00))
	assert.Error(t, err)
}

func TestCodec_RejectsTruncatedInput(t *testing.T) {
	data, err := encodeValue(String("hello"))
	require.NoError(t, err)
	_, err = decodeValue(data[:len(data)-2])
	assert.Error(t, err)
}

func TestFrame_MessageRoundTrip(t *testing.T) {
	req := NewRequest("path/to/resource", "get", Int(42))
	req.SetAccessLevel(AccessRead)

	frame, err := req.ToFrame()
	require.NoError(t, err)
	assert.True(t, frame.IsRequest())
	assert.Equal(t, "path/to/resource", frame.ShvPath())
	assert.Equal(t, "get", frame.Method())

	wire, err := frame.Encode()
	require.NoError(t, err)

	decoded, err := DecodeFrame(wire)
	require.NoError(t, err)

	msg, err := decoded.ToMessage()
	require.NoError(t, err)
	assert.True(t, msg.IsRequest())
	assert.Equal(t, "path/to/resource", msg.ShvPath())
	assert.Equal(t, "get", msg.Method())
	assert.EqualValues(t, 42, msg.Param().AsInt())
	level, ok := msg.AccessLevel()
	require.True(t, ok)
	assert.Equal(t, AccessRead, level)

	wantID, _ := req.RequestID()
	gotID, ok := msg.RequestID()
	require.True(t, ok)
	assert.Equal(t, wantID, gotID)
}

func TestDecodeFrame_UnknownProtocol(t *testing.T) {
	_, err := DecodeFrame([]byte{0x7f, 0x00})
	assert.Error(t, err)

	_, err = DecodeFrame(nil)
	assert.Error(t, err)
}
