package rpc

import (
	"fmt"
)

// Frame is the wire form of a Message: the meta-tag section is decoded, the
// value section is still encoded. Frames are cheap to share; the client loop
// hands the same frame to every subscriber sink.
type Frame struct {
	meta    map[int]Value
	payload []byte
}

// ToFrame encodes the message value section, producing its wire form.
func (m *Message) ToFrame() (*Frame, error) {
	payload, err := encodeValue(IMap(m.value))
	if err != nil {
		return nil, fmt.Errorf("encode message value section: %w", err)
	}
	meta := make(map[int]Value, len(m.meta))
	for k, v := range m.meta {
		meta[k] = v
	}
	return &Frame{meta: meta, payload: payload}, nil
}

// ToMessage decodes the frame's value section.
func (f *Frame) ToMessage() (*Message, error) {
	v, err := decodeValue(f.payload)
	if err != nil {
		return nil, fmt.Errorf("decode frame value section: %w", err)
	}
	value := v.AsIMap()
	if value == nil && !v.IsNull() {
		return nil, fmt.Errorf("frame value section is %s, expected IMap", v.Kind())
	}
	if value == nil {
		value = map[int]Value{}
	}
	meta := make(map[int]Value, len(f.meta))
	for k, vv := range f.meta {
		meta[k] = vv
	}
	return &Message{meta: meta, value: value}, nil
}

// RequestID returns the request id tag.
func (f *Frame) RequestID() (int64, bool) {
	v, ok := f.meta[TagRequestID]
	if !ok {
		return 0, false
	}
	return v.AsInt(), true
}

// ShvPath returns the path tag, "" when absent.
func (f *Frame) ShvPath() string { return f.meta[TagShvPath].AsString() }

// Method returns the method tag, "" when absent.
func (f *Frame) Method() string { return f.meta[TagMethod].AsString() }

// IsRequest reports whether the frame carries a request.
func (f *Frame) IsRequest() bool {
	_, hasID := f.meta[TagRequestID]
	_, hasMethod := f.meta[TagMethod]
	return hasID && hasMethod
}

// IsResponse reports whether the frame carries a response.
func (f *Frame) IsResponse() bool {
	_, hasID := f.meta[TagRequestID]
	_, hasMethod := f.meta[TagMethod]
	return hasID && !hasMethod
}

// IsSignal reports whether the frame carries a signal.
func (f *Frame) IsSignal() bool {
	_, hasID := f.meta[TagRequestID]
	_, hasMethod := f.meta[TagMethod]
	return !hasID && hasMethod
}

// Encode serializes the whole frame body: protocol byte, meta section,
// value section. The transport prepends record marking.
func (f *Frame) Encode() ([]byte, error) {
	metaBytes, err := encodeValue(IMap(f.meta))
	if err != nil {
		return nil, fmt.Errorf("encode frame meta section: %w", err)
	}
	out := make([]byte, 0, 1+len(metaBytes)+len(f.payload))
	out = append(out, protoChainPack)
	out = append(out, metaBytes...)
	out = append(out, f.payload...)
	return out, nil
}

// DecodeFrame parses a frame body produced by Encode.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if data[0] != protoChainPack {
		return nil, fmt.Errorf("unsupported frame protocol 0x%02x", data[0])
	}
	metaValue, rest, err := decodeValuePrefix(data[1:])
	if err != nil {
		return nil, fmt.Errorf("decode frame meta section: %w", err)
	}
	meta := metaValue.AsIMap()
	if meta == nil {
		return nil, fmt.Errorf("frame meta section is %s, expected IMap", metaValue.Kind())
	}
	payload := make([]byte, len(rest))
	copy(payload, rest)
	return &Frame{meta: meta, payload: payload}, nil
}

func (f *Frame) String() string {
	kind := "frame"
	switch {
	case f.IsRequest():
		kind = "request frame"
	case f.IsResponse():
		kind = "response frame"
	case f.IsSignal():
		kind = "signal frame"
	}
	id, _ := f.RequestID()
	return fmt.Sprintf("<%s id=%d path=%q method=%q>", kind, id, f.ShvPath(), f.Method())
}
