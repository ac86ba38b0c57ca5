package rpc

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Meta-tag keys of an RPC message.
const (
	TagMetaTypeID  = 1
	TagRequestID   = 8
	TagShvPath     = 9
	TagMethod      = 10
	TagCallerIDs   = 11
	TagAccessLevel = 17
)

// Keys of the message value section.
const (
	KeyParam  = 1
	KeyResult = 2
	KeyError  = 3
)

// rpcMessageType is the value of TagMetaTypeID for RPC messages.
const rpcMessageType = 1

var requestID atomic.Int64

// nextRequestID returns a request id unique within the process lifetime.
func nextRequestID() int64 {
	return requestID.Add(1)
}

// Message is a decoded RPC message: request, response, or signal.
//
// The kind is derived from the meta tags: a request has a request id and a
// method, a response has a request id without a method, and a signal has a
// method without a request id.
type Message struct {
	meta  map[int]Value
	value map[int]Value
}

// NewMessage creates an empty message.
func NewMessage() *Message {
	return &Message{
		meta:  map[int]Value{TagMetaTypeID: Int(rpcMessageType)},
		value: map[int]Value{},
	}
}

// NewRequest creates a request with a fresh process-wide unique request id.
// A null param is omitted from the message.
func NewRequest(shvPath, method string, param Value) *Message {
	m := NewMessage()
	m.meta[TagRequestID] = Int(nextRequestID())
	m.meta[TagShvPath] = String(shvPath)
	m.meta[TagMethod] = String(method)
	if !param.IsNull() {
		m.value[KeyParam] = param
	}
	return m
}

// NewSignal creates a signal notification message.
func NewSignal(shvPath, signal string, param Value) *Message {
	m := NewMessage()
	m.meta[TagShvPath] = String(shvPath)
	m.meta[TagMethod] = String(signal)
	if !param.IsNull() {
		m.value[KeyParam] = param
	}
	return m
}

// RequestID returns the request id tag.
func (m *Message) RequestID() (int64, bool) {
	v, ok := m.meta[TagRequestID]
	if !ok {
		return 0, false
	}
	return v.AsInt(), true
}

// SetRequestID sets the request id tag.
func (m *Message) SetRequestID(id int64) { m.meta[TagRequestID] = Int(id) }

// ShvPath returns the path tag, "" when absent.
func (m *Message) ShvPath() string { return m.meta[TagShvPath].AsString() }

// SetShvPath rewrites the path tag.
func (m *Message) SetShvPath(path string) { m.meta[TagShvPath] = String(path) }

// Method returns the method tag, "" when absent.
func (m *Message) Method() string { return m.meta[TagMethod].AsString() }

// CallerIDs returns the opaque caller-ids tag.
func (m *Message) CallerIDs() Value { return m.meta[TagCallerIDs] }

// SetCallerIDs sets the opaque caller-ids tag.
func (m *Message) SetCallerIDs(v Value) {
	if !v.IsNull() {
		m.meta[TagCallerIDs] = v
	}
}

// AccessLevel returns the access level tag of the message.
func (m *Message) AccessLevel() (AccessLevel, bool) {
	v, ok := m.meta[TagAccessLevel]
	if !ok {
		return 0, false
	}
	return AccessLevel(v.AsInt()), true
}

// SetAccessLevel sets the access level tag.
func (m *Message) SetAccessLevel(level AccessLevel) {
	m.meta[TagAccessLevel] = Int(int64(level))
}

// IsRequest reports whether the message is a request.
func (m *Message) IsRequest() bool {
	_, hasID := m.meta[TagRequestID]
	_, hasMethod := m.meta[TagMethod]
	return hasID && hasMethod
}

// IsResponse reports whether the message is a response.
func (m *Message) IsResponse() bool {
	_, hasID := m.meta[TagRequestID]
	_, hasMethod := m.meta[TagMethod]
	return hasID && !hasMethod
}

// IsSignal reports whether the message is a signal notification.
func (m *Message) IsSignal() bool {
	_, hasID := m.meta[TagRequestID]
	_, hasMethod := m.meta[TagMethod]
	return !hasID && hasMethod
}

// Param returns the request parameter, Null when absent.
func (m *Message) Param() Value { return m.value[KeyParam] }

// SetParam sets the request parameter.
func (m *Message) SetParam(v Value) {
	if v.IsNull() {
		delete(m.value, KeyParam)
		return
	}
	m.value[KeyParam] = v
}

// Result returns the response result. ok is false if the message carries an
// error or no result at all.
func (m *Message) Result() (Value, bool) {
	if _, isErr := m.value[KeyError]; isErr {
		return Value{}, false
	}
	v, ok := m.value[KeyResult]
	if !ok {
		return Value{}, false
	}
	return v, true
}

// SetResult sets the response result and clears any error.
func (m *Message) SetResult(v Value) {
	delete(m.value, KeyError)
	m.value[KeyResult] = v
}

// Err returns the RPC error of an error response, nil otherwise.
func (m *Message) Err() *Error {
	v, ok := m.value[KeyError]
	if !ok {
		return nil
	}
	return ErrorFromValue(v)
}

// SetError marks the message as an error response.
func (m *Message) SetError(e *Error) {
	delete(m.value, KeyResult)
	m.value[KeyError] = e.ToValue()
}

// PrepareResponse creates an empty response correlated to this request:
// same request id and caller ids, no method.
func (m *Message) PrepareResponse() (*Message, error) {
	id, ok := m.RequestID()
	if !ok {
		return nil, errors.New("cannot prepare a response to a message without a request id")
	}
	resp := NewMessage()
	resp.SetRequestID(id)
	resp.SetCallerIDs(m.CallerIDs())
	return resp, nil
}

// Clone returns a deep-enough copy: meta and value maps are copied, values
// share backing storage (values are immutable).
func (m *Message) Clone() *Message {
	c := &Message{
		meta:  make(map[int]Value, len(m.meta)),
		value: make(map[int]Value, len(m.value)),
	}
	for k, v := range m.meta {
		c.meta[k] = v
	}
	for k, v := range m.value {
		c.value[k] = v
	}
	return c
}

// String renders the message for logs.
func (m *Message) String() string {
	kind := "message"
	switch {
	case m.IsRequest():
		kind = "request"
	case m.IsResponse():
		kind = "response"
	case m.IsSignal():
		kind = "signal"
	}
	id, _ := m.RequestID()
	return fmt.Sprintf("<%s id=%d path=%q method=%q>", kind, id, m.ShvPath(), m.Method())
}
