package rpc

import "fmt"

// ErrorCode is an SHV RPC error code carried in error responses.
type ErrorCode int

const (
	ErrNoError ErrorCode = iota
	ErrInvalidRequest
	ErrMethodNotFound
	ErrInvalidParam
	ErrInternalError
	ErrParseError
	ErrMethodCallTimeout
	ErrMethodCallCancelled
	ErrMethodCallException
	ErrUnknown
	ErrPermissionDenied
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNoError:
		return "NoError"
	case ErrInvalidRequest:
		return "InvalidRequest"
	case ErrMethodNotFound:
		return "MethodNotFound"
	case ErrInvalidParam:
		return "InvalidParam"
	case ErrInternalError:
		return "InternalError"
	case ErrParseError:
		return "ParseError"
	case ErrMethodCallTimeout:
		return "MethodCallTimeout"
	case ErrMethodCallCancelled:
		return "MethodCallCancelled"
	case ErrMethodCallException:
		return "MethodCallException"
	case ErrPermissionDenied:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// Keys of the error IMap inside an error response.
const (
	errKeyCode    = 1
	errKeyMessage = 2
)

// Error is an RPC-level error surfaced to the peer in an error response.
type Error struct {
	Code    ErrorCode
	Message string
}

// NewError creates an RPC error.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToValue encodes the error as its wire representation.
func (e *Error) ToValue() Value {
	return IMap(map[int]Value{
		errKeyCode:    Int(int64(e.Code)),
		errKeyMessage: String(e.Message),
	})
}

// ErrorFromValue decodes an error from its wire representation.
// It returns nil if v does not hold an error map.
func ErrorFromValue(v Value) *Error {
	im := v.AsIMap()
	if im == nil {
		return nil
	}
	return &Error{
		Code:    ErrorCode(im[errKeyCode].AsInt()),
		Message: im[errKeyMessage].AsString(),
	}
}
