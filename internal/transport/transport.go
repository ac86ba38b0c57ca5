// Package transport owns the network side of the SHV client: it dials the
// broker, performs the login handshake, and pumps frames between the wire
// and the client loop.
//
// The client loop sees the transport only as a stream of ConnectionEvents
// and, while connected, a sink of ConnectionCommands. Both directions are
// FIFO. The command sink is closed whenever the connection drops.
package transport

import (
	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/pkg/rpc"
)

// ConnectionCommand instructs the transport to serialize and send a message.
// It is the only command the transport accepts.
type ConnectionCommand struct {
	Message *rpc.Message
}

// CommandSink is the sending side of a live connection.
type CommandSink = chanutil.Unbounded[ConnectionCommand]

// ConnectionEvent is delivered by the transport to the client loop.
type ConnectionEvent interface {
	isConnectionEvent()
}

// Connected is emitted exactly once per successful connection attempt.
// Commands stays valid until the next Disconnected.
type Connected struct {
	Commands *CommandSink
}

// Disconnected is emitted at most once per prior Connected, and also on
// graceful shutdown.
type Disconnected struct{}

// FrameReceived carries one decoded frame from the broker.
type FrameReceived struct {
	Frame *rpc.Frame
}

func (Connected) isConnectionEvent()     {}
func (Disconnected) isConnectionEvent()  {}
func (FrameReceived) isConnectionEvent() {}
