package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shvgo/shvclient/internal/broadcast"
	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/pkg/rpc"
)

// ErrReceiverClosed is returned by NotificationsReceiver.Next after the
// notification stream has ended.
var ErrReceiverClosed = errors.New("notifications receiver closed")

// subscriptionID is the process-wide subscription id counter. Receivers and
// the loop share the id space, also across multiple clients in one process.
var subscriptionID atomic.Uint64

func nextSubscriptionID() uint64 {
	return subscriptionID.Add(1)
}

// ClientCommand is a message from the application to the client loop.
type ClientCommand interface {
	isClientCommand()
}

type sendMessageCommand struct {
	message *rpc.Message
}

type rpcCallCommand struct {
	request *rpc.Message
	// response is a single-shot sink: capacity 1, written at most once.
	response chan<- *rpc.Frame
}

type subscribeCommand struct {
	path           string
	signal         string
	subscriptionID uint64
	notifications  *chanutil.Unbounded[*rpc.Frame]
}

type unsubscribeCommand struct {
	path           string
	signal         string
	subscriptionID uint64
}

func (sendMessageCommand) isClientCommand() {}
func (rpcCallCommand) isClientCommand()     {}
func (subscribeCommand) isClientCommand()   {}
func (unsubscribeCommand) isClientCommand() {}

// CommandSender enqueues commands into the client loop. It is cheap to copy
// and safe for concurrent use; all copies feed the same loop.
type CommandSender struct {
	commands *chanutil.Unbounded[ClientCommand]
}

// SendMessage enqueues a message for delivery to the broker. While
// disconnected the loop drops the message silently.
func (s CommandSender) SendMessage(message *rpc.Message) error {
	return s.commands.Send(sendMessageCommand{message: message})
}

// DoRPCCall issues a request without a parameter. See DoRPCCallParam.
func (s CommandSender) DoRPCCall(shvPath, method string) (<-chan *rpc.Frame, error) {
	return s.DoRPCCallParam(shvPath, method, rpc.Null())
}

// DoRPCCallParam issues a request with a fresh request id and returns a
// single-shot channel on which the matching response frame arrives. The
// caller owns timeout policy; the channel never yields more than one frame.
// Abandoning the channel cancels interest in the response.
func (s CommandSender) DoRPCCallParam(shvPath, method string, param rpc.Value) (<-chan *rpc.Frame, error) {
	response := make(chan *rpc.Frame, 1)
	err := s.commands.Send(rpcCallCommand{
		request:  rpc.NewRequest(shvPath, method, param),
		response: response,
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// Subscribe registers interest in signals named signal at or under path.
// The returned receiver must be closed to release the subscription.
func (s CommandSender) Subscribe(path, signal string) (*NotificationsReceiver, error) {
	id := nextSubscriptionID()
	notifications := chanutil.NewUnbounded[*rpc.Frame]()
	err := s.commands.Send(subscribeCommand{
		path:           path,
		signal:         signal,
		subscriptionID: id,
		notifications:  notifications,
	})
	if err != nil {
		return nil, err
	}
	return &NotificationsReceiver{
		notifications:  notifications,
		commands:       s,
		path:           path,
		signal:         signal,
		subscriptionID: id,
	}, nil
}

// NotificationsReceiver consumes the signal notifications of one
// subscription. Closing it posts the matching unsubscribe command; the
// receiver holds the command sender as a shared handle and does not keep
// the loop alive.
type NotificationsReceiver struct {
	notifications  *chanutil.Unbounded[*rpc.Frame]
	commands       CommandSender
	path           string
	signal         string
	subscriptionID uint64
	closeOnce      sync.Once
}

// Next returns the next signal frame. It returns ErrReceiverClosed when the
// subscription ended (receiver closed or connection reset) and the buffered
// notifications have been drained.
func (r *NotificationsReceiver) Next(ctx context.Context) (*rpc.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-r.notifications.Out():
		if !ok {
			return nil, ErrReceiverClosed
		}
		return frame, nil
	}
}

// Close releases the subscription. The last receiver of a (path, signal)
// pair triggers a broker unsubscribe. Close is idempotent.
func (r *NotificationsReceiver) Close() {
	r.closeOnce.Do(func() {
		err := r.commands.commands.Send(unsubscribeCommand{
			path:           r.path,
			signal:         r.signal,
			subscriptionID: r.subscriptionID,
		})
		if err != nil {
			logger.Warn("Cannot unsubscribe",
				logger.KeyPath, r.path,
				logger.KeySignal, r.signal,
				logger.KeyError, err)
		}
		r.notifications.Close()
	})
}

// ClientEvent reports connection state changes to the application.
type ClientEvent int

const (
	// Connected is broadcast when a broker connection is established.
	Connected ClientEvent = iota
	// Disconnected is broadcast when the broker connection is lost.
	Disconnected
)

func (e ClientEvent) String() string {
	switch e {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	}
	return "Unknown"
}

// clientEventsCapacity bounds the events broadcast; receivers that fall
// further behind observe a lag notice instead of blocking the loop.
const clientEventsCapacity = 10

// ClientEventsReceiver consumes Connected/Disconnected events.
type ClientEventsReceiver struct {
	events *broadcast.Receiver[ClientEvent]
}

// WaitForEvent returns the next client event. Overflow lag is logged and
// skipped; the stream continues with the oldest retained event.
func (r *ClientEventsReceiver) WaitForEvent(ctx context.Context) (ClientEvent, error) {
	for {
		event, err := r.events.Recv(ctx)
		var lag *broadcast.LagError
		if errors.As(err, &lag) {
			logger.Warn("Client event receiver missed events", logger.KeyCount, lag.Missed)
			continue
		}
		if err != nil {
			return 0, err
		}
		return event, nil
	}
}

// Metrics observes client loop activity. Implementations must not block;
// a nil Metrics disables observation entirely.
type Metrics interface {
	FrameReceived(kind string)
	MessageSent(kind string)
	RPCCall()
	SignalFanout(subscribers int)
	PendingCalls(n int)
	ActiveSubscriptions(n int)
	ConnectionState(connected bool)
}
