// Package client implements the SHV RPC client runtime: a single event loop
// multiplexing one broker link between application calls, subscriptions,
// and a tree of locally mounted nodes serving inbound requests.
package client

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/shvgo/shvclient/internal/broadcast"
	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/internal/telemetry"
	"github.com/shvgo/shvclient/internal/transport"
	"github.com/shvgo/shvclient/pkg/config"
	"github.com/shvgo/shvclient/pkg/rpc"
)

// BrokerAppNode is the broker path serving subscription management.
const BrokerAppNode = ".broker/app"

const (
	methSubscribe   = "subscribe"
	methUnsubscribe = "unsubscribe"
)

// Client is an SHV RPC client with a static mount tree and optional shared
// application data of type T. The mount tree must be complete before Run;
// it is never mutated afterwards.
type Client[T any] struct {
	mounts  map[string]*ClientNode[T]
	appData *T
	metrics Metrics
}

// New creates a client with the mandatory `.app` mount.
func New[T any](appNode DotAppNode) *Client[T] {
	c := &Client[T]{mounts: make(map[string]*ClientNode[T])}
	methods, values := appNode.node()
	c.Mount(".app", ConstantNode[T](methods, values))
	return c
}

// NewDevice creates a device-flavored client with `.app` and `.device`
// mounts.
func NewDevice[T any](appNode DotAppNode, deviceNode DotDeviceNode) *Client[T] {
	c := New[T](appNode)
	methods, values := deviceNode.node()
	c.Mount(".device", ConstantNode[T](methods, values))
	return c
}

// Mount publishes a node at the given absolute path.
func (c *Client[T]) Mount(path string, node *ClientNode[T]) *Client[T] {
	c.mounts[path] = node
	return c
}

// MountFixed publishes a fixed node: an enumerated method list plus routes.
func (c *Client[T]) MountFixed(path string, methods []*rpc.MetaMethod, routes []Route[T]) *Client[T] {
	return c.Mount(path, FixedNode(methods, routes))
}

// MountDynamic publishes a dynamic node resolved per request.
func (c *Client[T]) MountDynamic(path string, getter MethodsGetter[T], handler RequestHandler[T]) *Client[T] {
	return c.Mount(path, DynamicNode(getter, handler))
}

// WithAppData attaches shared read-only application state, passed to every
// dispatched handler.
func (c *Client[T]) WithAppData(data *T) *Client[T] {
	c.appData = data
	return c
}

// WithMetrics attaches a metrics sink. A nil sink disables observation.
func (c *Client[T]) WithMetrics(m Metrics) *Client[T] {
	c.metrics = m
	return c
}

// Run connects to the broker from cfg and serves until ctx is cancelled.
func (c *Client[T]) Run(ctx context.Context, cfg *config.ClientConfig) error {
	return c.RunWithInit(ctx, cfg, nil)
}

// RunWithInit is Run with an init callback receiving the command sender and
// an events receiver before the loop starts, typically to spawn application
// tasks that drive the client.
func (c *Client[T]) RunWithInit(ctx context.Context, cfg *config.ClientConfig, init func(CommandSender, *ClientEventsReceiver)) error {
	connEvents := chanutil.NewUnbounded[transport.ConnectionEvent]()
	transport.Spawn(ctx, cfg, connEvents)
	return c.clientLoop(ctx, connEvents.Out(), init)
}

// clientLoop is the multiplexer: it owns the pending-call table, the
// subscription registry, and the connection command sink, and dispatches
// every inbound event and outbound command. All state mutation happens on
// this goroutine; handlers run in their own goroutines and communicate
// back through the command queue.
func (c *Client[T]) clientLoop(
	ctx context.Context,
	connEvents <-chan transport.ConnectionEvent,
	init func(CommandSender, *ClientEventsReceiver),
) error {
	pendingCalls := make(map[int64]chan<- *rpc.Frame)
	subs := newSubscriptions()

	commands := chanutil.NewUnbounded[ClientCommand]()
	defer commands.Close()
	sender := CommandSender{commands: commands}

	events := broadcast.New[ClientEvent](clientEventsCapacity)
	defer events.Close()

	var connCommands *transport.CommandSink

	if init != nil {
		init(sender, &ClientEventsReceiver{events: events.Subscribe()})
	}

	forward := func(message *rpc.Message) {
		if connCommands == nil {
			// Disconnected: drop silently, callers see no response.
			return
		}
		if err := connCommands.Send(transport.ConnectionCommand{Message: message}); err != nil {
			logger.Error("Cannot send message through connection command channel", logger.KeyError, err)
			return
		}
		c.observeMessageSent(message)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case command := <-commands.Out():
			switch cmd := command.(type) {
			case sendMessageCommand:
				forward(cmd.message)

			case rpcCallCommand:
				id, ok := cmd.request.RequestID()
				if !ok {
					panic("BUG: request of an RPC call must have a request id")
				}
				if _, exists := pendingCalls[id]; exists {
					logger.Error("Request id of an RPC call already registered", logger.KeyRequestID, id)
					break
				}
				pendingCalls[id] = cmd.response
				if c.metrics != nil {
					c.metrics.RPCCall()
					c.metrics.PendingCalls(len(pendingCalls))
				}
				forward(cmd.request)

			case subscribeCommand:
				if subs.add(cmd.path, cmd.signal, cmd.subscriptionID, cmd.notifications) {
					forward(subscriptionRequest(methSubscribe, cmd.path))
				} else {
					logger.Debug("Joining existing subscription",
						logger.KeyPath, cmd.path, logger.KeySignal, cmd.signal)
				}
				if c.metrics != nil {
					c.metrics.ActiveSubscriptions(subs.size())
				}

			case unsubscribeCommand:
				if subs.remove(cmd.path, cmd.signal, cmd.subscriptionID) {
					forward(subscriptionRequest(methUnsubscribe, cmd.path))
				}
				if c.metrics != nil {
					c.metrics.ActiveSubscriptions(subs.size())
				}
			}

		case event, ok := <-connEvents:
			if !ok {
				logger.Warn("Connection task terminated, exiting")
				return nil
			}
			switch ev := event.(type) {
			case transport.Connected:
				connCommands = ev.Commands
				c.observeConnection(true)
				if err := events.Send(Connected); err != nil {
					logger.Error("Client event broadcast error",
						logger.KeyEvent, Connected, logger.KeyError, err)
				}

			case transport.Disconnected:
				connCommands = nil
				// The broker notices the disconnect through its heartbeat
				// and drops this client's subscriptions; mirror that here.
				subs.clear()
				pendingCalls = make(map[int64]chan<- *rpc.Frame)
				c.observeConnection(false)
				if c.metrics != nil {
					c.metrics.PendingCalls(0)
					c.metrics.ActiveSubscriptions(0)
				}
				if err := events.Send(Disconnected); err != nil {
					logger.Error("Client event broadcast error",
						logger.KeyEvent, Disconnected, logger.KeyError, err)
				}

			case transport.FrameReceived:
				c.processRPCFrame(ctx, ev.Frame, sender, pendingCalls, subs)
			}
		}
	}
}

// processRPCFrame routes one inbound frame: requests descend the mount
// tree, responses resolve pending calls, signals fan out to subscribers.
func (c *Client[T]) processRPCFrame(
	ctx context.Context,
	frame *rpc.Frame,
	sender CommandSender,
	pendingCalls map[int64]chan<- *rpc.Frame,
	subs *subscriptions,
) {
	switch {
	case frame.IsRequest():
		c.observeFrame("request")
		c.processRequestFrame(ctx, frame, sender)

	case frame.IsResponse():
		c.observeFrame("response")
		id, ok := frame.RequestID()
		if !ok {
			return
		}
		response, registered := pendingCalls[id]
		if !registered {
			// Unknown id: a cancelled caller or a retry race. Drop.
			return
		}
		delete(pendingCalls, id)
		if c.metrics != nil {
			c.metrics.PendingCalls(len(pendingCalls))
		}
		// The sink is single-shot with capacity 1; this send cannot block.
		response <- frame

	case frame.IsSignal():
		c.observeFrame("signal")
		reached := subs.dispatch(frame)
		if c.metrics != nil {
			c.metrics.SignalFanout(reached)
		}
	}
}

// processRequestFrame answers dir/ls gaps locally, otherwise resolves the
// longest mount prefix and spawns the node dispatch.
func (c *Client[T]) processRequestFrame(ctx context.Context, frame *rpc.Frame, sender CommandSender) {
	message, err := frame.ToMessage()
	if err != nil {
		logger.Warn("Invalid shv request", logger.KeyError, err)
		return
	}
	response, err := message.PrepareResponse()
	if err != nil {
		logger.Warn("Invalid request frame received", logger.KeyError, err)
		return
	}

	shvPath := frame.ShvPath()

	if local := processLocalDirLs(c.mounts, frame, message.Param()); local != nil {
		if local.err != nil {
			response.SetError(local.err)
		} else {
			response.SetResult(local.result)
		}
		if err := sender.SendMessage(response); err != nil {
			logger.Error("Cannot send response", logger.KeyError, err)
		}
		return
	}

	mount, rest, found := findLongestPrefix(c.mounts, shvPath)
	if !found {
		response.SetError(rpc.NewError(rpc.ErrMethodNotFound,
			"Invalid shv path %s:%s()", shvPath, frame.Method()))
		if err := sender.SendMessage(response); err != nil {
			logger.Error("Cannot send response", logger.KeyError, err)
		}
		return
	}

	node := c.mounts[mount]
	message.SetShvPath(rest)
	requestID, _ := message.RequestID()

	// The handler must not hold the loop; it owns sending the response.
	go func() {
		spanCtx, span := telemetry.StartSpan(ctx, telemetry.SpanRPCRequest,
			trace.WithAttributes(
				telemetry.ShvPath(shvPath),
				telemetry.Method(message.Method()),
				telemetry.Mount(mount),
				telemetry.RequestID(requestID),
			))
		defer span.End()
		node.processRequest(spanCtx, message, mount, sender, c.appData)
	}()
}

// subscriptionRequest builds the broker-directed subscribe or unsubscribe
// request. The "methods" field is the empty string on purpose: it means
// "all signals at or under this path" and must be emitted literally to
// stay wire-compatible.
func subscriptionRequest(method, path string) *rpc.Message {
	return rpc.NewRequest(BrokerAppNode, method, rpc.Map(map[string]rpc.Value{
		"methods": rpc.String(""),
		"path":    rpc.String(path),
	}))
}

func (c *Client[T]) observeFrame(kind string) {
	if c.metrics != nil {
		c.metrics.FrameReceived(kind)
	}
}

func (c *Client[T]) observeMessageSent(message *rpc.Message) {
	if c.metrics == nil {
		return
	}
	kind := "message"
	switch {
	case message.IsRequest():
		kind = "request"
	case message.IsResponse():
		kind = "response"
	case message.IsSignal():
		kind = "signal"
	}
	c.metrics.MessageSent(kind)
}

func (c *Client[T]) observeConnection(connected bool) {
	if c.metrics != nil {
		c.metrics.ConnectionState(connected)
	}
}
