package transport

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/pkg/config"
	"github.com/shvgo/shvclient/pkg/rpc"
)

const dialTimeout = 10 * time.Second

// Spawn starts the connection task. It dials the broker, performs the login
// handshake, and keeps reconnecting with the configured interval until ctx
// is cancelled, at which point the event stream is closed.
func Spawn(ctx context.Context, cfg *config.ClientConfig, events *chanutil.Unbounded[ConnectionEvent]) {
	go connectionTask(ctx, cfg, events)
}

func connectionTask(ctx context.Context, cfg *config.ClientConfig, events *chanutil.Unbounded[ConnectionEvent]) {
	defer events.Close()

	addr, user, password, err := parseURL(cfg)
	if err != nil {
		logger.Error("Invalid broker URL", logger.KeyURL, cfg.URL, logger.KeyError, err)
		return
	}

	for {
		connID := uuid.NewString()[:8]
		log := logger.With(logger.KeyConnID, connID, logger.KeyBroker, addr)

		if err := runConnection(ctx, cfg, addr, user, password, events, log); err != nil {
			log.Warn("Connection failed", logger.KeyError, err)
		}
		if ctx.Err() != nil {
			return
		}

		log.Info("Reconnecting", "interval", cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.ReconnectInterval):
		}
	}
}

// runConnection performs one connection attempt: dial, handshake, pump
// frames until the connection drops or ctx is cancelled.
func runConnection(
	ctx context.Context,
	cfg *config.ClientConfig,
	addr, user, password string,
	events *chanutil.Unbounded[ConnectionEvent],
	log *slog.Logger,
) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := login(conn, cfg, user, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info("Connected to broker", logger.KeyUser, user)

	commands := chanutil.NewUnbounded[ConnectionCommand]()
	if err := events.Send(Connected{Commands: commands}); err != nil {
		commands.Close()
		return nil // loop is gone, shut down quietly
	}

	// Writer: drains the command sink and emits heartbeat pings.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		heartbeat := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case cmd, ok := <-commands.Out():
				if !ok {
					return
				}
				if err := sendMessage(conn, cmd.Message); err != nil {
					log.Warn("Send failed", logger.KeyError, err)
					return
				}
			case <-heartbeat.C:
				ping := rpc.NewRequest(".app", "ping", rpc.Null())
				if err := sendMessage(conn, ping); err != nil {
					log.Warn("Heartbeat send failed", logger.KeyError, err)
					return
				}
			}
		}
	}()

	// Close the socket when ctx ends so the blocking read below returns.
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		<-readCtx.Done()
		conn.Close()
	}()

	// Reader: the current goroutine pumps inbound frames to the loop.
	var readErr error
	for {
		body, err := readFrame(conn)
		if err != nil {
			readErr = err
			break
		}
		frame, err := rpc.DecodeFrame(body)
		if err != nil {
			log.Warn("Dropping undecodable frame", logger.KeyError, err)
			continue
		}
		if events.Send(FrameReceived{Frame: frame}) != nil {
			break
		}
	}

	commands.Close()
	<-writerDone
	_ = events.Send(Disconnected{})

	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("connection lost: %w", readErr)
}

// parseURL splits the broker URL into dial address and credentials.
// Credentials embedded in the URL take precedence over config fields.
func parseURL(cfg *config.ClientConfig) (addr, user, password string, err error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme != "tcp" {
		return "", "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("missing host in URL %q", cfg.URL)
	}

	user = cfg.User
	password = cfg.Password
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			user = name
		}
		if pass, ok := u.User.Password(); ok {
			password = pass
		}
	}
	return u.Host, user, password, nil
}

// login performs the SHV handshake on a fresh connection: `hello` to obtain
// the nonce, then `login` with a SHA-1 digest of nonce+password.
func login(conn net.Conn, cfg *config.ClientConfig, user, password string) error {
	hello := rpc.NewRequest("", "hello", rpc.Null())
	helloResp, err := call(conn, hello)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	loginType := "PLAIN"
	result, _ := helloResp.Result()
	if nonce := result.AsMap()["nonce"].AsString(); nonce != "" {
		sum := sha1.Sum([]byte(nonce + password))
		password = hex.EncodeToString(sum[:])
		loginType = "SHA1"
	}

	options := map[string]rpc.Value{
		"idleWatchDog": rpc.Map(map[string]rpc.Value{
			"timeout": rpc.Int(int64(3 * cfg.HeartbeatInterval / time.Second)),
		}),
	}
	device := map[string]rpc.Value{}
	if cfg.DeviceID != "" {
		device["deviceId"] = rpc.String(cfg.DeviceID)
	}
	if cfg.MountPoint != "" {
		device["mountPoint"] = rpc.String(cfg.MountPoint)
	}
	if len(device) > 0 {
		options["device"] = rpc.Map(device)
	}

	loginParam := rpc.Map(map[string]rpc.Value{
		"login": rpc.Map(map[string]rpc.Value{
			"user":     rpc.String(user),
			"password": rpc.String(password),
			"type":     rpc.String(loginType),
		}),
		"options": rpc.Map(options),
	})

	loginResp, err := call(conn, rpc.NewRequest("", "login", loginParam))
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if rpcErr := loginResp.Err(); rpcErr != nil {
		return fmt.Errorf("broker refused login: %w", rpcErr)
	}
	return nil
}

// call sends one request and reads frames until its response arrives.
// Used only during the handshake, before the pumps start.
func call(conn net.Conn, request *rpc.Message) (*rpc.Message, error) {
	if err := sendMessage(conn, request); err != nil {
		return nil, err
	}
	wantID, _ := request.RequestID()

	deadline := time.Now().Add(dialTimeout)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		body, err := readFrame(conn)
		if err != nil {
			return nil, err
		}
		frame, err := rpc.DecodeFrame(body)
		if err != nil {
			return nil, err
		}
		if id, ok := frame.RequestID(); !ok || id != wantID || !frame.IsResponse() {
			continue
		}
		return frame.ToMessage()
	}
}

func sendMessage(conn net.Conn, msg *rpc.Message) error {
	frame, err := msg.ToFrame()
	if err != nil {
		return err
	}
	body, err := frame.Encode()
	if err != nil {
		return err
	}
	return writeFrame(conn, body)
}
