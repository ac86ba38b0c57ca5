package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/pkg/client"
	"github.com/shvgo/shvclient/pkg/config"
	"github.com/shvgo/shvclient/pkg/rpc"
)

const callTimeout = 10 * time.Second

// loadConfig loads the configuration, initializes logging, and prompts for
// a password when the config omits one.
func loadConfig() (*config.ClientConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, err
	}

	if cfg.Password == "" {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err := prompt.Run()
		if err != nil {
			return nil, fmt.Errorf("password prompt: %w", err)
		}
		cfg.Password = password
	}
	return cfg, nil
}

// runOneShot connects to the broker and runs fn once connected, then tears
// the client down.
func runOneShot(cfg *config.ClientConfig, fn func(ctx context.Context, sender client.CommandSender) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan error, 1)
	init := func(sender client.CommandSender, events *client.ClientEventsReceiver) {
		go func() {
			defer cancel()
			waitCtx, waitCancel := context.WithTimeout(ctx, callTimeout)
			defer waitCancel()
			event, err := events.WaitForEvent(waitCtx)
			if err != nil {
				result <- fmt.Errorf("waiting for broker connection: %w", err)
				return
			}
			if event != client.Connected {
				result <- fmt.Errorf("unexpected client event %s", event)
				return
			}
			result <- fn(ctx, sender)
		}()
	}

	c := client.New[struct{}](client.NewDotAppNode("shvc"))
	if err := c.RunWithInit(ctx, cfg, init); err != nil && ctx.Err() == nil {
		return err
	}
	return <-result
}

// callMethod performs one RPC call and returns the decoded response.
func callMethod(ctx context.Context, sender client.CommandSender, path, method string, param rpc.Value) (*rpc.Message, error) {
	responses, err := sender.DoRPCCallParam(path, method, param)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	select {
	case <-callCtx.Done():
		return nil, fmt.Errorf("call %s:%s(): %w", path, method, callCtx.Err())
	case frame := <-responses:
		message, err := frame.ToMessage()
		if err != nil {
			return nil, err
		}
		if rpcErr := message.Err(); rpcErr != nil {
			return nil, fmt.Errorf("call %s:%s(): %w", path, method, rpcErr)
		}
		return message, nil
	}
}

// parseParam interprets a CLI argument as an RPC value literal: null, bool,
// int, double, or a plain string.
func parseParam(arg string) rpc.Value {
	switch arg {
	case "null":
		return rpc.Null()
	case "true":
		return rpc.Bool(true)
	case "false":
		return rpc.Bool(false)
	}
	if i, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return rpc.Int(i)
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return rpc.Double(f)
	}
	return rpc.String(arg)
}
