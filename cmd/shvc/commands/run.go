package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/internal/telemetry"
	"github.com/shvgo/shvclient/pkg/client"
	"github.com/shvgo/shvclient/pkg/metrics"
	"github.com/shvgo/shvclient/pkg/rpc"

	// Register the Prometheus client metrics constructor.
	_ "github.com/shvgo/shvclient/pkg/metrics/prometheus"
)

// propertyState is the demo device's application state: one settable value
// shared between the property node's handlers.
type propertyState struct {
	mu    sync.Mutex
	value rpc.Value
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a device client serving a demo property node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:        cfg.Telemetry.Enabled,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: Version,
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			SampleRate:     cfg.Telemetry.SampleRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warn("Tracing shutdown failed", logger.KeyError, err)
			}
		}()

		shutdownProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
			Enabled:        cfg.Profiling.Enabled,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: Version,
			Endpoint:       cfg.Profiling.Endpoint,
			ProfileTypes:   cfg.Profiling.ProfileTypes,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownProfiling(); err != nil {
				logger.Warn("Profiling shutdown failed", logger.KeyError, err)
			}
		}()

		c := client.NewDevice[propertyState](
			client.NewDotAppNode("shvc"),
			client.NewDotDeviceNode("shvc-demo", Version, nil),
		)
		c.WithAppData(&propertyState{value: rpc.Null()})
		mountStatusNode(c)

		if cfg.Metrics.Enabled {
			metrics.InitRegistry()
			c.WithMetrics(metrics.NewClientMetrics())
			go func() {
				logger.Info("Serving metrics", "port", cfg.Metrics.Port)
				if err := metrics.ListenAndServe(cfg.Metrics.Port); err != nil {
					logger.Error("Metrics server failed", logger.KeyError, err)
				}
			}()
		}

		logger.Info("Starting SHV client", logger.KeyURL, cfg.URL)
		if err := c.Run(ctx, cfg); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("Client stopped")
		return nil
	},
}

// mountStatusNode publishes a settable property at "status" that emits a
// chng signal on every set.
func mountStatusNode(c *client.Client[propertyState]) {
	const mount = "status"
	handler := func(ctx context.Context, request *rpc.Message, sender client.CommandSender, state *propertyState) {
		response, err := request.PrepareResponse()
		if err != nil {
			logger.Warn("Cannot prepare response", logger.KeyError, err)
			return
		}

		switch request.Method() {
		case client.MethGet:
			state.mu.Lock()
			response.SetResult(state.value)
			state.mu.Unlock()

		case client.MethSet:
			state.mu.Lock()
			state.value = request.Param()
			state.mu.Unlock()
			response.SetResult(rpc.Null())
			if err := sender.SendMessage(rpc.NewSignal(mount, client.SigChng, request.Param())); err != nil {
				logger.Warn("Cannot emit chng signal", logger.KeyError, err)
			}
		}

		if err := sender.SendMessage(response); err != nil {
			logger.Error("Cannot send response", logger.KeyError, err)
		}
	}

	c.MountFixed(mount, client.PropertyMethods,
		[]client.Route[propertyState]{client.NewRoute([]string{client.MethGet, client.MethSet}, handler)})
}
