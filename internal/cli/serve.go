package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	respserver "github.com/raniellyferreira/resp-server"
	"github.com/raniellyferreira/resp-server/config"
	"github.com/raniellyferreira/resp-server/internal/shutdown"
	"github.com/raniellyferreira/resp-server/metrics"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(fs afero.Fs) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the RESP2 server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"RESP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   6379,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text, json",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address",
			},
			&cli.StringFlag{
				Name:  "script",
				Usage: "Lua script defining handle(cmd, args)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.NewLoader(
				config.WithFs(fs),
				config.WithConfigFile(c.String("config")),
				config.WithOverrides(flagOverrides(c)),
			).Load()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return serve(c.Context, fs, cfg)
		},
	}
}

// flagOverrides maps the flags that were set on the command line to config
// keys
func flagOverrides(c *cli.Context) map[string]any {
	overrides := map[string]any{}
	if c.IsSet("host") || c.IsSet("port") {
		overrides["server.addr"] = net.JoinHostPort(c.String("host"), strconv.Itoa(c.Int("port")))
	}
	for flag, key := range map[string]string{
		"log-level":    "log.level",
		"log-format":   "log.format",
		"metrics-addr": "metrics.addr",
		"script":       "script.path",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	return overrides
}

// instanceOptions translates a loaded configuration into instance options
func instanceOptions(fs afero.Fs, cfg *config.Config, logger respserver.Logger) []respserver.Option {
	opts := []respserver.Option{
		respserver.WithAddr(cfg.Server.Addr),
		respserver.WithReadTimeout(cfg.Server.ReadTimeout),
		respserver.WithWriteTimeout(cfg.Server.WriteTimeout),
		respserver.WithIdleTimeout(cfg.Server.IdleTimeout),
		respserver.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		respserver.WithLimits(cfg.ProtocolLimits()),
		respserver.WithLogger(logger),
	}
	if cfg.Script.Path != "" {
		opts = append(opts, respserver.WithScriptFile(fs, cfg.Script.Path))
	}
	return opts
}

func serve(ctx context.Context, fs afero.Fs, cfg *config.Config) error {
	logger := respserver.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	opts := instanceOptions(fs, cfg, logger)

	handler := shutdown.NewHandler(shutdownTimeout)

	if cfg.Metrics.Addr != "" {
		collector := metrics.New()
		opts = append(opts, respserver.WithMetrics(collector))

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ln, err := net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			return cli.Exit("metrics listener: "+err.Error(), 1)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", respserver.Field{Key: "error", Value: err})
			}
		}()
		logger.Info("Serving metrics", respserver.Field{Key: "addr", Value: ln.Addr().String()})
		handler.OnShutdown(srv.Shutdown)
	}

	inst, err := respserver.New(opts...)
	if err != nil {
		_ = handler.Shutdown()
		return cli.Exit(err.Error(), 1)
	}
	if err := inst.Start(ctx); err != nil {
		_ = handler.Shutdown()
		return cli.Exit(err.Error(), 1)
	}
	handler.OnShutdown(func(context.Context) error {
		return inst.Close()
	})

	err = handler.Wait(ctx)
	logger.Info("Shutdown complete")
	return err
}
