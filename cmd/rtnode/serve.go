package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/config"
	"github.com/blockberries/rtcore/example/tester"
	rtgrpc "github.com/blockberries/rtcore/grpc"
	"github.com/blockberries/rtcore/server"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/storage/badger"
	"github.com/blockberries/rtcore/storage/memory"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tester runtime over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			app := fx.New(nodeOptions(cfg))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	f.String(config.FlagName("log.level"), d.Log.Level, "log level")
	f.String(config.FlagName("log.format"), d.Log.Format, "console or json")
	f.String(config.FlagName("log.file"), d.Log.File, "rotated log file")
	f.String(config.FlagName("grpc.address"), d.GRPC.Address, "gRPC listen address")
	f.Bool(config.FlagName("metrics.enabled"), d.Metrics.Enabled, "serve /metrics")
	f.String(config.FlagName("metrics.address"), d.Metrics.Address, "metrics listen address")
	f.String(config.FlagName("storage.backend"), d.Storage.Backend, "memory or badger")
	f.String(config.FlagName("storage.path"), d.Storage.Path, "badger directory")
	f.String(config.FlagName("chain_spec"), d.ChainSpec, "genesis YAML; empty uses the dev chain")
	return cmd
}

// nodeOptions wires the node. Split out so tests can build the graph
// without running it.
func nodeOptions(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newRegistry,
			newBackend,
			newRuntime,
			newServer,
			newGRPCServer,
		),
		fx.Invoke(startGRPC, startMetrics),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

func newLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() { _ = log.Sync() }))
	return log, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newBackend(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		s, err := badger.Open(badger.Options{Path: cfg.Storage.Path, Retain: cfg.Storage.Retain, Logger: log.Named("badger")})
		if err != nil {
			return nil, err
		}
		backend = s
	default:
		backend = memory.NewRetaining(cfg.Storage.Retain)
	}
	lc.Append(fx.StopHook(backend.Close))
	return backend, nil
}

func newRuntime(cfg config.Config, log *zap.Logger) (rtcore.Runtime, error) {
	g := tester.DevGenesis()
	if cfg.ChainSpec != "" {
		var err error
		if g, err = tester.LoadGenesis(cfg.ChainSpec); err != nil {
			return nil, err
		}
	}
	rt, err := tester.New(tester.DefaultParams(), g, tester.Options{Logger: log.Named("runtime")})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func newServer(lc fx.Lifecycle, rt rtcore.Runtime, backend storage.Backend, log *zap.Logger, reg *prometheus.Registry) (*server.Server, error) {
	srv, err := server.New(rt, backend, server.Config{Logger: log.Named("server"), Registerer: reg})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := srv.Init(ctx)
			return err
		},
		OnStop: func(context.Context) error { return srv.Close() },
	})
	return srv, nil
}

func newGRPCServer(srv *server.Server, log *zap.Logger, reg *prometheus.Registry) *grpc.Server {
	return rtgrpc.NewGRPCServer(srv, rtgrpc.ServerConfig{Logger: log, Registerer: reg}).NewServer()
}

func startGRPC(lc fx.Lifecycle, cfg config.Config, gs *grpc.Server, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			lis, err := net.Listen("tcp", cfg.GRPC.Address)
			if err != nil {
				return err
			}
			log.Info("serving gRPC", zap.Stringer("addr", lis.Addr()))
			go func() {
				if err := gs.Serve(lis); err != nil {
					log.Error("gRPC server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			gs.GracefulStop()
			return nil
		},
	})
}

func startMetrics(lc fx.Lifecycle, cfg config.Config, reg *prometheus.Registry, log *zap.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			lis, err := net.Listen("tcp", hs.Addr)
			if err != nil {
				return err
			}
			log.Info("serving metrics", zap.Stringer("addr", lis.Addr()))
			go func() {
				if err := hs.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: hs.Shutdown,
	})
}
