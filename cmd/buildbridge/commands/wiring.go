package commands

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildbridge/internal/asyncwork"
	"git.home.luguber.info/inful/buildbridge/internal/build"
	"git.home.luguber.info/inful/buildbridge/internal/config"
	"git.home.luguber.info/inful/buildbridge/internal/controller"
	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
	"git.home.luguber.info/inful/buildbridge/internal/reporter"
)

// assembly is a build service together with the resources it holds open.
type assembly struct {
	service  *build.DefaultBuildService
	recorder metrics.Recorder
	registry *prom.Registry
	closers  []func() error
}

func (a *assembly) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to release resource", logfields.Error(err))
		}
	}
	a.closers = nil
}

// assemble wires reporters, proxies and the coordinator from cfg.
func assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*assembly, error) {
	a := &assembly{recorder: metrics.NoopRecorder{}}
	if cfg.Metrics.Enabled {
		a.registry = prom.NewRegistry()
		a.recorder = metrics.NewPrometheusRecorder(a.registry)
	}

	names, byName, err := cfg.Registrations()
	if err != nil {
		return nil, err
	}
	chain, err := buildChain(cfg, names, byName, logger, a.recorder)
	if err != nil {
		return nil, err
	}

	factory, store, projection, err := a.transport(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	coordinator := asyncwork.New(asyncwork.Options{
		Heartbeat: cfg.Bridge.HeartbeatDuration(),
		Recorder:  a.recorder,
	})
	a.service = build.NewBuildService(names, chain, factory).
		WithCoordinator(coordinator).
		WithRecorder(a.recorder).
		WithFlags(build.Flags{
			ForceSuccess: cfg.Bridge.ForceSuccess,
			Debug:        cfg.Bridge.Debug,
			Profile:      cfg.Bridge.Profile,
		}).
		WithDrainTimeout(cfg.Bridge.DrainTimeoutDuration()).
		WithOutput(out)
	if store != nil {
		a.service.WithEventStore(store, projection)
	}
	return a, nil
}

// buildChain creates one instance per reporter name, shared by every module
// naming it, and registers them in configuration order.
func buildChain(cfg *config.Config, names []module.Name, byName map[module.Name]config.ModuleConfig, logger *slog.Logger, rec metrics.Recorder) (*reporter.Chain, error) {
	registry := reporter.DefaultRegistry()
	instances := make(map[string]reporter.Reporter)
	regs := make(map[module.Name][]reporter.Reporter, len(names))

	for _, name := range names {
		for _, rname := range byName[name].Reporters {
			r, ok := instances[rname]
			if !ok {
				var err error
				r, err = registry.Build(rname, reporter.Options{OutputDir: cfg.Reporters.OutputDir, Logger: logger})
				if err != nil {
					return nil, err
				}
				instances[rname] = r
			}
			regs[name] = append(regs[name], r)
		}
	}
	return reporter.NewChain(regs, rec), nil
}

func (a *assembly) transport(ctx context.Context, cfg *config.Config) (proxy.Factory, eventstore.Store, *eventstore.ModuleStateProjection, error) {
	switch cfg.Transport.Mode {
	case config.TransportLocal:
		return func(_ string, name module.Name) (proxy.BuildProxy, error) {
			return proxy.NewLocal(name), nil
		}, nil, nil, nil

	case config.TransportNATS:
		client, err := controller.Connect(cfg.Transport.NATS.URL, "buildbridge")
		if err != nil {
			return nil, nil, nil, errors.WrapError(err, errors.CategoryTransport, "failed to connect to NATS").
				WithContext("url", cfg.Transport.NATS.URL).
				Build()
		}
		a.closers = append(a.closers, client.Close)
		if _, err := controller.EnsureStream(ctx, client.JetStream(), cfg.Transport.NATS.Stream, cfg.Transport.NATS.Subject); err != nil {
			return nil, nil, nil, errors.WrapError(err, errors.CategoryTransport, "failed to ensure mutation stream").Build()
		}
		return proxy.NATSFactory(client.JetStream(), proxy.NATSOptions{
			Subject:  cfg.Transport.NATS.Subject,
			Timeout:  cfg.Transport.NATS.PublishTimeoutDuration(),
			Policy:   cfg.Transport.Retry.Policy(),
			Recorder: a.recorder,
		}), nil, nil, nil

	default:
		store, err := openStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		projection := eventstore.NewModuleStateProjection(store, 0)
		return proxy.StoreFactory(store, projection), store, projection, nil
	}
}

func openStore(path string) (*eventstore.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryEventStore, "failed to create event store directory").
				WithContext("path", path).
				Build()
		}
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, "failed to open event store").
			WithContext("path", path).
			Build()
	}
	return store, nil
}

// listenMetrics binds the metrics address so a taken port fails before any
// work starts.
func listenMetrics(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to bind metrics listener").
			WithContext("addr", addr).
			Build()
	}
	return ln, nil
}

// serveMetrics exposes reg on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, reg *prom.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapError(err, errors.CategoryRuntime, "metrics server failed").Build()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
