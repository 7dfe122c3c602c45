package commands

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/buildbridge/internal/controller"
	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
)

// ControllerCmd implements the 'controller' command.
type ControllerCmd struct {
	KVBucket string `name:"kv-bucket" help:"Mirror module state into this key-value bucket; overrides transport.nats.kv_bucket"`
	NoMirror bool   `name:"no-mirror" help:"Do not mirror module state into a key-value bucket"`
}

func (c *ControllerCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewModuleStateProjection(store, 0)
	if err := projection.Rebuild(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryEventStore, "failed to rebuild module state").Build()
	}

	nats := cfg.Transport.NATS
	client, err := controller.Connect(nats.URL, "buildbridge-controller")
	if err != nil {
		return errors.WrapError(err, errors.CategoryTransport, "failed to connect to NATS").
			WithContext("url", nats.URL).
			Build()
	}
	defer func() { _ = client.Close() }()
	js := client.JetStream()

	var mirror *controller.Mirror
	if !c.NoMirror {
		bucket := nats.KVBucket
		if c.KVBucket != "" {
			bucket = c.KVBucket
		}
		kv, err := controller.EnsureBucket(ctx, js, bucket)
		if err != nil {
			return errors.WrapError(err, errors.CategoryTransport, "failed to ensure state bucket").
				WithContext("bucket", bucket).
				Build()
		}
		mirror = controller.NewMirror(kv)
	}

	ctrl := controller.New(js, controller.NewApplier(store, projection, mirror), controller.Options{
		Stream:  nats.Stream,
		Subject: nats.Subject,
		Durable: nats.Durable,
	})

	var ln net.Listener
	if cfg.Metrics.Enabled {
		if ln, err = listenMetrics(cfg.Metrics.Listen); err != nil {
			return err
		}
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return ctrl.Run(gctx) })
	if ln != nil {
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		grp.Go(func() error { return serveMetrics(gctx, ln, reg) })
	}

	slog.Info("Controller running", slog.String("stream", nats.Stream), slog.String("subject", nats.Subject))
	return grp.Wait()
}
