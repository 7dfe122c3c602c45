package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

// Options configures the consumer.
type Options struct {
	Stream  string
	Subject string
	Durable string
}

// Controller consumes proxy mutations and hands them to an Applier.
type Controller struct {
	js      jetstream.JetStream
	opts    Options
	applier *Applier
}

// New returns a controller. Defaults: stream BUILDBRIDGE, subject
// buildbridge.mutations, durable buildbridge-controller.
func New(js jetstream.JetStream, applier *Applier, opts Options) *Controller {
	if opts.Stream == "" {
		opts.Stream = "BUILDBRIDGE"
	}
	if opts.Subject == "" {
		opts.Subject = "buildbridge.mutations"
	}
	if opts.Durable == "" {
		opts.Durable = "buildbridge-controller"
	}
	return &Controller{js: js, opts: opts, applier: applier}
}

// Run consumes until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	stream, err := EnsureStream(ctx, c.js, c.opts.Stream, c.opts.Subject)
	if err != nil {
		return err
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       c.opts.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: c.opts.Subject + ".>",
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    10,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", c.opts.Durable, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) { c.handle(ctx, msg) })
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	slog.Info("Controller consuming proxy mutations",
		slog.String("stream", c.opts.Stream),
		logfields.Subject(c.opts.Subject+".>"),
		slog.String("durable", c.opts.Durable))
	<-ctx.Done()
	return nil
}

// Message is the part of jetstream.Msg the controller acknowledges through.
type Message interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
	Term() error
}

// handle applies one message. Messages that can never apply are terminated;
// others are negatively acknowledged for redelivery.
func (c *Controller) handle(ctx context.Context, msg Message) {
	var m proxy.Mutation
	if err := json.Unmarshal(msg.Data(), &m); err != nil {
		slog.Error("Dropping undecodable mutation", logfields.Subject(msg.Subject()), logfields.Error(err))
		_ = msg.Term()
		return
	}
	if err := c.applier.Apply(ctx, m); err != nil {
		if errors.HasCategory(err, errors.CategoryValidation) {
			slog.Error("Dropping invalid mutation", logfields.Subject(msg.Subject()), logfields.Error(err))
			_ = msg.Term()
			return
		}
		slog.Warn("Failed to apply mutation", logfields.Subject(msg.Subject()), logfields.Error(err))
		_ = msg.Nak()
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Warn("Failed to acknowledge mutation", logfields.Subject(msg.Subject()), logfields.Error(err))
	}
}
