package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/retry"
)

// Publisher is the part of jetstream.JetStream the NATS proxy needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSOptions configures NATS proxies.
type NATSOptions struct {
	// Subject is the prefix; mutations go to <Subject>.<op>.
	Subject  string
	// Timeout bounds each publish attempt.
	Timeout  time.Duration
	Policy   retry.Policy
	Recorder metrics.Recorder
	// Sequence is shared by all proxies of one build so the controller can
	// order mutations across modules.
	Sequence *atomic.Uint64
}

// NATS publishes every proxy call as a Mutation on a JetStream subject.
type NATS struct {
	pub     Publisher
	buildID string
	name    module.Name
	opts    NATSOptions
	now     func() time.Time
}

// NewNATS returns a proxy publishing through pub.
func NewNATS(pub Publisher, buildID string, name module.Name, opts NATSOptions) *NATS {
	if opts.Subject == "" {
		opts.Subject = "buildbridge.mutations"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Policy.Initial <= 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Sequence == nil {
		opts.Sequence = new(atomic.Uint64)
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	return &NATS{pub: pub, buildID: buildID, name: name, opts: opts, now: time.Now}
}

// NATSFactory returns a Factory producing NATS proxies that share one sequence.
func NATSFactory(pub Publisher, opts NATSOptions) Factory {
	if opts.Sequence == nil {
		opts.Sequence = new(atomic.Uint64)
	}
	return func(buildID string, name module.Name) (BuildProxy, error) {
		return NewNATS(pub, buildID, name, opts), nil
	}
}

func (n *NATS) Start(ctx context.Context) error {
	return n.publish(ctx, Mutation{Op: OpStart})
}

func (n *NATS) SetResult(ctx context.Context, result module.Result) error {
	return n.publish(ctx, Mutation{Op: OpSetResult, Result: result})
}

func (n *NATS) SetExecutedSteps(ctx context.Context, steps []module.ExecutedStep) error {
	return n.publish(ctx, Mutation{Op: OpSetExecutedSteps, Steps: steps})
}

func (n *NATS) End(ctx context.Context) error {
	return n.publish(ctx, Mutation{Op: OpEnd})
}

// Subject returns the subject a mutation with op is published on.
func (n *NATS) Subject(op Op) string {
	return n.opts.Subject + "." + string(op)
}

func (n *NATS) publish(ctx context.Context, m Mutation) error {
	m.ID = uuid.NewString()
	m.BuildID = n.buildID
	m.Module = n.name
	m.Seq = n.opts.Sequence.Add(1)
	m.At = n.now().UTC()
	if err := m.Validate(); err != nil {
		return errors.ValidationError("invalid proxy mutation").WithCause(err).Build()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return errors.InternalError("failed to marshal mutation").WithCause(err).Build()
	}

	subject := n.Subject(m.Op)
	attemptPublish := func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
		defer cancel()
		if _, err := n.pub.Publish(pctx, subject, data, jetstream.WithMsgID(m.ID)); err != nil {
			return errors.TransportError("failed to publish mutation").
				WithCause(err).
				WithContext("subject", subject).
				WithContext("module", n.name.String()).
				Retryable().
				Build()
		}
		return nil
	}
	onRetry := func(attempt int, err error) {
		n.opts.Recorder.IncProxyRetry(string(m.Op))
		slog.Warn("Retrying mutation publish",
			logfields.Subject(subject),
			logfields.Module(n.name.String()),
			slog.Int("attempt", attempt),
			logfields.Error(err))
	}
	if err := n.opts.Policy.Do(ctx, attemptPublish, onRetry); err != nil {
		return err
	}

	slog.Debug("Published mutation",
		logfields.Subject(subject),
		logfields.Module(n.name.String()),
		logfields.BuildID(n.buildID),
		slog.Uint64("seq", m.Seq))
	return nil
}
