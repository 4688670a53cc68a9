package pubsub

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/natsclient"
)

// statusCheckInterval is how often Listen checks for a closed connection.
const statusCheckInterval = time.Second

// NetworkedPubSub publishes and subscribes on NATS core subjects named
// "{bucket}:{channel}". It does not own the client.
type NetworkedPubSub struct {
	client   *natsclient.Client
	opts     options
	channels channels
	d        *dispatcher

	mu   sync.Mutex
	subs map[string]*nats.Subscription
	msgs chan *nats.Msg

	stopped  chan struct{}
	stopOnce sync.Once
}

var _ PubSub = (*NetworkedPubSub)(nil)

// NewNetworked creates a NetworkedPubSub over client.
func NewNetworked(client *natsclient.Client, opts ...Option) (*NetworkedPubSub, error) {
	if client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil client"), "NetworkedPubSub", "New", "validate client")
	}

	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	o.logger = o.logger.With("component", "pubsub", "backend", "networked", "bucket", o.bucket)

	return &NetworkedPubSub{
		client:   client,
		opts:     o,
		channels: channels{bucket: o.bucket},
		d:        newDispatcher("networked", o.logger, o.metrics),
		subs:     make(map[string]*nats.Subscription),
		msgs:     make(chan *nats.Msg, o.bufferSize),
		stopped:  make(chan struct{}),
	}, nil
}

// Subscribe implements PubSub. The first callback of a channel subscribes to
// its subject on the server.
func (p *NetworkedPubSub) Subscribe(_ context.Context, channel string, cb Callback) error {
	if err := validateSubject("NetworkedPubSub", channel); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subs[channel]; !ok {
		subject := p.channels.full(channel)
		sub, err := p.client.ChanSubscribe(subject, p.msgs)
		if err != nil {
			return err
		}
		p.subs[channel] = sub
		p.opts.logger.Debug("subscribed", "subject", subject)
	}
	p.d.add(channel, cb)
	return nil
}

// Publish implements PubSub.
func (p *NetworkedPubSub) Publish(ctx context.Context, channel string, v any) error {
	if err := validateSubject("NetworkedPubSub", channel); err != nil {
		return err
	}
	data, err := p.opts.codec.Encode(v)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channels.full(channel), data); err != nil {
		return err
	}
	p.opts.metrics.RecordPublished("networked")
	return nil
}

// Listen implements PubSub. Messages with a Status header are server
// control messages and are not dispatched.
func (p *NetworkedPubSub) Listen(ctx context.Context) error {
	ticker := time.NewTicker(statusCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopped:
			return nil
		case <-ticker.C:
			if p.client.Status() == natsclient.StatusClosed {
				return errors.WrapTransient(errors.ErrConnectionLost, "NetworkedPubSub", "Listen", "read messages")
			}
		case msg := <-p.msgs:
			if isControlMessage(msg) {
				p.opts.logger.Debug("skipping control message", "subject", msg.Subject)
				continue
			}
			channel, ok := p.channels.strip(msg.Subject)
			if !ok {
				continue
			}
			p.d.dispatch(ctx, NewMessage(channel, msg.Data, p.opts.codec))
		}
	}
}

func isControlMessage(msg *nats.Msg) bool {
	return msg.Header != nil && msg.Header.Get("Status") != ""
}

// Running implements PubSub with a PING on a separate connection.
func (p *NetworkedPubSub) Running(ctx context.Context) bool {
	err := natsclient.Probe(ctx, p.client.URL(), p.opts.probeTimeout)
	if err != nil {
		p.opts.logger.Debug("probe failed", "error", err)
	}
	return err == nil
}

// Init implements PubSub. It checks the server port and connects the
// client if needed; it never starts a server.
func (p *NetworkedPubSub) Init(ctx context.Context) error {
	u, err := url.Parse(p.client.URL())
	if err != nil {
		return errors.WrapInvalid(err, "NetworkedPubSub", "Init", "parse url")
	}
	if err := natsclient.Reachable(ctx, u.Host, p.opts.probeTimeout); err != nil {
		return err
	}
	if p.client.Status() == natsclient.StatusConnected {
		return nil
	}
	return p.client.Connect(ctx)
}

// Stop implements PubSub. It drops this instance's subscriptions and ends
// Listen; the client stays open for its owner.
func (p *NetworkedPubSub) Stop(_ context.Context) error {
	var errs []error
	p.stopOnce.Do(func() {
		close(p.stopped)

		p.mu.Lock()
		defer p.mu.Unlock()
		for channel, sub := range p.subs {
			if err := sub.Unsubscribe(); err != nil && sub.IsValid() {
				errs = append(errs, err)
			}
			delete(p.subs, channel)
			p.d.remove(channel)
		}
	})
	if len(errs) > 0 {
		return errors.Wrap(fmt.Errorf("%d unsubscribe failures: %w", len(errs), errs[0]), "NetworkedPubSub", "Stop", "unsubscribe")
	}
	return nil
}
