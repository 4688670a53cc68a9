package pubsub

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/pubsub/broker"
)

// LocalPubSub talks to a broker.Server over one lazily opened WebSocket
// connection, used for subscribing, publishing and receiving.
type LocalPubSub struct {
	cfg      broker.Config
	url      string
	opts     options
	channels channels
	d        *dispatcher

	mu       sync.Mutex
	ws       *websocket.Conn
	incoming chan *Message
	pongs    chan struct{}
	readErr  chan error
	readDone chan struct{}
	server   *broker.Server

	writeMu sync.Mutex
	subMu   sync.Mutex

	stopped  chan struct{}
	stopOnce sync.Once
}

var _ PubSub = (*LocalPubSub)(nil)

// NewLocal creates a LocalPubSub for the broker at cfg's host, port and path.
// It does not connect until first use.
func NewLocal(cfg broker.Config, opts ...Option) (*LocalPubSub, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, cfg.Port), "LocalPubSub", "New", "validate port")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	o.logger = o.logger.With("component", "pubsub", "backend", "local", "bucket", o.bucket)

	return &LocalPubSub{
		cfg:      cfg,
		url:      "ws://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + cfg.Path,
		opts:     o,
		channels: channels{bucket: o.bucket},
		d:        newDispatcher("local", o.logger, o.metrics),
		incoming: make(chan *Message, o.bufferSize),
		pongs:    make(chan struct{}, 1),
		readErr:  make(chan error, 1),
		stopped:  make(chan struct{}),
	}, nil
}

// URL returns the broker URL.
func (p *LocalPubSub) URL() string {
	return p.url
}

// conn returns the connection, dialing it and starting the reader on first use.
func (p *LocalPubSub) conn(ctx context.Context) (*websocket.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stopped:
		return nil, errors.WrapFatal(errors.ErrClosed, "LocalPubSub", "conn", "connect")
	default:
	}
	if p.ws != nil {
		return p.ws, nil
	}

	ws, err := broker.Dial(ctx, p.url)
	if err != nil {
		return nil, err
	}
	p.ws = ws
	p.readDone = make(chan struct{})
	go p.readLoop(ws, p.readDone)

	p.opts.logger.Debug("connected to broker", "url", p.url)
	return ws, nil
}

func (p *LocalPubSub) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case p.readErr <- err:
			default:
			}
			return
		}

		if string(data) == broker.Identity {
			select {
			case p.pongs <- struct{}{}:
			default:
			}
			continue
		}

		frame, err := broker.ParseFrame(data)
		if err != nil {
			p.opts.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		channel, ok := p.channels.strip(frame.Channel)
		if !ok {
			continue
		}

		p.enqueue(NewMessage(channel, frame.Message, p.opts.codec))
	}
}

// enqueue hands msg to Listen without blocking the reader, which must stay
// free to deliver pongs. When the buffer is full the oldest message goes.
func (p *LocalPubSub) enqueue(msg *Message) {
	for {
		select {
		case p.incoming <- msg:
			return
		default:
		}
		select {
		case old := <-p.incoming:
			p.opts.logger.Warn("listen buffer full, dropping oldest message", "channel", old.Channel)
		default:
		}
	}
}

func (p *LocalPubSub) send(ctx context.Context, f broker.Frame) error {
	ws, err := p.conn(ctx)
	if err != nil {
		return err
	}
	data, err := f.Marshal()
	if err != nil {
		return errors.Wrap(err, "LocalPubSub", "send", "encode frame")
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline := time.Now().Add(p.opts.probeTimeout * 5)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "LocalPubSub", "send", fmt.Sprintf("write %s frame", f.Type))
	}
	return nil
}

// Subscribe implements PubSub. The first callback of a channel registers
// it with the broker, and Subscribe returns once the broker has seen it.
func (p *LocalPubSub) Subscribe(ctx context.Context, channel string, cb Callback) error {
	if err := validateChannel("LocalPubSub", channel); err != nil {
		return err
	}

	p.subMu.Lock()
	defer p.subMu.Unlock()

	if !p.d.add(channel, cb) {
		return nil
	}
	if err := p.send(ctx, broker.Frame{Type: broker.FrameSubscribe, Channel: p.channels.full(channel)}); err != nil {
		p.d.remove(channel)
		return err
	}
	if err := p.sync(ctx); err != nil {
		p.d.remove(channel)
		return err
	}
	p.opts.logger.Debug("subscribed", "channel", channel)
	return nil
}

// sync waits until the broker has processed every frame sent so far. The
// broker handles one connection's frames in order, so its ping reply
// arrives after the earlier frames took effect.
func (p *LocalPubSub) sync(ctx context.Context) error {
	if err := p.send(ctx, broker.Frame{Type: broker.FramePing, Message: []byte(broker.Identity)}); err != nil {
		return err
	}

	timer := time.NewTimer(p.opts.probeTimeout * 5)
	defer timer.Stop()

	select {
	case <-p.pongs:
		return nil
	case <-timer.C:
		return errors.WrapTransient(errors.ErrProbeTimeout, "LocalPubSub", "sync", "wait for broker")
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "LocalPubSub", "sync", "wait for broker")
	case <-p.stopped:
		return errors.WrapFatal(errors.ErrClosed, "LocalPubSub", "sync", "wait for broker")
	}
}

// Publish implements PubSub.
func (p *LocalPubSub) Publish(ctx context.Context, channel string, v any) error {
	if err := validateChannel("LocalPubSub", channel); err != nil {
		return err
	}
	data, err := p.opts.codec.Encode(v)
	if err != nil {
		return err
	}
	if err := p.send(ctx, broker.Frame{Type: broker.FramePublish, Channel: p.channels.full(channel), Message: data}); err != nil {
		return err
	}
	p.opts.metrics.RecordPublished("local")
	return nil
}

// Listen implements PubSub. It connects if no call has yet.
func (p *LocalPubSub) Listen(ctx context.Context) error {
	if _, err := p.conn(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopped:
			return nil
		case msg := <-p.incoming:
			p.d.dispatch(ctx, msg)
		case err := <-p.readErr:
			select {
			case <-p.stopped:
				return nil
			default:
			}
			return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "LocalPubSub", "Listen", "read frames")
		}
	}
}

// Running implements PubSub: the port must accept connections and answer
// a ping with the broker identity.
func (p *LocalPubSub) Running(ctx context.Context) bool {
	err := broker.Probe(ctx, p.url, p.opts.probeTimeout)
	if err != nil {
		p.opts.logger.Debug("probe failed", "error", err)
	}
	return err == nil
}

// Init implements PubSub. When no broker answers it starts one in this
// process, owned by this LocalPubSub and closed by Stop.
func (p *LocalPubSub) Init(ctx context.Context) error {
	if p.Running(ctx) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return nil
	}

	server := broker.NewServer(p.cfg, broker.WithLogger(p.opts.logger), broker.WithMetrics(p.opts.metrics))
	if err := server.Start(ctx); err != nil {
		return err
	}
	p.server = server
	p.opts.logger.Info("started local broker", "url", p.url)
	return nil
}

// Stop implements PubSub. It closes the connection, waits for the reader
// and closes the broker if Init started one.
func (p *LocalPubSub) Stop(_ context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopped)

		p.mu.Lock()
		ws, done, server := p.ws, p.readDone, p.server
		p.ws, p.server = nil, nil
		p.mu.Unlock()

		if ws != nil {
			p.writeMu.Lock()
			_ = ws.SetWriteDeadline(time.Now().Add(p.opts.probeTimeout))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			p.writeMu.Unlock()
			_ = ws.Close()
			<-done
		}
		if server != nil {
			err = server.Close()
		}
	})
	return err
}
