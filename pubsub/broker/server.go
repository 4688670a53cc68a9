package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/metric"
)

// Config configures a Server.
type Config struct {
	Host         string        // Listen host, empty for all interfaces
	Port         int           // Listen port, 0 for any free port
	Path         string        // WebSocket endpoint path
	QueueSize    int           // Outbound frames buffered per connection
	WriteTimeout time.Duration // Per-frame write deadline
}

// DefaultConfig returns the configuration used by the local backend.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         6380,
		Path:         "/",
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

// Stats is a snapshot of broker activity.
type Stats struct {
	Connections   int
	Subscriptions int
	Published     uint64
	Delivered     uint64
	SendFailures  uint64
}

// Server is the local pub/sub broker. Each WebSocket connection may
// subscribe to channels; a publish from any connection is forwarded to every
// connection subscribed to its channel.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metric.Metrics
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conns    map[string]*conn
	server   *http.Server
	listener net.Listener

	wg        sync.WaitGroup
	shutdown  chan struct{}
	closeOnce sync.Once
	started   atomic.Bool

	published    atomic.Uint64
	delivered    atomic.Uint64
	sendFailures atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records connection and frame metrics in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a Server. It does not listen until Start or Serve.
func NewServer(cfg Config, opts ...Option) *Server {
	defaults := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:    make(map[string]*conn),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "broker")
	return s
}

// Start listens on the configured address and serves in the background
// until Close.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.WrapTransient(err, "Server", "Start", fmt.Sprintf("listen on %s", addr))
	}

	server, err := s.prepare(listener)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.serve(server, listener); err != nil {
			s.logger.Error("broker stopped serving", "error", err)
		}
	}()
	return nil
}

// Serve accepts connections on listener and blocks until Close. It returns
// nil after Close.
func (s *Server) Serve(listener net.Listener) error {
	server, err := s.prepare(listener)
	if err != nil {
		return err
	}
	return s.serve(server, listener)
}

func (s *Server) prepare(listener net.Listener) (*http.Server, error) {
	if !s.started.CompareAndSwap(false, true) {
		_ = listener.Close()
		return nil, errors.WrapInvalid(fmt.Errorf("server already started"), "Server", "Serve", "start")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.shutdown:
		_ = listener.Close()
		return nil, errors.WrapFatal(errors.ErrClosed, "Server", "Serve", "start")
	default:
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server, nil
}

func (s *Server) serve(server *http.Server, listener net.Listener) error {
	s.logger.Info("broker listening", "addr", listener.Addr().String(), "path", s.cfg.Path)

	err := server.Serve(listener)
	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapTransient(err, "Server", "Serve", "serve")
	}
	return nil
}

// Addr returns the bound address, or nil before Start or Serve.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the WebSocket URL clients should dial, or "" before Start.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	return "ws://" + addr.String() + s.cfg.Path
}

// Close stops accepting connections, closes every open connection and waits
// for their goroutines. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		server := s.server
		conns := make([]*conn, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
				err = errors.Wrap(shutdownErr, "Server", "Close", "shutdown http server")
			}
		}

		// Hijacked connections are not closed by Shutdown.
		for _, c := range conns {
			c.close()
		}
		s.wg.Wait()
		s.logger.Info("broker stopped")
	})
	return err
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	stats := Stats{Connections: len(s.conns)}
	for _, c := range s.conns {
		stats.Subscriptions += c.subscriptionCount()
	}
	s.mu.RUnlock()

	stats.Published = s.published.Load()
	stats.Delivered = s.delivered.Load()
	stats.SendFailures = s.sendFailures.Load()
	return stats
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(uuid.NewString(), ws, s.cfg.QueueSize)

	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		_ = ws.Close()
		return
	default:
	}
	s.conns[c.id] = c
	s.wg.Add(2)
	s.mu.Unlock()

	s.metrics.RecordBrokerConnection(1)
	s.logger.Debug("connection opened", "conn", c.id, "remote", r.RemoteAddr)

	go s.writeLoop(c)
	go s.readLoop(c)
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	_, ok := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()

	c.close()
	if ok {
		s.metrics.RecordBrokerConnection(-1)
		s.logger.Debug("connection closed", "conn", c.id)
	}
}

// readLoop handles control frames from one connection. Its subscription set
// is only changed here.
func (s *Server) readLoop(c *conn) {
	defer s.wg.Done()
	defer s.removeConn(c)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				s.logger.Debug("connection read failed", "conn", c.id, "error", err)
			}
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			s.logger.Debug("ignoring malformed frame", "conn", c.id, "error", err)
			continue
		}
		s.metrics.RecordBrokerFrame(frame.Type)

		switch frame.Type {
		case FrameSubscribe:
			c.subscribe(frame.Channel)
			s.logger.Debug("subscribed", "conn", c.id, "channel", frame.Channel)
		case FramePublish:
			s.broadcast(frame.Channel, frame.Message)
		case FramePing:
			if string(frame.Message) == Identity {
				c.enqueue([]byte(Identity))
			}
		default:
			s.logger.Debug("ignoring unknown frame type", "conn", c.id, "type", frame.Type)
		}
	}
}

// broadcast forwards message to every subscriber of channel. A subscriber
// whose queue is full is skipped and logged; the others still receive it.
func (s *Server) broadcast(channel string, message []byte) {
	s.published.Add(1)

	data, err := Frame{Channel: channel, Message: message}.Marshal()
	if err != nil {
		s.logger.Error("encode broadcast frame", "channel", channel, "error", err)
		return
	}

	s.mu.RLock()
	targets := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		if c.subscribed(channel) {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if c.enqueue(data) {
			s.delivered.Add(1)
			continue
		}
		s.sendFailures.Add(1)
		s.metrics.RecordBrokerSendFailure()
		s.logger.Error("dropping message for slow subscriber", "conn", c.id, "channel", channel)
	}
}

func (s *Server) writeLoop(c *conn) {
	defer s.wg.Done()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if !c.isClosed() {
					s.sendFailures.Add(1)
					s.metrics.RecordBrokerSendFailure()
					s.logger.Error("write to subscriber failed", "conn", c.id, "error", err)
				}
				// Unblocks the read loop, which removes the connection.
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
