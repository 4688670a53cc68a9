package broker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andreagemma/ga/errors"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0

	s := NewServer(cfg)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ws, err := Dial(context.Background(), s.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, f Frame) {
	t.Helper()
	data, err := f.Marshal()
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func receive(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	f, err := ParseFrame(data)
	require.NoError(t, err)
	return f
}

// waitSubscriptions polls until the broker has seen n subscriptions, since
// subscribe frames are not acknowledged.
func waitSubscriptions(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Stats().Subscriptions >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "github.com/andreagemma/ga/pubsub/broker.Server", Identity)
}

func TestFrame_JSONShape(t *testing.T) {
	data, err := Frame{Channel: "c", Message: []byte("hi")}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"c","message":"aGk="}`, string(data))

	f, err := ParseFrame([]byte(`{"type":"subscribe","channel":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, Frame{Type: FrameSubscribe, Channel: "x"}, f)
}

func TestServer_PublishReachesSubscribers(t *testing.T) {
	s := startServer(t)

	a := dial(t, s)
	b := dial(t, s)
	other := dial(t, s)
	pub := dial(t, s)

	send(t, a, Frame{Type: FrameSubscribe, Channel: "alerts"})
	send(t, b, Frame{Type: FrameSubscribe, Channel: "alerts"})
	send(t, other, Frame{Type: FrameSubscribe, Channel: "other"})
	waitSubscriptions(t, s, 3)

	send(t, pub, Frame{Type: FramePublish, Channel: "alerts", Message: []byte(`{"level":"high"}`)})

	for _, ws := range []*websocket.Conn{a, b} {
		f := receive(t, ws)
		assert.Equal(t, "alerts", f.Channel)
		assert.Empty(t, f.Type)
		assert.JSONEq(t, `{"level":"high"}`, string(f.Message))
	}

	require.Eventually(t, func() bool {
		return s.Stats().Delivered == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), s.Stats().Published)
}

func TestServer_PublisherReceivesOwnChannel(t *testing.T) {
	s := startServer(t)
	ws := dial(t, s)

	send(t, ws, Frame{Type: FrameSubscribe, Channel: "self"})
	waitSubscriptions(t, s, 1)
	send(t, ws, Frame{Type: FramePublish, Channel: "self", Message: []byte("1")})

	f := receive(t, ws)
	assert.Equal(t, "self", f.Channel)
	assert.Equal(t, []byte("1"), f.Message)
}

func TestServer_DisconnectedSubscriberDoesNotBlockOthers(t *testing.T) {
	s := startServer(t)

	gone := dial(t, s)
	alive := dial(t, s)
	send(t, gone, Frame{Type: FrameSubscribe, Channel: "c"})
	send(t, alive, Frame{Type: FrameSubscribe, Channel: "c"})
	waitSubscriptions(t, s, 2)

	require.NoError(t, gone.Close())

	pub := dial(t, s)
	send(t, pub, Frame{Type: FramePublish, Channel: "c", Message: []byte("x")})

	f := receive(t, alive)
	assert.Equal(t, []byte("x"), f.Message)
}

func TestServer_FullQueueIsIsolated(t *testing.T) {
	s := NewServer(Config{Host: "127.0.0.1", QueueSize: 1})
	c := &conn{id: "stuck", send: make(chan []byte, 1), done: make(chan struct{}), channels: map[string]struct{}{"c": {}}}
	s.conns[c.id] = c

	s.broadcast("c", []byte("1"))
	s.broadcast("c", []byte("2"))

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.SendFailures)
}

func TestProbe(t *testing.T) {
	s := startServer(t)
	assert.NoError(t, Probe(context.Background(), s.URL(), time.Second))
}

func TestProbe_NothingListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	start := time.Now()
	err = Probe(context.Background(), "ws://"+addr+"/", 500*time.Millisecond)
	assert.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_WrongProtocol(t *testing.T) {
	// A TCP server that accepts and never answers.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				<-done
				_ = c.Close()
			}()
		}
	}()

	start := time.Now()
	err = Probe(context.Background(), "ws://"+l.Addr().String()+"/", 300*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProbeTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_WrongIdentityIgnored(t *testing.T) {
	s := startServer(t)
	ws := dial(t, s)

	send(t, ws, Frame{Type: FramePing, Message: []byte("someone-else")})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err, "a foreign ping must not be answered")
}

func TestServer_CloseStopsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := DefaultConfig()
	cfg.Port = 0
	s := NewServer(cfg)
	require.NoError(t, s.Start(context.Background()))

	ws, err := Dial(context.Background(), s.URL())
	require.NoError(t, err)
	send(t, ws, Frame{Type: FrameSubscribe, Channel: "c"})
	waitSubscriptions(t, s, 1)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_ = ws.Close()

	assert.Equal(t, 0, s.Stats().Connections)
}

func TestServer_StartTwice(t *testing.T) {
	s := startServer(t)
	err := s.Start(context.Background())
	assert.True(t, errors.IsInvalid(err))
}
