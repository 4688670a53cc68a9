package natsclient

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/errors"
)

// closedAddr returns an address that nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusClosed, "closed"},
		{ConnectionStatus(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(10*time.Millisecond),
		WithTimeout(250*time.Millisecond),
		WithName("ga-test"),
		WithCredentials("user", "pass"),
	)
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, 3, client.maxReconnects)
	assert.Equal(t, "ga-test", client.clientName)
	assert.Nil(t, client.Connection())
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithTimeout(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestClient_OperationsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = client.Publish(context.Background(), "ch", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestClient_ConnectFailsFastWhenNothingListens(t *testing.T) {
	client, err := NewClient("nats://"+closedAddr(t),
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, StatusClosed, client.Status())

	err = client.Connect(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestProbe_NoServer(t *testing.T) {
	start := time.Now()
	err := Probe(context.Background(), "nats://"+closedAddr(t), 500*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := Probe(ctx, "nats://127.0.0.1:4222", time.Second)
	assert.ErrorIs(t, err, errors.ErrProbeTimeout)
}

func TestReachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	assert.NoError(t, Reachable(context.Background(), l.Addr().String(), time.Second))
	assert.Error(t, Reachable(context.Background(), closedAddr(t), 200*time.Millisecond))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(fmt.Errorf("nats: stream name already in use")))
	assert.False(t, isAlreadyExistsError(fmt.Errorf("nats: timeout")))
}

func TestKVErrorHelpers(t *testing.T) {
	assert.True(t, IsKVNotFoundError(ErrKVKeyNotFound))
	assert.True(t, errors.IsNotFound(ErrKVKeyNotFound))
	assert.True(t, IsKVNotFoundError(fmt.Errorf("nats: key not found")))
	assert.False(t, IsKVNotFoundError(nil))

	assert.True(t, IsKVConflictError(ErrKVKeyExists))
	assert.True(t, IsKVConflictError(fmt.Errorf("nats: wrong last sequence: 4")))
	assert.False(t, IsKVConflictError(fmt.Errorf("nats: timeout")))
}
