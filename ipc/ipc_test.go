package ipc

import (
	"context"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andreagemma/ga/config"
	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/pubsub"
	"github.com/andreagemma/ga/store"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func localConfig(t *testing.T, bucket string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = config.BackendLocal
	cfg.Bucket = bucket
	cfg.Local.Port = freePort(t)
	return cfg
}

func newLocal(t *testing.T, cfg config.Config, opts ...Option) *IPC {
	t.Helper()
	i, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = i.Close(context.Background()) })
	return i
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "redis"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, errors.ErrUnsupportedBackend)
	assert.True(t, errors.IsInvalid(err))
}

func TestNew_RejectsUnknownCompression(t *testing.T) {
	cfg := localConfig(t, "b")
	cfg.Compression = "rar"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, errors.ErrUnsupportedCompression)
}

func TestLocal_StoreScenarios(t *testing.T) {
	ctx := context.Background()
	i := newLocal(t, localConfig(t, "test"))

	require.NoError(t, i.Set(ctx, "counter", 42))
	n, err := store.GetOr(ctx, i.Store(), "counter", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = store.GetOr(ctx, i.Store(), "missing", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var c int
	existed, err := i.SetDefault(ctx, "c", 0, &c)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, 0, c)

	existed, err = i.SetDefault(ctx, "c", 99, &c)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 0, c)
}

func TestLocal_CompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t, "z")
	cfg.Compression = "zstd"
	cfg.CompressionLevel = 9
	i := newLocal(t, cfg)

	doc := map[string]any{"name": "ga", "tags": []any{"a", "b"}}
	require.NoError(t, i.Set(ctx, "doc", doc))

	var got map[string]any
	require.NoError(t, i.Lookup(ctx, "doc", &got))
	assert.Equal(t, doc, got)
}

func TestLocal_SharedManagerIsolatesBuckets(t *testing.T) {
	ctx := context.Background()
	m := store.NewManager(nil)
	defer m.Close()

	a := newLocal(t, localConfig(t, "a"), WithLocalManager(m))
	b := newLocal(t, localConfig(t, "b"), WithLocalManager(m))

	require.NoError(t, a.Set(ctx, "k", "from-a"))
	require.NoError(t, b.Set(ctx, "k", "from-b"))

	var v string
	require.NoError(t, a.Lookup(ctx, "k", &v))
	assert.Equal(t, "from-a", v)

	require.NoError(t, a.Clear(ctx))
	has, err := b.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	// Closing an IPC leaves a shared Manager running.
	require.NoError(t, a.Close(ctx))
	require.NoError(t, b.Lookup(ctx, "k", &v))
	assert.Equal(t, "from-b", v)
}

func TestLocal_BatchOperations(t *testing.T) {
	ctx := context.Background()
	i := newLocal(t, localConfig(t, "batch"))

	require.NoError(t, i.SetMany(ctx, map[string]any{"a": 1, "b": 2, "c": 3}))

	got, err := i.GetMany(ctx, []string{"a", "c", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	var n int
	require.NoError(t, got["c"].Decode(&n))
	assert.Equal(t, 3, n)

	require.NoError(t, i.DeleteMany(ctx, []string{"a", "b"}))

	var keys []string
	for k, err := range i.Keys(ctx) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"c"}, keys)
}

func TestLocal_ScanAndItems(t *testing.T) {
	ctx := context.Background()
	i := newLocal(t, localConfig(t, "scan"))
	require.NoError(t, i.SetMany(ctx, map[string]any{"job:1": "x", "job:2": "y", "user:1": "z"}))

	var jobs []string
	for k, err := range i.ScanIter(ctx, "job:*") {
		require.NoError(t, err)
		jobs = append(jobs, k)
	}
	slices.Sort(jobs)
	assert.Equal(t, []string{"job:1", "job:2"}, jobs)

	count := 0
	for item, err := range i.Items(ctx) {
		require.NoError(t, err)
		var s string
		require.NoError(t, item.Value.Decode(&s))
		assert.NotEmpty(t, s)
		count++
	}
	assert.Equal(t, 3, count)

	var popped string
	found, err := i.Pop(ctx, "user:1", &popped)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "z", popped)
}

func TestLocal_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t, "app")

	a := newLocal(t, cfg)
	require.NoError(t, a.Init(ctx))
	b := newLocal(t, cfg)
	require.NoError(t, b.Init(ctx))
	assert.True(t, b.Running(ctx))

	got := make(chan map[string]string, 1)
	require.NoError(t, a.Subscribe(ctx, "alerts", func(_ context.Context, msg *pubsub.Message) {
		var v map[string]string
		if err := msg.Decode(&v); err == nil {
			got <- v
		}
	}))

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Listen(listenCtx) }()

	require.NoError(t, b.Publish(ctx, "alerts", map[string]string{"level": "high"}))

	select {
	case v := <-got:
		assert.Equal(t, map[string]string{"level": "high"}, v)
	case <-time.After(time.Second):
		t.Fatal("no message within probe timeout")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestLocal_RunningFalseWithoutBroker(t *testing.T) {
	cfg := localConfig(t, "b")
	cfg.ProbeTimeout = 200 * time.Millisecond
	i := newLocal(t, cfg)

	start := time.Now()
	assert.False(t, i.Running(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	status := i.Health(context.Background())
	assert.True(t, status.IsDegraded() || status.IsUnhealthy())
}

func TestLocal_Health(t *testing.T) {
	ctx := context.Background()
	i := newLocal(t, localConfig(t, "h"))
	require.NoError(t, i.Init(ctx))

	status := i.Health(ctx)
	assert.True(t, status.IsHealthy(), status.Message)
	assert.Len(t, status.SubStatuses, 2)
}

func TestLocal_CloseReleasesEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	i, err := New(ctx, localConfig(t, "c"))
	require.NoError(t, err)
	require.NoError(t, i.Init(ctx))
	require.NoError(t, i.Set(ctx, "k", 1))
	require.NoError(t, i.Publish(ctx, "ch", 1))

	require.NoError(t, i.Close(ctx))
	require.NoError(t, i.Close(ctx))

	err = i.Set(ctx, "k", 2)
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestLocal_ClearWithoutBucket(t *testing.T) {
	i := newLocal(t, localConfig(t, ""))
	err := i.Clear(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoBucket)
}
