//go:build integration

package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/natsclient"
)

func TestNetworked_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	tc := natsclient.NewTestClient(t)

	sub, err := NewNetworked(tc.Client, WithBucket("app"))
	require.NoError(t, err)
	pub, err := NewNetworked(tc.Client, WithBucket("app"))
	require.NoError(t, err)
	other, err := NewNetworked(tc.Client, WithBucket("other"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sub.Stop(ctx)
		_ = pub.Stop(ctx)
		_ = other.Stop(ctx)
	})

	require.NoError(t, sub.Init(ctx))
	assert.True(t, sub.Running(ctx))

	got := make(chan map[string]string, 4)
	var order []int
	require.NoError(t, sub.Subscribe(ctx, "alerts", func(context.Context, *Message) { order = append(order, 1) }))
	require.NoError(t, sub.Subscribe(ctx, "alerts", func(_ context.Context, msg *Message) {
		order = append(order, 2)
		var v map[string]string
		if assert.NoError(t, msg.Decode(&v)) {
			got <- v
		}
	}))
	listen(t, sub)

	require.NoError(t, other.Publish(ctx, "alerts", map[string]string{"level": "low"}))
	require.NoError(t, pub.Publish(ctx, "alerts", map[string]string{"level": "high"}))

	select {
	case v := <-got:
		assert.Equal(t, map[string]string{"level": "high"}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestNetworked_ListenEndsOnStop(t *testing.T) {
	ctx := context.Background()
	tc := natsclient.NewTestClient(t)

	ps, err := NewNetworked(tc.Client)
	require.NoError(t, err)
	require.NoError(t, ps.Subscribe(ctx, "c", func(context.Context, *Message) {}))

	done := make(chan error, 1)
	go func() { done <- ps.Listen(ctx) }()

	require.NoError(t, ps.Stop(ctx))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return")
	}
}
