package pubsub

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/andreagemma/ga/metric"
)

func TestDispatcher_RegistrationOrder(t *testing.T) {
	d := newDispatcher("local", slog.Default(), nil)

	var calls []int
	for i := range 3 {
		first := d.add("c", func(context.Context, *Message) { calls = append(calls, i) })
		assert.Equal(t, i == 0, first)
	}

	d.dispatch(context.Background(), &Message{Channel: "c"})
	d.dispatch(context.Background(), &Message{Channel: "other"})

	assert.Equal(t, []int{0, 1, 2}, calls)
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	m := metric.NewMetrics()
	d := newDispatcher("local", slog.Default(), m)

	var ran []string
	d.add("c", func(context.Context, *Message) { ran = append(ran, "before") })
	d.add("c", func(context.Context, *Message) { panic("boom") })
	d.add("c", func(context.Context, *Message) { ran = append(ran, "after") })

	assert.NotPanics(t, func() {
		d.dispatch(context.Background(), &Message{Channel: "c"})
		d.dispatch(context.Background(), &Message{Channel: "c"})
	})

	assert.Equal(t, []string{"before", "after", "before", "after"}, ran)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallbackPanics.WithLabelValues("local")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDelivered.WithLabelValues("local")))
}

func TestChannels(t *testing.T) {
	c := channels{bucket: "app"}
	assert.Equal(t, "app:alerts", c.full("alerts"))

	ch, ok := c.strip("app:alerts")
	assert.True(t, ok)
	assert.Equal(t, "alerts", ch)

	_, ok = c.strip("other:alerts")
	assert.False(t, ok)

	assert.Equal(t, "alerts", channels{}.full("alerts"))
}

func TestValidateSubject(t *testing.T) {
	for _, ok := range []string{"alerts", "a.b", "user:1", "x-y_z"} {
		assert.NoError(t, validateSubject("test", ok), ok)
	}
	for _, bad := range []string{"", "a b", "a\tb", "a.*", "a.>"} {
		assert.Error(t, validateSubject("test", bad), bad)
	}
	assert.NoError(t, validateChannel("test", "a b"))
}
