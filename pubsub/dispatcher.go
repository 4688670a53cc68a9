package pubsub

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/andreagemma/ga/metric"
)

// dispatcher holds callbacks per channel and runs them for each message.
type dispatcher struct {
	backend string
	logger  *slog.Logger
	metrics *metric.Metrics

	mu        sync.RWMutex
	callbacks map[string][]Callback
}

func newDispatcher(backend string, logger *slog.Logger, metrics *metric.Metrics) *dispatcher {
	return &dispatcher{
		backend:   backend,
		logger:    logger,
		metrics:   metrics,
		callbacks: make(map[string][]Callback),
	}
}

// add registers cb and reports whether it is the channel's first callback.
func (d *dispatcher) add(channel string, cb Callback) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	first := len(d.callbacks[channel]) == 0
	d.callbacks[channel] = append(d.callbacks[channel], cb)
	return first
}

// remove drops every callback of channel.
func (d *dispatcher) remove(channel string) {
	d.mu.Lock()
	delete(d.callbacks, channel)
	d.mu.Unlock()
}

// dispatch runs msg through the channel's callbacks in registration order.
// A panicking callback is logged and the next one still runs.
func (d *dispatcher) dispatch(ctx context.Context, msg *Message) {
	d.mu.RLock()
	cbs := slices.Clone(d.callbacks[msg.Channel])
	d.mu.RUnlock()

	if len(cbs) == 0 {
		d.logger.Debug("no callbacks for channel", "channel", msg.Channel)
		return
	}

	d.metrics.RecordDelivered(d.backend)
	for i, cb := range cbs {
		d.run(ctx, i, cb, msg)
	}
}

func (d *dispatcher) run(ctx context.Context, index int, cb Callback, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordCallbackPanic(d.backend)
			d.logger.Error("callback panicked", "channel", msg.Channel, "callback", index, "panic", r)
		}
	}()
	cb(ctx, msg)
}
