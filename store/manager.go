package store

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/andreagemma/ga/errors"
)

// Manager owns an in-process dictionary served by a single goroutine. Every
// operation is a request to that goroutine, so compound operations such as
// SetDefault and Pop are atomic across all stores sharing the Manager.
//
// The goroutine starts in NewManager and stops in Close.
type Manager struct {
	requests chan func(map[string][]byte)
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

// NewManager starts a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		requests: make(chan func(map[string][]byte)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.With("component", "manager"),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	defer close(m.done)

	data := make(map[string][]byte)
	m.logger.Debug("manager started")
	for {
		select {
		case fn := <-m.requests:
			fn(data)
		case <-m.quit:
			m.logger.Debug("manager stopped", "keys", len(data))
			return
		}
	}
}

// do runs fn on the manager goroutine and waits for it.
func (m *Manager) do(ctx context.Context, fn func(map[string][]byte)) error {
	finished := make(chan struct{})
	req := func(data map[string][]byte) {
		defer close(finished)
		fn(data)
	}

	select {
	case m.requests <- req:
	case <-m.quit:
		return errors.WrapFatal(errors.ErrClosed, "Manager", "do", "submit request")
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Manager", "do", "submit request")
	}

	// Once accepted the request always runs to completion.
	<-finished
	return nil
}

// Close stops the goroutine and waits for it. Data held by the Manager is
// discarded. Safe to call more than once.
func (m *Manager) Close() error {
	m.once.Do(func() { close(m.quit) })
	<-m.done
	return nil
}

func (m *Manager) get(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = m.do(ctx, func(data map[string][]byte) {
		var v []byte
		if v, found = data[key]; found {
			value = slices.Clone(v)
		}
	})
	return value, found, err
}

func (m *Manager) put(ctx context.Context, key string, value []byte) error {
	value = slices.Clone(value)
	return m.do(ctx, func(data map[string][]byte) {
		data[key] = value
	})
}

func (m *Manager) setDefault(ctx context.Context, key string, value []byte) (current []byte, existed bool, err error) {
	stored := slices.Clone(value)
	err = m.do(ctx, func(data map[string][]byte) {
		var v []byte
		if v, existed = data[key]; existed {
			current = slices.Clone(v)
			return
		}
		data[key] = stored
		current = value
	})
	return current, existed, err
}

func (m *Manager) delete(ctx context.Context, key string) error {
	return m.do(ctx, func(data map[string][]byte) {
		delete(data, key)
	})
}

func (m *Manager) pop(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = m.do(ctx, func(data map[string][]byte) {
		if value, found = data[key]; found {
			delete(data, key)
		}
	})
	return value, found, err
}

// keys snapshots the keys starting with prefix, sorted.
func (m *Manager) keys(ctx context.Context, prefix string) (keys []string, err error) {
	err = m.do(ctx, func(data map[string][]byte) {
		for k := range data {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	})
	slices.Sort(keys)
	return keys, err
}
