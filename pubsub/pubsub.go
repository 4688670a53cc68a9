package pubsub

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/errors"
)

// PubSub publishes values to channels and dispatches received messages to
// registered callbacks.
type PubSub interface {
	// Subscribe adds cb to channel. Callbacks accumulate; each message runs
	// every callback of its channel in registration order.
	Subscribe(ctx context.Context, channel string, cb Callback) error

	// Publish encodes v and sends it to channel without waiting for any
	// subscriber.
	Publish(ctx context.Context, channel string, v any) error

	// Listen dispatches incoming messages until ctx is cancelled or Stop is
	// called, both of which return nil. A failed transport returns its error.
	Listen(ctx context.Context) error

	// Running actively probes the backend. It never returns an error.
	Running(ctx context.Context) bool

	// Init checks the backend is reachable, starting a local broker if the
	// backend supports it.
	Init(ctx context.Context) error

	// Stop releases connections. Further use is undefined.
	Stop(ctx context.Context) error
}

// Callback handles one message.
type Callback func(ctx context.Context, msg *Message)

// Message is a received message. Channel is the caller's channel name,
// without the bucket prefix.
type Message struct {
	Channel string
	Data    []byte
	codec   codec.Serializer
}

// NewMessage builds a Message whose Decode uses c.
func NewMessage(channel string, data []byte, c codec.Serializer) *Message {
	return &Message{Channel: channel, Data: data, codec: c}
}

// Decode decodes the payload into v.
func (m *Message) Decode(v any) error {
	return m.codec.Decode(m.Data, v)
}

// channels maps caller channel names to wire names under "{bucket}:".
type channels struct {
	bucket string
}

func (c channels) prefix() string {
	if c.bucket == "" {
		return ""
	}
	return c.bucket + ":"
}

func (c channels) full(channel string) string {
	return c.prefix() + channel
}

func (c channels) strip(full string) (string, bool) {
	p := c.prefix()
	if !strings.HasPrefix(full, p) {
		return "", false
	}
	return full[len(p):], true
}

func validateChannel(component, channel string) error {
	if channel == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty", errors.ErrInvalidChannel), component, "Subscribe", "validate channel")
	}
	return nil
}

// validateSubject also rejects what NATS treats as token separators or
// wildcards, since they would change which subjects match.
func validateSubject(component, channel string) error {
	if err := validateChannel(component, channel); err != nil {
		return err
	}
	if strings.ContainsFunc(channel, unicode.IsSpace) || strings.ContainsAny(channel, "*>") {
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrInvalidChannel, channel), component, "Subscribe", "validate channel")
	}
	return nil
}
