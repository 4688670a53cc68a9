package natsclient

import (
	"context"
	"net"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/andreagemma/ga/errors"
)

// DefaultProbeTimeout bounds Probe and Reachable when the caller does not.
const DefaultProbeTimeout = time.Second

// Probe opens a short-lived secondary connection to url and round-trips a
// PING. It never touches the caller's main connection, so it reports whether
// the server answers right now rather than a cached flag.
func Probe(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return errors.WrapTransient(errors.ErrProbeTimeout, "natsclient", "Probe", "deadline already passed")
	}

	conn, err := nats.Connect(url,
		nats.Name("ga-probe"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return errors.WrapTransient(err, "natsclient", "Probe", "connect")
	}
	defer conn.Close()

	if err := conn.FlushTimeout(timeout); err != nil {
		return errors.WrapTransient(err, "natsclient", "Probe", "ping")
	}
	return nil
}

// Reachable checks that something accepts TCP connections at addr.
func Reachable(ctx context.Context, addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.WrapTransient(err, "natsclient", "Reachable", "dial "+addr)
	}
	return conn.Close()
}
