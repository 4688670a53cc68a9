package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andreagemma/ga/errors"
)

// DefaultProbeTimeout bounds Probe when no timeout is given.
const DefaultProbeTimeout = time.Second

// Dial opens a client connection to the broker at rawURL.
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "broker", "Dial", fmt.Sprintf("dial %s", rawURL))
	}
	return ws, nil
}

// Probe checks that a broker answers at rawURL. It first checks that the
// TCP port accepts connections, then sends a ping carrying Identity and
// waits for the same string back, so a port held by some other service
// fails the probe. Both steps share one timeout.
func Probe(ctx context.Context, rawURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.WrapInvalid(err, "broker", "Probe", "parse url")
	}

	var d net.Dialer
	tcp, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return probeError(ctx, err, "tcp connect")
	}
	_ = tcp.Close()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return probeError(ctx, err, "websocket handshake")
	}
	defer ws.Close()

	deadline, _ := ctx.Deadline()
	_ = ws.SetWriteDeadline(deadline)
	_ = ws.SetReadDeadline(deadline)

	ping, err := Frame{Type: FramePing, Message: []byte(Identity)}.Marshal()
	if err != nil {
		return errors.Wrap(err, "broker", "Probe", "encode ping")
	}
	if err := ws.WriteMessage(websocket.TextMessage, ping); err != nil {
		return probeError(ctx, err, "send ping")
	}

	_, reply, err := ws.ReadMessage()
	if err != nil {
		return probeError(ctx, err, "read ping reply")
	}
	if string(reply) != Identity {
		return errors.WrapTransient(fmt.Errorf("unexpected ping reply %q", reply), "broker", "Probe", "check identity")
	}
	return nil
}

func probeError(ctx context.Context, err error, action string) error {
	var ne net.Error
	if ctx.Err() != nil || (stderrors.As(err, &ne) && ne.Timeout()) {
		err = fmt.Errorf("%w: %v", errors.ErrProbeTimeout, err)
	}
	return errors.WrapTransient(err, "broker", "Probe", action)
}
