package broker

import (
	"encoding/json"
	"reflect"
)

// Frame types sent by clients.
const (
	FrameSubscribe = "subscribe"
	FramePublish   = "publish"
	FramePing      = "ping"
)

// Identity is the string a broker echoes to a ping carrying the same string.
// Anything else listening on the port will not answer it.
var Identity = reflect.TypeFor[Server]().PkgPath() + ".Server"

// Frame is one WebSocket message on the broker protocol.
//
// Client frames carry a Type. Broadcast frames from the server carry only
// Channel and Message. Message is base64 in the JSON encoding.
type Frame struct {
	Type    string `json:"type,omitempty"`
	Channel string `json:"channel,omitempty"`
	Message []byte `json:"message,omitempty"`
}

// Marshal encodes the frame.
func (f Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// ParseFrame decodes a frame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
