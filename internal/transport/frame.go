package transport

import "encoding/json"

// Frame types exchanged with the realtime endpoint. The client sends
// subscribe/unsubscribe/send; the server delivers message frames.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
	FrameMessage     = "message"
)

// Frame is the wire unit on every transport strategy. Destination names the
// topic or control endpoint, e.g. "tables/7" or "game/7/action".
type Frame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}
