package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"spadetable/internal/auth"
)

// WebSocketStrategy is the preferred transport: one full-duplex connection
// carrying JSON frames as text messages.
type WebSocketStrategy struct {
	dialer *websocket.Dialer
}

func NewWebSocketStrategy() *WebSocketStrategy {
	return &WebSocketStrategy{dialer: websocket.DefaultDialer}
}

func (s *WebSocketStrategy) Name() string { return "websocket" }

func (s *WebSocketStrategy) Dial(ctx context.Context, baseURL string, cred *auth.Credential) (Conn, error) {
	header := http.Header{}
	if v := cred.Authorization(); v != "" {
		header.Set("Authorization", v)
	}
	conn, resp, err := s.dialer.DialContext(ctx, baseURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadFrame() (Frame, error) {
	var frame Frame
	err := c.conn.ReadJSON(&frame)
	return frame, err
}

func (c *wsConn) WriteFrame(frame Frame) error {
	// gorilla allows one concurrent writer; the channel client and the
	// poller can both publish.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
