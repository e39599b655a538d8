package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spadetable/internal/auth"
)

// LongPollStrategy is the fallback for networks where the websocket upgrade
// is blocked. The server keeps a per-session frame queue; the client drains
// it with blocking GETs and pushes outbound frames with POSTs.
type LongPollStrategy struct {
	client *http.Client
}

func NewLongPollStrategy() *LongPollStrategy {
	// No overall timeout: recv requests are held open by the server.
	return &LongPollStrategy{client: &http.Client{}}
}

func (s *LongPollStrategy) Name() string { return "longpoll" }

func (s *LongPollStrategy) Dial(ctx context.Context, baseURL string, cred *auth.Credential) (Conn, error) {
	base := longPollBase(baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/connect", nil)
	if err != nil {
		return nil, err
	}
	if v := cred.Authorization(); v != "" {
		req.Header.Set("Authorization", v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("long-poll connect: status %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("long-poll connect: empty session id")
	}

	connCtx, cancel := context.WithCancel(context.Background())
	return &lpConn{
		base:   base,
		sid:    out.SessionID,
		client: s.client,
		authz:  cred.Authorization(),
		ctx:    connCtx,
		cancel: cancel,
	}, nil
}

// longPollBase maps the websocket endpoint to its long-poll sibling:
// ws://host/ws -> http://host/ws/lp.
func longPollBase(wsURL string) string {
	base := wsURL
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.Replace(base, "ws://", "http://", 1)
	return strings.TrimRight(base, "/") + "/lp"
}

type lpConn struct {
	base   string
	sid    string
	client *http.Client
	authz  string
	ctx    context.Context
	cancel context.CancelFunc

	pending []Frame // drained by the single reader goroutine
}

func (c *lpConn) ReadFrame() (Frame, error) {
	for {
		if len(c.pending) > 0 {
			frame := c.pending[0]
			c.pending = c.pending[1:]
			return frame, nil
		}
		batch, err := c.recv()
		if err != nil {
			return Frame{}, err
		}
		c.pending = batch
	}
}

func (c *lpConn) recv() ([]Frame, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.base+"/"+c.sid+"/recv", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var frames []Frame
		if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
			return nil, err
		}
		return frames, nil
	case http.StatusNoContent:
		// Poll window elapsed with nothing queued.
		return nil, nil
	default:
		return nil, fmt.Errorf("long-poll recv: status %d", resp.StatusCode)
	}
}

func (c *lpConn) WriteFrame(frame Frame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+c.sid+"/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("long-poll send: status %d", resp.StatusCode)
	}
	return nil
}

func (c *lpConn) Close() error {
	c.cancel()
	req, err := http.NewRequest(http.MethodDelete, c.base+"/"+c.sid, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil // session will expire server-side
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *lpConn) setHeaders(req *http.Request) {
	if c.authz != "" {
		req.Header.Set("Authorization", c.authz)
	}
}
