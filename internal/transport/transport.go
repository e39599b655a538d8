// Package transport establishes the realtime connection to the backend and
// exposes subscribe/publish over it. Two strategies are tried in order: a
// full-duplex websocket, then HTTP long-polling for networks that block
// upgrades. Everything above this package is strategy-agnostic.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"spadetable/internal/auth"
)

var (
	// ErrConnectionFailed means no strategy could establish a connection
	// within its timeout.
	ErrConnectionFailed = errors.New("connection_failed")

	// ErrNotConnected is returned by Subscribe/Publish before Connect
	// succeeds or after the connection drops.
	ErrNotConnected = errors.New("not_connected")
)

// Conn is one established connection, whatever the strategy.
type Conn interface {
	// ReadFrame blocks for the next server frame. Frames arrive in
	// server-send order; the adapter never reorders them.
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Strategy dials one kind of connection. Dial must respect ctx; a dial that
// neither resolves nor fails is exactly the defect the per-attempt timeout
// guards against.
type Strategy interface {
	Name() string
	Dial(ctx context.Context, baseURL string, cred *auth.Credential) (Conn, error)
}

// MessageHandler receives the body of a message frame for a destination.
type MessageHandler func(body json.RawMessage)

// Subscription is a handle for undoing one Subscribe call.
type Subscription struct {
	adapter     *Adapter
	destination string
	id          int
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.adapter.unsubscribe(s.destination, s.id)
}

// Adapter owns the connection lifecycle and fans message frames out to
// destination subscribers.
type Adapter struct {
	baseURL        string
	cred           *auth.Credential
	strategies     []Strategy
	connectTimeout time.Duration

	mu        sync.Mutex
	conn      Conn
	connected bool
	nextSubID int
	subs      map[string]map[int]MessageHandler
	onDown    func(error)
}

func NewAdapter(baseURL string, cred *auth.Credential, connectTimeout time.Duration, strategies ...Strategy) *Adapter {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if len(strategies) == 0 {
		strategies = []Strategy{NewWebSocketStrategy(), NewLongPollStrategy()}
	}
	return &Adapter{
		baseURL:        baseURL,
		cred:           cred,
		strategies:     strategies,
		connectTimeout: connectTimeout,
		subs:           map[string]map[int]MessageHandler{},
	}
}

// OnDown registers a callback invoked once when an established connection
// drops. Connect failures are reported through Connect's error instead.
func (a *Adapter) OnDown(fn func(error)) {
	a.mu.Lock()
	a.onDown = fn
	a.mu.Unlock()
}

// Connect tries each strategy in order with a per-attempt timeout. The
// adapter is connected once any strategy succeeds.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	var attemptErrs []error
	for _, strategy := range a.strategies {
		dialCtx, cancel := context.WithTimeout(ctx, a.connectTimeout)
		conn, err := strategy.Dial(dialCtx, a.baseURL, a.cred)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("strategy", strategy.Name()).Msg("transport dial failed")
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		a.mu.Lock()
		a.conn = conn
		a.connected = true
		a.mu.Unlock()
		log.Info().Str("strategy", strategy.Name()).Msg("transport connected")
		go a.readLoop(conn)
		return nil
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, errors.Join(attemptErrs...))
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Subscribe registers a handler for message frames on a destination and
// tells the server to start delivering it. Multiple handlers per
// destination are invoked in registration order.
func (a *Adapter) Subscribe(destination string, handler MessageHandler) (*Subscription, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := a.conn
	a.nextSubID++
	id := a.nextSubID
	first := len(a.subs[destination]) == 0
	if a.subs[destination] == nil {
		a.subs[destination] = map[int]MessageHandler{}
	}
	a.subs[destination][id] = handler
	a.mu.Unlock()

	if first {
		if err := conn.WriteFrame(Frame{Type: FrameSubscribe, Destination: destination}); err != nil {
			a.unsubscribe(destination, id)
			return nil, err
		}
	}
	return &Subscription{adapter: a, destination: destination, id: id}, nil
}

// Publish sends a body to a destination. The payload is marshalled to JSON.
func (a *Adapter) Publish(destination string, body any) error {
	a.mu.Lock()
	conn := a.conn
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return conn.WriteFrame(Frame{Type: FrameSend, Destination: destination, Body: raw})
}

// Disconnect tears down the connection and every subscription. Safe to call
// when already disconnected.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.connected = false
	a.subs = map[string]map[int]MessageHandler{}
	a.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (a *Adapter) unsubscribe(destination string, id int) {
	a.mu.Lock()
	handlers := a.subs[destination]
	delete(handlers, id)
	last := len(handlers) == 0
	if last {
		delete(a.subs, destination)
	}
	conn := a.conn
	connected := a.connected
	a.mu.Unlock()

	if last && connected && conn != nil {
		_ = conn.WriteFrame(Frame{Type: FrameUnsubscribe, Destination: destination})
	}
}

// readLoop dispatches message frames in arrival order until the connection
// dies. A failure downgrades health through OnDown rather than propagating.
func (a *Adapter) readLoop(conn Conn) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			a.mu.Lock()
			wasCurrent := a.conn == conn
			if wasCurrent {
				a.conn = nil
				a.connected = false
			}
			onDown := a.onDown
			a.mu.Unlock()
			if wasCurrent {
				log.Warn().Err(err).Msg("transport connection lost")
				if onDown != nil {
					onDown(err)
				}
			}
			return
		}
		if frame.Type != FrameMessage {
			continue
		}
		a.dispatch(frame)
	}
}

func (a *Adapter) dispatch(frame Frame) {
	a.mu.Lock()
	handlers := make([]MessageHandler, 0, len(a.subs[frame.Destination]))
	ids := make([]int, 0, len(a.subs[frame.Destination]))
	for id := range a.subs[frame.Destination] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, a.subs[frame.Destination][id])
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(frame.Body)
	}
}
