// Package channel layers the per-table game event protocol on top of the
// transport adapter: join/leave control messages, action publishes, and an
// event dispatcher keyed by event type.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"spadetable/internal/transport"
)

var (
	// ErrNotConnected mirrors the transport precondition: callers are
	// expected to check adapter connectivity before joining.
	ErrNotConnected = errors.New("channel: not connected")

	// ErrAmountRequired is returned for a raise without an amount.
	ErrAmountRequired = errors.New("channel: amount required")
)

// Handler receives every envelope whose type matched the registration.
type Handler func(event Envelope, tableID int64)

type Client struct {
	adapter *transport.Adapter

	mu        sync.Mutex
	handlers  map[string][]Handler
	tableSubs map[int64]*transport.Subscription
	errorSub  *transport.Subscription
}

func New(adapter *transport.Adapter) *Client {
	return &Client{
		adapter:   adapter,
		handlers:  map[string][]Handler{},
		tableSubs: map[int64]*transport.Subscription{},
	}
}

// On registers a handler for an event type. Handlers for the same type run
// in registration order; a panicking handler is logged and skipped so it
// can never block the others.
func (c *Client) On(eventType string, handler Handler) {
	c.mu.Lock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
	c.mu.Unlock()
}

// JoinTable announces the player on the table's control destination and
// subscribes to its broadcast topic plus the personal error queue. Joining
// twice is a no-op.
func (c *Client) JoinTable(tableID int64) error {
	if !c.adapter.Connected() {
		log.Warn().Int64("table", tableID).Msg("join requested while disconnected")
		return ErrNotConnected
	}

	c.mu.Lock()
	_, joined := c.tableSubs[tableID]
	c.mu.Unlock()
	if joined {
		return nil
	}

	if err := c.adapter.Publish(connectDest(tableID), struct{}{}); err != nil {
		return fmt.Errorf("join table %d: %w", tableID, err)
	}

	sub, err := c.adapter.Subscribe(TableTopic(tableID), func(body json.RawMessage) {
		c.dispatch(tableID, body)
	})
	if err != nil {
		return fmt.Errorf("subscribe table %d: %w", tableID, err)
	}

	c.mu.Lock()
	c.tableSubs[tableID] = sub
	needErrorSub := c.errorSub == nil
	c.mu.Unlock()

	if needErrorSub {
		errSub, err := c.adapter.Subscribe(ErrorQueue, func(body json.RawMessage) {
			c.dispatch(0, body)
		})
		if err != nil {
			log.Warn().Err(err).Msg("error queue subscription failed")
		} else {
			c.mu.Lock()
			c.errorSub = errSub
			c.mu.Unlock()
		}
	}
	return nil
}

// SendAction publishes a player action to the table's action destination.
func (c *Client) SendAction(tableID int64, action string, amount int) error {
	if !c.adapter.Connected() {
		return ErrNotConnected
	}
	if action == ActionRaise && amount <= 0 {
		return ErrAmountRequired
	}
	msg := ActionMessage{Action: action}
	if action == ActionRaise || action == ActionAllIn {
		msg.Amount = amount
	}
	return c.adapter.Publish(actionDest(tableID), msg)
}

// LeaveTable sends the disconnect control message and drops the table
// subscription. Idempotent: leaving a table that was never joined does
// nothing.
func (c *Client) LeaveTable(tableID int64) {
	c.mu.Lock()
	sub := c.tableSubs[tableID]
	delete(c.tableSubs, tableID)
	c.mu.Unlock()

	if c.adapter.Connected() {
		if err := c.adapter.Publish(disconnectDest(tableID), struct{}{}); err != nil {
			log.Debug().Err(err).Int64("table", tableID).Msg("disconnect publish failed")
		}
	}
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Close drops every subscription this client owns. The transport connection
// itself belongs to the adapter's owner.
func (c *Client) Close() {
	c.mu.Lock()
	subs := make([]*transport.Subscription, 0, len(c.tableSubs)+1)
	for id, sub := range c.tableSubs {
		subs = append(subs, sub)
		delete(c.tableSubs, id)
	}
	if c.errorSub != nil {
		subs = append(subs, c.errorSub)
		c.errorSub = nil
	}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (c *Client) dispatch(tableID int64, body json.RawMessage) {
	var event Envelope
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn().Err(err).Int64("table", tableID).Msg("undecodable event dropped")
		return
	}

	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[event.Type]))
	copy(handlers, c.handlers[event.Type])
	c.mu.Unlock()

	for _, h := range handlers {
		invoke(h, event, tableID)
	}
}

// invoke isolates one handler so its panic cannot take out the dispatch
// loop or the handlers registered after it.
func invoke(h Handler, event Envelope, tableID int64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", event.Type).Msg("event handler panicked")
		}
	}()
	h(event, tableID)
}
