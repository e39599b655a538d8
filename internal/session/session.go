// Package session ties the realtime channel and the poller to one table: two
// producers feed a single consumer that applies snapshots newest-first and
// holds the resulting view state for the presentation layer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"spadetable/internal/api"
	"spadetable/internal/channel"
	"spadetable/internal/game"
	"spadetable/internal/game/viewmodel"
	"spadetable/internal/poller"
	"spadetable/internal/transport"
)

// Health is orthogonal to the table phase: a degraded session still shows
// its last accepted state.
type Health int

const (
	HealthHealthy Health = iota
	HealthDegraded
)

func (h Health) String() string {
	if h == HealthDegraded {
		return "DEGRADED"
	}
	return "HEALTHY"
}

// Phase is the coarse table state reconstructed from discrete snapshots.
type Phase int

const (
	PhaseNoTable Phase = iota
	PhaseWaiting
	PhaseInHand
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WAITING"
	case PhaseInHand:
		return "IN_HAND"
	default:
		return "NO_TABLE"
	}
}

// update is one inbound snapshot, tagged for the newest-wins comparison.
// A nil snapshot is meaningful: the table exists but has no active game.
type update struct {
	seq    ulid.ULID
	snap   *game.GameSnapshot
	source string
}

type Options struct {
	TableID    int64
	MyPlayerID int64
	// PollInterval defaults to poller.DefaultInterval.
	PollInterval time.Duration
	// OnAuthRequired fires once when either path reports a 401. The view
	// has already been cleared when it runs.
	OnAuthRequired func()
}

// Table is the view state holder for one table subscription.
type Table struct {
	opts    Options
	adapter *transport.Adapter
	channel *channel.Client
	runner  *poller.Runner

	seqMu   sync.Mutex
	entropy *ulid.MonotonicEntropy

	updates chan update
	cancel  context.CancelFunc
	stopped chan struct{}

	mu         sync.RWMutex
	started    bool
	left       bool
	view       viewmodel.TableView
	snap       *game.GameSnapshot
	lastSeq    ulid.ULID
	hasSeq     bool
	phase      Phase
	channelUp  bool
	pollOK     bool
	authNeeded bool
}

func NewTable(adapter *transport.Adapter, ch *channel.Client, p *poller.Poller, opts Options) *Table {
	t := &Table{
		opts:    opts,
		adapter: adapter,
		channel: ch,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		updates: make(chan update, 16),
		view:    viewmodel.Empty(),
		phase:   PhaseNoTable,
		pollOK:  true,
	}
	t.runner = poller.NewRunner(p, opts.PollInterval, t.ingestPoll, t.onPollError)
	return t
}

// Join subscribes to the table's channel topic and starts the polling
// schedule. The channel is best-effort: if the adapter is down the session
// runs polling-only and the health flag reflects it.
func (t *Table) Join(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("session: already joined")
	}
	t.started = true
	t.phase = PhaseWaiting
	t.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.stopped = make(chan struct{})

	t.registerHandlers()
	t.adapter.OnDown(func(err error) {
		t.mu.Lock()
		t.channelUp = false
		t.mu.Unlock()
		log.Warn().Err(err).Int64("table", t.opts.TableID).Msg("channel lost, continuing on poll only")
	})

	if err := t.channel.JoinTable(t.opts.TableID); err != nil {
		log.Warn().Err(err).Int64("table", t.opts.TableID).Msg("channel join failed, polling only")
	} else {
		t.mu.Lock()
		t.channelUp = true
		t.mu.Unlock()
	}

	go t.consume(runCtx)
	go func() {
		t.runner.Run(runCtx, t.opts.TableID)
	}()
	return nil
}

// Leave stops the poll schedule and the channel subscription, then clears
// view state. Cancellation strictly precedes the state mutation so no
// in-flight update lands on a table the caller already left.
func (t *Table) Leave() {
	t.mu.Lock()
	if t.left || !t.started {
		t.mu.Unlock()
		return
	}
	t.left = true
	t.mu.Unlock()

	t.cancel()
	<-t.stopped
	t.channel.LeaveTable(t.opts.TableID)

	t.mu.Lock()
	t.view = viewmodel.Empty()
	t.snap = nil
	t.phase = PhaseNoTable
	t.mu.Unlock()
}

// Close releases everything the session owns. Safe after Leave.
func (t *Table) Close() {
	t.Leave()
	t.channel.Close()
}

// View returns the latest accepted view model.
func (t *Table) View() viewmodel.TableView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.view
}

func (t *Table) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

func (t *Table) Health() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.channelUp || t.pollOK {
		return HealthHealthy
	}
	return HealthDegraded
}

// AuthRequired reports whether a 401 ended this session's data flow.
func (t *Table) AuthRequired() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.authNeeded
}

// IsMyTurn reports whether the configured player holds the pending action.
func (t *Table) IsMyTurn() bool {
	me := t.myPlayer()
	return me != nil && me.PlayerTurn
}

// ToCallAmount is how much the configured player must add to match the
// current bet, never negative.
func (t *Table) ToCallAmount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snap == nil {
		return 0
	}
	for _, p := range t.snap.Players {
		if p.PlayerID == t.opts.MyPlayerID {
			if due := t.snap.CurrentBet - p.CurrentBet; due > 0 {
				return due
			}
			return 0
		}
	}
	return 0
}

func (t *Table) CanCheck() bool {
	return t.ToCallAmount() == 0
}

func (t *Table) myPlayer() *game.PlayerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snap == nil {
		return nil
	}
	for i := range t.snap.Players {
		if t.snap.Players[i].PlayerID == t.opts.MyPlayerID {
			p := t.snap.Players[i]
			return &p
		}
	}
	return nil
}

// registerHandlers feeds channel events into the consumer. Only events
// whose payload is a full snapshot move state; the rest are refreshed by
// the next poll.
func (t *Table) registerHandlers() {
	snapshotEvents := []string{
		channel.EventGameStarted,
		channel.EventStageChanged,
		channel.EventPlayerAction,
		channel.EventCommunityCards,
		channel.EventRoundStarted,
	}
	for _, eventType := range snapshotEvents {
		t.channel.On(eventType, func(event channel.Envelope, tableID int64) {
			if tableID != t.opts.TableID {
				return
			}
			t.ingestEvent(event)
		})
	}
	t.channel.On(channel.EventGameEnded, func(event channel.Envelope, tableID int64) {
		if tableID != t.opts.TableID {
			return
		}
		// Hand is over: back to WAITING with an empty board.
		t.offer(update{seq: t.nextSeq(time.Now()), snap: nil, source: "channel"})
	})
}

func (t *Table) ingestEvent(event channel.Envelope) {
	if len(event.Payload) == 0 {
		return
	}
	var snap game.GameSnapshot
	if err := json.Unmarshal(event.Payload, &snap); err != nil {
		log.Debug().Str("event", event.Type).Msg("event payload is not a snapshot, waiting for poll")
		return
	}
	if snap.TableID != 0 && snap.TableID != t.opts.TableID {
		return
	}
	if len(snap.Players) == 0 && !snap.GameActive {
		// Payloads like a bare player id decode to an empty struct;
		// they carry no state.
		return
	}
	t.offer(update{seq: t.nextSeq(time.Now()), snap: &snap, source: "channel"})
}

// ingestPoll tags the snapshot with the poll's request time, so a response
// that crossed a newer channel event on the wire loses the seq comparison.
func (t *Table) ingestPoll(snap *game.GameSnapshot, requestedAt time.Time) {
	t.mu.Lock()
	t.pollOK = true
	t.mu.Unlock()
	t.offer(update{seq: t.nextSeq(requestedAt), snap: snap, source: "poll"})
}

func (t *Table) onPollError(err error) {
	if errors.Is(err, api.ErrAuthRequired) {
		t.mu.Lock()
		t.authNeeded = true
		t.view = viewmodel.Empty()
		t.snap = nil
		t.phase = PhaseNoTable
		cb := t.opts.OnAuthRequired
		t.mu.Unlock()
		log.Warn().Int64("table", t.opts.TableID).Msg("authentication required, session stopped")
		if cb != nil {
			cb()
		}
		return
	}
	t.mu.Lock()
	t.pollOK = false
	t.mu.Unlock()
	log.Debug().Err(err).Int64("table", t.opts.TableID).Msg("poll failed")
}

func (t *Table) nextSeq(at time.Time) ulid.ULID {
	t.seqMu.Lock()
	defer t.seqMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), t.entropy)
}

func (t *Table) offer(u update) {
	select {
	case t.updates <- u:
	default:
		// Consumer is behind; dropping the oldest keeps latest-wins intact.
		select {
		case <-t.updates:
		default:
		}
		select {
		case t.updates <- u:
		default:
		}
	}
}

// consume is the single writer of view state: full replace, newest sequence
// wins, stale updates dropped.
func (t *Table) consume(ctx context.Context) {
	defer close(t.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-t.updates:
			t.apply(u)
		}
	}
}

func (t *Table) apply(u update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.authNeeded || t.left {
		return
	}
	if t.hasSeq && u.seq.Compare(t.lastSeq) < 0 {
		log.Debug().Str("source", u.source).Msg("stale snapshot discarded")
		return
	}
	t.lastSeq = u.seq
	t.hasSeq = true

	t.snap = u.snap
	t.view = viewmodel.Transform(u.snap)
	switch {
	case u.snap == nil:
		t.phase = PhaseWaiting
	case u.snap.GameActive:
		t.phase = PhaseInHand
	default:
		t.phase = PhaseWaiting
	}
}
