package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spadetable/internal/api"
	"spadetable/internal/auth"
	"spadetable/internal/channel"
	"spadetable/internal/game"
	"spadetable/internal/game/viewmodel"
	"spadetable/internal/poller"
	"spadetable/internal/transport"
)

func activeSnapshot(pot int) *game.GameSnapshot {
	return &game.GameSnapshot{
		TableID:      7,
		GameActive:   true,
		CurrentStage: game.StageFlop,
		Pot:          pot,
		CurrentBet:   100,
		Players: []game.PlayerSnapshot{
			{PlayerID: 1, Username: "me", SeatPosition: 0, Chips: 900, CurrentBet: 40, Status: game.StatusActive, PlayerTurn: true},
			{PlayerID: 2, Username: "other", SeatPosition: 1, Chips: 700, CurrentBet: 100, Status: game.StatusActive},
		},
	}
}

func newBareTable(opts Options) *Table {
	if opts.TableID == 0 {
		opts.TableID = 7
	}
	return NewTable(nil, nil, nil, opts)
}

func TestStalePollLosesToNewerChannelEvent(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})

	pollStarted := time.Now().Add(-500 * time.Millisecond)
	channelSeq := tbl.nextSeq(time.Now())
	pollSeq := tbl.nextSeq(pollStarted)

	tbl.apply(update{seq: channelSeq, snap: activeSnapshot(900), source: "channel"})
	tbl.apply(update{seq: pollSeq, snap: activeSnapshot(100), source: "poll"})

	if got := tbl.View().Pot; got != 900 {
		t.Fatalf("pot = %d, stale poll overwrote channel state", got)
	}
}

func TestNewerPollReplacesOlderChannelState(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})

	tbl.apply(update{seq: tbl.nextSeq(time.Now().Add(-time.Second)), snap: activeSnapshot(100), source: "channel"})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: activeSnapshot(300), source: "poll"})

	if got := tbl.View().Pot; got != 300 {
		t.Fatalf("pot = %d, want 300", got)
	}
}

func TestNilSnapshotMeansWaiting(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: activeSnapshot(100), source: "channel"})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: nil, source: "poll"})

	if tbl.Phase() != PhaseWaiting {
		t.Fatalf("phase = %v, want WAITING", tbl.Phase())
	}
	view := tbl.View()
	if view.Pot != 0 || len(view.Players) != 0 {
		t.Fatalf("expected cleared view, got %+v", view)
	}
	if len(view.CommunityCards) != viewmodel.CommunitySlots {
		t.Fatalf("community slots = %d", len(view.CommunityCards))
	}
}

func TestDerivedFlags(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: activeSnapshot(100), source: "channel"})

	if !tbl.IsMyTurn() {
		t.Fatal("expected my turn")
	}
	if got := tbl.ToCallAmount(); got != 60 {
		t.Fatalf("ToCallAmount = %d, want 60", got)
	}
	if tbl.CanCheck() {
		t.Fatal("cannot check facing a bet")
	}
	if tbl.Phase() != PhaseInHand {
		t.Fatalf("phase = %v, want IN_HAND", tbl.Phase())
	}
}

func TestToCallAmountNeverNegative(t *testing.T) {
	snap := activeSnapshot(100)
	snap.CurrentBet = 20 // I already have 40 in
	tbl := newBareTable(Options{MyPlayerID: 1})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: snap, source: "channel"})

	if got := tbl.ToCallAmount(); got != 0 {
		t.Fatalf("ToCallAmount = %d, want 0", got)
	}
	if !tbl.CanCheck() {
		t.Fatal("CanCheck must be true when nothing is owed")
	}
}

func TestSnapshotEventIngestedFromEnvelope(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})

	raw, _ := json.Marshal(activeSnapshot(450))
	tbl.ingestEvent(channel.Envelope{Type: channel.EventStageChanged, Payload: raw})

	select {
	case u := <-tbl.updates:
		if u.snap == nil || u.snap.Pot != 450 {
			t.Fatalf("unexpected update %+v", u.snap)
		}
	default:
		t.Fatal("snapshot event produced no update")
	}
}

func TestNonSnapshotPayloadIgnored(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})

	tbl.ingestEvent(channel.Envelope{Type: channel.EventPlayerTurn, Payload: json.RawMessage(`12`)})
	tbl.ingestEvent(channel.Envelope{Type: channel.EventPlayerAction, Payload: json.RawMessage(`{"playerId": 2}`)})

	select {
	case u := <-tbl.updates:
		t.Fatalf("payload without game state produced update %+v", u.snap)
	default:
	}
}

func TestAuthErrorClearsViewAndStopsUpdates(t *testing.T) {
	fired := make(chan struct{})
	tbl := newBareTable(Options{MyPlayerID: 1, OnAuthRequired: func() { close(fired) }})
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: activeSnapshot(100), source: "channel"})

	tbl.onPollError(api.ErrAuthRequired)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("OnAuthRequired never fired")
	}
	if !tbl.AuthRequired() {
		t.Fatal("AuthRequired() should report true")
	}
	if view := tbl.View(); len(view.Players) != 0 || view.Pot != 0 {
		t.Fatalf("view not cleared: %+v", view)
	}

	// No demo data, no late updates: state stays cleared.
	tbl.apply(update{seq: tbl.nextSeq(time.Now()), snap: activeSnapshot(999), source: "poll"})
	if view := tbl.View(); view.Pot != 0 {
		t.Fatalf("update accepted after auth failure: %+v", view)
	}
}

func TestHealthDegradesOnlyWhenBothPathsDown(t *testing.T) {
	tbl := newBareTable(Options{MyPlayerID: 1})

	if tbl.Health() != HealthHealthy {
		t.Fatalf("initial health = %v", tbl.Health())
	}

	tbl.mu.Lock()
	tbl.channelUp = false
	tbl.pollOK = true
	tbl.mu.Unlock()
	if tbl.Health() != HealthHealthy {
		t.Fatal("poll-only session should stay healthy")
	}

	tbl.mu.Lock()
	tbl.pollOK = false
	tbl.mu.Unlock()
	if tbl.Health() != HealthDegraded {
		t.Fatal("both paths down should be degraded")
	}
}

type silentStrategy struct{ conn transport.Conn }

func (s silentStrategy) Name() string { return "silent" }
func (s silentStrategy) Dial(ctx context.Context, baseURL string, cred *auth.Credential) (transport.Conn, error) {
	return s.conn, nil
}

type idleConn struct{ closed chan struct{} }

func (c *idleConn) ReadFrame() (transport.Frame, error) {
	<-c.closed
	return transport.Frame{}, context.Canceled
}
func (c *idleConn) WriteFrame(transport.Frame) error { return nil }
func (c *idleConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestJoinPollLeaveLifecycle(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"gameState": activeSnapshot(42),
		})
	}))
	defer srv.Close()

	cred := auth.NewCredential("tok")
	adapter := transport.NewAdapter("ws://unused/ws", cred, time.Second, silentStrategy{conn: &idleConn{closed: make(chan struct{})}})
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer adapter.Disconnect()

	ch := channel.New(adapter)
	p := poller.New(api.NewClient(srv.URL+"/api", cred, time.Second))
	tbl := NewTable(adapter, ch, p, Options{TableID: 7, MyPlayerID: 1, PollInterval: 20 * time.Millisecond})

	if err := tbl.Join(context.Background()); err != nil {
		t.Fatalf("Join: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for tbl.View().Pot != 42 {
		select {
		case <-deadline:
			t.Fatalf("poll snapshot never applied, view = %+v", tbl.View())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if tbl.Phase() != PhaseInHand {
		t.Fatalf("phase = %v, want IN_HAND", tbl.Phase())
	}

	tbl.Leave()
	if tbl.Phase() != PhaseNoTable {
		t.Fatalf("phase after leave = %v", tbl.Phase())
	}

	// Polling must stop with the session. A tick already in flight at
	// cancel time may still land, so let it drain first.
	time.Sleep(50 * time.Millisecond)
	settled := polls.Load()
	time.Sleep(100 * time.Millisecond)
	if polls.Load() != settled {
		t.Fatalf("poller still running after Leave: %d -> %d", settled, polls.Load())
	}

	tbl.Leave() // idempotent
}
