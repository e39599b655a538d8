package devserver

import (
	"sync"

	"spadetable/internal/channel"
	"spadetable/internal/game"
)

// demoGame is one scripted two-seat hand. It is not a poker engine: blinds,
// board and winner are fixed so the client stack sees a predictable sequence
// of snapshots.
type demoGame struct {
	mu      sync.Mutex
	tableID int64
	active  bool
	stage   int // index into demoStages, -1 when no hand running
	snap    game.GameSnapshot
}

var demoStages = []string{
	game.StagePreFlop,
	game.StageFlop,
	game.StageTurn,
	game.StageRiver,
	game.StageShowdown,
}

// Card tokens in the backend's wire format: rank word plus suit letter.
var (
	demoBoard     = []string{"TENS", "JACKSC", "QUEENSD", "TWOSH", "NINESC"}
	demoHoleHero  = []string{"ACESH", "KINGSH"}
	demoHoleVilla = []string{"QUEENSH", "QUEENSC"}
)

// communityCount is how much of the board each stage shows.
var communityCount = map[string]int{
	game.StagePreFlop:  0,
	game.StageFlop:     3,
	game.StageTurn:     4,
	game.StageRiver:    5,
	game.StageShowdown: 5,
}

func newDemoGame(tableID int64) *demoGame {
	return &demoGame{tableID: tableID, stage: -1}
}

func (g *demoGame) start(bigBlind int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if bigBlind <= 0 {
		bigBlind = 20
	}
	smallBlind := bigBlind / 2
	dealer := 0
	g.active = true
	g.stage = 0
	g.snap = game.GameSnapshot{
		TableID:           g.tableID,
		GameID:            g.snap.GameID + 1,
		RoundNumber:       g.snap.RoundNumber + 1,
		CurrentStage:      game.StagePreFlop,
		Pot:               smallBlind + bigBlind,
		CurrentBet:        bigBlind,
		CurrentPlayerTurn: 1,
		DealerPosition:    &dealer,
		GameActive:        true,
		Players: []game.PlayerSnapshot{
			{
				PlayerID: 1, Username: "dev-hero", Chips: 1000 - smallBlind,
				CurrentBet: smallBlind, Status: game.StatusActive, Connected: true,
				HasCards: true, SeatPosition: 0, Dealer: true, SmallBlind: true,
				PlayerTurn: true, HoleCards: append([]string(nil), demoHoleHero...),
			},
			{
				PlayerID: 2, Username: "dev-villain", Chips: 1000 - bigBlind,
				CurrentBet: bigBlind, Status: game.StatusActive, Connected: true,
				HasCards: true, SeatPosition: 1, BigBlind: true,
			},
		},
	}
}

// advance moves to the next scripted stage. It reports the new stage and
// whether the hand just passed showdown and is over.
func (g *demoGame) advance() (stage string, over bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || g.stage < 0 {
		return "", true
	}
	g.stage++
	if g.stage >= len(demoStages) {
		g.active = false
		g.stage = -1
		g.snap.GameActive = false
		return "", true
	}
	stage = demoStages[g.stage]
	g.snap.CurrentStage = stage
	g.snap.CommunityCards = append([]string(nil), demoBoard[:communityCount[stage]]...)
	if stage == game.StageShowdown {
		g.snap.Players[1].HoleCards = append([]string(nil), demoHoleVilla...)
	}
	return stage, false
}

func (g *demoGame) end() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.stage = -1
	g.snap.GameActive = false
}

// applyAction records the action and flips the turn to the other seat.
// Chip accounting is approximate; the point is observable state changes.
func (g *demoGame) applyAction(playerID int64, action string, amount int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return false
	}
	var actor *game.PlayerSnapshot
	for i := range g.snap.Players {
		if g.snap.Players[i].PlayerID == playerID {
			actor = &g.snap.Players[i]
		}
	}
	if actor == nil {
		return false
	}
	switch action {
	case channel.ActionFold:
		actor.Status = game.StatusFolded
	case channel.ActionCall:
		owed := g.snap.CurrentBet - actor.CurrentBet
		if owed > 0 {
			actor.Chips -= owed
			actor.CurrentBet = g.snap.CurrentBet
			g.snap.Pot += owed
		}
	case channel.ActionRaise:
		if amount <= g.snap.CurrentBet {
			return false
		}
		added := amount - actor.CurrentBet
		actor.Chips -= added
		actor.CurrentBet = amount
		g.snap.CurrentBet = amount
		g.snap.Pot += added
	case channel.ActionAllIn:
		g.snap.Pot += actor.Chips
		actor.CurrentBet += actor.Chips
		actor.Chips = 0
		actor.Status = game.StatusAllIn
		if actor.CurrentBet > g.snap.CurrentBet {
			g.snap.CurrentBet = actor.CurrentBet
		}
	case channel.ActionCheck:
	default:
		return false
	}
	g.snap.LastAction = action
	g.snap.LastActionPlayer = playerID
	for i := range g.snap.Players {
		p := &g.snap.Players[i]
		p.PlayerTurn = p.PlayerID != playerID && p.Status == game.StatusActive
		if p.PlayerTurn {
			g.snap.CurrentPlayerTurn = p.PlayerID
		}
	}
	return true
}

func (g *demoGame) isActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// snapshot returns a deep copy so callers can marshal it without holding
// the lock.
func (g *demoGame) snapshot() *game.GameSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return nil
	}
	out := g.snap
	out.CommunityCards = append([]string(nil), g.snap.CommunityCards...)
	out.Players = make([]game.PlayerSnapshot, len(g.snap.Players))
	for i, p := range g.snap.Players {
		cp := p
		cp.HoleCards = append([]string(nil), p.HoleCards...)
		out.Players[i] = cp
	}
	if g.snap.DealerPosition != nil {
		d := *g.snap.DealerPosition
		out.DealerPosition = &d
	}
	return &out
}
