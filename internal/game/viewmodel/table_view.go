// Package viewmodel builds presentation-ready views from backend snapshots.
// Transform is pure and total: the same snapshot always yields the same
// view, and bad input degrades to defaults instead of failing.
package viewmodel

import (
	"strconv"

	"spadetable/internal/game"
)

// CommunitySlots is the fixed number of board card slots a table renders.
// Slots past the dealt cards are nil so placeholders render deterministically.
const CommunitySlots = 5

// NoDealer marks a snapshot whose dealer position matched no seat.
const NoDealer = -1

// PlayerCard is a decoded card with its display position within a hand.
type PlayerCard struct {
	game.Card
	Idx    int  `json:"idx"`
	FaceUp bool `json:"faceUp"`
}

// PlayerView is one seat as the table renders it.
type PlayerView struct {
	Name          string       `json:"name"`
	WinProbability float64     `json:"probWin"`
	Balance       int          `json:"balance"`
	Bet           int          `json:"bet"`
	Folded        bool         `json:"folded"`
	ActionPending bool         `json:"actionPending"`
	LastAction    string       `json:"lastAction"`
	Cards         []PlayerCard `json:"cards"`
	SeatPosition  int          `json:"seatPosition"`
	Connected     bool         `json:"connected"`
	IsDealer      bool         `json:"isDealer"`
	IsSmallBlind  bool         `json:"isSmallBlind"`
	IsBigBlind    bool         `json:"isBigBlind"`
}

// TableView is the normalized view of a whole table. CommunityCards always
// has exactly CommunitySlots entries; undealt slots are nil.
type TableView struct {
	Players        []PlayerView `json:"players"`
	CommunityCards []*game.Card `json:"communityCards"`
	Pot            int          `json:"pot"`
	DealerIndex    int          `json:"dealerIndex"`
	GameActive     bool         `json:"gameActive"`
	CurrentStage   string       `json:"currentStage"`
	CurrentTurn    int64        `json:"currentPlayerTurn"`
	CurrentBet     int          `json:"currentBet"`
}

// Empty returns the view for "no table" and cleared-auth states: no players,
// five empty board slots, nothing in the pot.
func Empty() TableView {
	return TableView{
		Players:        []PlayerView{},
		CommunityCards: make([]*game.Card, CommunitySlots),
		DealerIndex:    NoDealer,
	}
}

// Transform maps a backend snapshot to a TableView. A nil snapshot yields
// the empty view.
func Transform(snap *game.GameSnapshot) TableView {
	if snap == nil {
		return Empty()
	}

	players := make([]PlayerView, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, transformPlayer(p))
	}

	community := make([]*game.Card, CommunitySlots)
	for i := 0; i < CommunitySlots && i < len(snap.CommunityCards); i++ {
		decoded := game.DecodeCard(snap.CommunityCards[i])
		card := decoded.Card
		community[i] = &card
	}

	dealerIndex := NoDealer
	if snap.DealerPosition != nil {
		for i, p := range players {
			if p.SeatPosition == *snap.DealerPosition {
				dealerIndex = i
				break
			}
		}
	}

	return TableView{
		Players:        players,
		CommunityCards: community,
		Pot:            snap.Pot,
		DealerIndex:    dealerIndex,
		GameActive:     snap.GameActive,
		CurrentStage:   snap.CurrentStage,
		CurrentTurn:    snap.CurrentPlayerTurn,
		CurrentBet:     snap.CurrentBet,
	}
}

func transformPlayer(p game.PlayerSnapshot) PlayerView {
	cards := make([]PlayerCard, 0, len(p.HoleCards))
	for i, token := range p.HoleCards {
		decoded := game.DecodeCard(token)
		cards = append(cards, PlayerCard{Card: decoded.Card, Idx: i, FaceUp: true})
	}

	return PlayerView{
		Name:          playerName(p),
		Balance:       p.Chips,
		Bet:           p.CurrentBet,
		Folded:        p.Status == game.StatusFolded,
		ActionPending: p.PlayerTurn,
		LastAction:    lastActionLabel(p),
		Cards:         cards,
		SeatPosition:  p.SeatPosition,
		Connected:     p.Connected,
		IsDealer:      p.Dealer,
		IsSmallBlind:  p.SmallBlind,
		IsBigBlind:    p.BigBlind,
	}
}

func playerName(p game.PlayerSnapshot) string {
	if p.Username != "" {
		return p.Username
	}
	return "Player " + strconv.Itoa(p.SeatPosition+1)
}

// lastActionLabel is a display hint only; it is not an action log. A folded
// player shows "fold" regardless of earlier bets.
func lastActionLabel(p game.PlayerSnapshot) string {
	if p.Status == game.StatusFolded {
		return "fold"
	}
	if p.CurrentBet > 0 {
		return "bet"
	}
	return ""
}
