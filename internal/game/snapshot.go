// Package game defines the wire-level snapshot model the backend produces
// and the card-token decoding shared by every consumer. The backend owns all
// game rules; nothing here deals, evaluates, or bets.
package game

// Stage values as sent in GameSnapshot.CurrentStage.
const (
	StagePreFlop  = "PRE_FLOP"
	StageFlop     = "FLOP"
	StageTurn     = "TURN"
	StageRiver    = "RIVER"
	StageShowdown = "SHOWDOWN"
)

// Player status values as sent in PlayerSnapshot.Status.
const (
	StatusActive     = "ACTIVE"
	StatusFolded     = "FOLDED"
	StatusAllIn      = "ALL_IN"
	StatusSittingOut = "SITTING_OUT"
)

// GameSnapshot is the backend's complete description of a table at one
// instant. It is read-only to the client: every accepted snapshot fully
// replaces the previous one.
type GameSnapshot struct {
	TableID           int64            `json:"tableId"`
	GameID            int64            `json:"gameId"`
	RoundNumber       int              `json:"roundNumber"`
	CurrentStage      string           `json:"currentStage"`
	Players           []PlayerSnapshot `json:"players"`
	CommunityCards    []string         `json:"communityCards"`
	Pot               int              `json:"pot"`
	CurrentBet        int              `json:"currentBet"`
	CurrentPlayerTurn int64            `json:"currentPlayerTurn"`
	DealerPosition    *int             `json:"dealerPosition"`
	SmallBlindPos     *int             `json:"smallBlindPosition"`
	BigBlindPos       *int             `json:"bigBlindPosition"`
	GameActive        bool             `json:"gameActive"`
	LastActionPlayer  int64            `json:"lastActionPlayerId"`
	LastAction        string           `json:"lastAction"`
}

// PlayerSnapshot describes one seat. HoleCards is only populated for the
// viewing player, or for everyone at showdown.
type PlayerSnapshot struct {
	PlayerID     int64    `json:"playerId"`
	Username     string   `json:"username"`
	Chips        int      `json:"chips"`
	CurrentBet   int      `json:"currentBet"`
	Status       string   `json:"status"`
	Connected    bool     `json:"connected"`
	HasCards     bool     `json:"hasCards"`
	SeatPosition int      `json:"seatPosition"`
	Dealer       bool     `json:"dealer"`
	SmallBlind   bool     `json:"smallBlind"`
	BigBlind     bool     `json:"bigBlind"`
	PlayerTurn   bool     `json:"playerTurn"`
	HoleCards    []string `json:"holeCards"`
}
