package channel

import (
	"encoding/json"
	"strconv"
)

// Event type tags carried in Envelope.Type. Unrecognized tags are still
// delivered to registered handlers; none of them trigger built-in behavior.
const (
	EventGameStarted        = "GAME_STARTED"
	EventGameEnded          = "GAME_ENDED"
	EventRoundStarted       = "ROUND_STARTED"
	EventRoundEnded         = "ROUND_ENDED"
	EventStageChanged       = "STAGE_CHANGED"
	EventPlayerAction       = "PLAYER_ACTION"
	EventPlayerTurn         = "PLAYER_TURN"
	EventPlayerConnected    = "PLAYER_CONNECTED"
	EventPlayerDisconnected = "PLAYER_DISCONNECTED"
	EventCardsDealt         = "CARDS_DEALT"
	EventCommunityCards     = "COMMUNITY_CARDS_REVEALED"
	EventWinnerDeclared     = "WINNER_DECLARED"
	EventPotDistributed     = "POT_DISTRIBUTED"
	EventError              = "ERROR"
)

// Action verbs accepted by the action destination.
const (
	ActionFold  = "FOLD"
	ActionCheck = "CHECK"
	ActionCall  = "CALL"
	ActionRaise = "RAISE"
	ActionAllIn = "ALL_IN"
)

// Envelope is the shape of every event on a table topic.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Message string          `json:"message,omitempty"`
}

// ActionMessage is published to the per-table action destination.
type ActionMessage struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// Destination naming, shared with the backend.
func TableTopic(tableID int64) string {
	return "tables/" + strconv.FormatInt(tableID, 10)
}

func connectDest(tableID int64) string {
	return "game/" + strconv.FormatInt(tableID, 10) + "/connect"
}

func disconnectDest(tableID int64) string {
	return "game/" + strconv.FormatInt(tableID, 10) + "/disconnect"
}

func actionDest(tableID int64) string {
	return "game/" + strconv.FormatInt(tableID, 10) + "/action"
}

// ErrorQueue is the per-connection destination for personal error events.
const ErrorQueue = "user/queue/errors"
