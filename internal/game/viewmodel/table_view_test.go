package viewmodel

import (
	"reflect"
	"testing"

	"spadetable/internal/game"
)

func intPtr(v int) *int { return &v }

func threePlayerSnapshot() *game.GameSnapshot {
	return &game.GameSnapshot{
		TableID:        7,
		GameID:         40,
		CurrentStage:   game.StageFlop,
		GameActive:     true,
		Pot:            300,
		CurrentBet:     50,
		DealerPosition: intPtr(1),
		CommunityCards: []string{"SEVENC", "TENS"},
		Players: []game.PlayerSnapshot{
			{PlayerID: 1, Username: "alice", SeatPosition: 0, Chips: 900, CurrentBet: 50, Status: game.StatusActive, Connected: true, Dealer: false},
			{PlayerID: 2, Username: "bob", SeatPosition: 1, Chips: 1200, CurrentBet: 0, Status: game.StatusActive, Connected: true, Dealer: true, PlayerTurn: true, HoleCards: []string{"ACESH", "KINGSD"}},
			{PlayerID: 3, Username: "", SeatPosition: 2, Chips: 0, CurrentBet: 0, Status: game.StatusFolded, Connected: false},
		},
	}
}

func TestTransformCommunityAlwaysFiveSlots(t *testing.T) {
	view := Transform(threePlayerSnapshot())

	if len(view.CommunityCards) != CommunitySlots {
		t.Fatalf("community slots = %d, want %d", len(view.CommunityCards), CommunitySlots)
	}
	if view.CommunityCards[0] == nil || *view.CommunityCards[0] != (game.Card{Rank: game.RankSeven, Suit: game.SuitClubs}) {
		t.Fatalf("slot 0 = %+v, want seven of clubs", view.CommunityCards[0])
	}
	// "TENS" ends in a suit letter, so it reads as ten of spades.
	if view.CommunityCards[1] == nil || *view.CommunityCards[1] != (game.Card{Rank: game.RankTen, Suit: game.SuitSpades}) {
		t.Fatalf("slot 1 = %+v, want ten of spades", view.CommunityCards[1])
	}
	for i := 2; i < CommunitySlots; i++ {
		if view.CommunityCards[i] != nil {
			t.Fatalf("slot %d should be empty, got %+v", i, view.CommunityCards[i])
		}
	}
}

func TestTransformUnparseableTokenStillRendersACard(t *testing.T) {
	snap := threePlayerSnapshot()
	snap.CommunityCards = []string{"???"}

	view := Transform(snap)
	// Present-but-unparseable decodes to the default card; only absent
	// slots are nil.
	if view.CommunityCards[0] == nil || *view.CommunityCards[0] != (game.Card{Rank: game.RankTwo, Suit: game.SuitClubs}) {
		t.Fatalf("slot 0 = %+v, want default two of clubs", view.CommunityCards[0])
	}
	if view.CommunityCards[1] != nil {
		t.Fatalf("slot 1 should be empty, got %+v", view.CommunityCards[1])
	}
}

func TestTransformDealerIndexBySeatPosition(t *testing.T) {
	view := Transform(threePlayerSnapshot())
	if view.DealerIndex != 1 {
		t.Fatalf("DealerIndex = %d, want 1", view.DealerIndex)
	}
}

func TestTransformDealerAbsentWhenNoSeatMatches(t *testing.T) {
	snap := threePlayerSnapshot()
	snap.DealerPosition = intPtr(9)
	if got := Transform(snap).DealerIndex; got != NoDealer {
		t.Fatalf("DealerIndex = %d, want NoDealer", got)
	}

	snap.DealerPosition = nil
	if got := Transform(snap).DealerIndex; got != NoDealer {
		t.Fatalf("DealerIndex with nil position = %d, want NoDealer", got)
	}
}

func TestTransformPlayerViews(t *testing.T) {
	view := Transform(threePlayerSnapshot())
	if len(view.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(view.Players))
	}

	alice := view.Players[0]
	if alice.LastAction != "bet" || alice.Bet != 50 || alice.Folded {
		t.Fatalf("unexpected alice view: %+v", alice)
	}

	bob := view.Players[1]
	if !bob.ActionPending || !bob.IsDealer || bob.LastAction != "" {
		t.Fatalf("unexpected bob view: %+v", bob)
	}
	if len(bob.Cards) != 2 || bob.Cards[0].Idx != 0 || bob.Cards[1].Idx != 1 {
		t.Fatalf("unexpected bob cards: %+v", bob.Cards)
	}
	if bob.Cards[0].Card != (game.Card{Rank: game.RankAce, Suit: game.SuitHearts}) {
		t.Fatalf("bob card 0 = %+v", bob.Cards[0].Card)
	}

	folded := view.Players[2]
	if !folded.Folded || folded.LastAction != "fold" || folded.Connected {
		t.Fatalf("unexpected folded view: %+v", folded)
	}
	if folded.Name != "Player 3" {
		t.Fatalf("missing username should fall back to seat name, got %q", folded.Name)
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	snap := threePlayerSnapshot()
	first := Transform(snap)
	second := Transform(snap)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Transform is not stable across identical inputs")
	}
}

func TestTransformNilSnapshotIsEmptyView(t *testing.T) {
	view := Transform(nil)
	if len(view.Players) != 0 || view.Pot != 0 || view.GameActive {
		t.Fatalf("unexpected empty view: %+v", view)
	}
	if len(view.CommunityCards) != CommunitySlots {
		t.Fatalf("empty view community slots = %d", len(view.CommunityCards))
	}
	if view.DealerIndex != NoDealer {
		t.Fatalf("empty view DealerIndex = %d", view.DealerIndex)
	}
}
