package game

import "testing"

func TestDecodeCardRankAndSuitLetter(t *testing.T) {
	cases := []struct {
		token string
		want  Card
	}{
		{"SEVENSC", Card{Rank: RankSeven, Suit: SuitClubs}},
		{"TENC", Card{Rank: RankTen, Suit: SuitClubs}},
		{"ACESH", Card{Rank: RankAce, Suit: SuitHearts}},
		{"KINGSD", Card{Rank: RankKing, Suit: SuitDiamonds}},
		{"QUEENSS", Card{Rank: RankQueen, Suit: SuitSpades}},
		{"TWOSH", Card{Rank: RankTwo, Suit: SuitHearts}},
	}
	for _, tc := range cases {
		got := DecodeCard(tc.token)
		if got.Card != tc.want {
			t.Fatalf("DecodeCard(%q) = %+v, want %+v", tc.token, got.Card, tc.want)
		}
		if !got.Confident {
			t.Fatalf("DecodeCard(%q) should be a confident parse", tc.token)
		}
	}
}

func TestDecodeCardSingularRankBeforeSuitLetter(t *testing.T) {
	// The backend also emits singular rank words; those miss the token
	// table and go through the heuristic, so they are not confident.
	got := DecodeCard("SEVENC")
	if got.Card != (Card{Rank: RankSeven, Suit: SuitClubs}) {
		t.Fatalf("DecodeCard(SEVENC) = %+v", got.Card)
	}
	if got.Confident {
		t.Fatal("heuristic rank should not be confident")
	}
}

func TestDecodeCardTrailingSIsSpades(t *testing.T) {
	// "TENS" ends in a suit letter, so it reads as ten of spades even
	// though the backend meant it as a bare rank word.
	got := DecodeCard("TENS")
	if got.Card != (Card{Rank: RankTen, Suit: SuitSpades}) {
		t.Fatalf("DecodeCard(TENS) = %+v", got.Card)
	}
	if !got.Confident {
		t.Fatal("TEN is in the token table; parse should be confident")
	}
}

func TestDecodeCardRankOnlyDefaultsToClubs(t *testing.T) {
	cases := []struct {
		token string
		rank  string
	}{
		{"SEVEN", RankSeven},
		{"THREE", RankThree},
		{"NINE", RankNine},
	}
	for _, tc := range cases {
		got := DecodeCard(tc.token)
		if got.Rank != tc.rank || got.Suit != SuitClubs {
			t.Fatalf("DecodeCard(%q) = %+v, want %s of clubs", tc.token, got.Card, tc.rank)
		}
	}
}

func TestDecodeCardMalformedNeverFails(t *testing.T) {
	for _, token := range []string{"", "ZZZ", "7X7", "___", "xyz"} {
		got := DecodeCard(token)
		if got.Rank != RankTwo || got.Suit != SuitClubs {
			t.Fatalf("DecodeCard(%q) = %+v, want default two of clubs", token, got.Card)
		}
		if got.Confident {
			t.Fatalf("DecodeCard(%q) should not be confident", token)
		}
	}
}
