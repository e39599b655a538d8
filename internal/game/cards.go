package game

import "strings"

// Display rank and suit names used by the view layer.
const (
	RankTwo   = "2"
	RankThree = "3"
	RankFour  = "4"
	RankFive  = "5"
	RankSix   = "6"
	RankSeven = "7"
	RankEight = "8"
	RankNine  = "9"
	RankTen   = "10"
	RankJack  = "jack"
	RankQueen = "queen"
	RankKing  = "king"
	RankAce   = "ace"

	SuitClubs    = "clubs"
	SuitDiamonds = "diamonds"
	SuitHearts   = "hearts"
	SuitSpades   = "spades"
)

// Card is a normalized rank/suit pair.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// DecodedCard tags the decode result: Confident is true when the rank came
// straight from the token table, false when a heuristic or the final default
// filled it in. Rendering treats both the same; diagnostics don't have to.
type DecodedCard struct {
	Card
	Confident bool
}

// rankWords maps the backend's rank spellings to display ranks. The backend
// is inconsistent: most ranks arrive as plural words ("SEVENS"), ten also
// shows up singular ("TEN").
var rankWords = map[string]string{
	"TWOS":   RankTwo,
	"THREES": RankThree,
	"FOURS":  RankFour,
	"FIVES":  RankFive,
	"SIXES":  RankSix,
	"SEVENS": RankSeven,
	"EIGHTS": RankEight,
	"NINES":  RankNine,
	"TENS":   RankTen,
	"TEN":    RankTen,
	"JACKS":  RankJack,
	"QUEENS": RankQueen,
	"KINGS":  RankKing,
	"ACES":   RankAce,
}

var suitLetters = map[byte]string{
	'C': SuitClubs,
	'D': SuitDiamonds,
	'H': SuitHearts,
	'S': SuitSpades,
}

// DecodeCard turns a backend card token into a normalized card. It is total:
// malformed tokens come back as the two of clubs rather than an error, so a
// bad token can never abort a snapshot transform. A trailing C/D/H/S is read
// as the suit (this means "TENS" decodes as ten of spades, matching the
// backend's own reference client); tokens without one default to clubs.
func DecodeCard(token string) DecodedCard {
	if token == "" {
		return DecodedCard{Card: Card{Rank: RankTwo, Suit: SuitClubs}}
	}

	if suit, ok := suitLetters[token[len(token)-1]]; ok {
		rank, confident := decodeRank(token[:len(token)-1])
		return DecodedCard{Card: Card{Rank: rank, Suit: suit}, Confident: confident}
	}
	rank, confident := decodeRank(token)
	return DecodedCard{Card: Card{Rank: rank, Suit: SuitClubs}, Confident: confident}
}

func decodeRank(word string) (string, bool) {
	if rank, ok := rankWords[word]; ok {
		return rank, true
	}
	return rankHeuristic(word), false
}

// rankHeuristic salvages a rank from tokens the table doesn't know, e.g.
// "SEVEN" (singular) or "KING" after the suit letter is stripped. Checked
// highest rank first, word or single-letter spelling.
func rankHeuristic(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.Contains(w, "ace"), strings.Contains(w, "a"):
		return RankAce
	case strings.Contains(w, "king"), strings.Contains(w, "k"):
		return RankKing
	case strings.Contains(w, "queen"), strings.Contains(w, "q"):
		return RankQueen
	case strings.Contains(w, "jack"), strings.Contains(w, "j"):
		return RankJack
	case strings.Contains(w, "ten"), w == "10":
		return RankTen
	case strings.Contains(w, "nine"), w == "9":
		return RankNine
	case strings.Contains(w, "eight"), w == "8":
		return RankEight
	case strings.Contains(w, "seven"), w == "7":
		return RankSeven
	case strings.Contains(w, "six"), w == "6":
		return RankSix
	case strings.Contains(w, "five"), w == "5":
		return RankFive
	case strings.Contains(w, "four"), w == "4":
		return RankFour
	case strings.Contains(w, "three"), w == "3":
		return RankThree
	case strings.Contains(w, "two"), w == "2":
		return RankTwo
	default:
		return RankTwo
	}
}
