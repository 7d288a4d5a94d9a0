package poker

// Special cards are excluded from all numeric computation.
const (
	CardUnknown = "?"
	CardBreak   = "☕"
)

type DeckType string

const (
	DeckFibonacci DeckType = "fibonacci"
	DeckTShirt    DeckType = "tshirt"
	DeckLinear    DeckType = "linear"
)

type Card struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Special bool   `json:"isSpecial,omitempty"`
}

type Deck struct {
	ID    DeckType `json:"id"`
	Name  string   `json:"name"`
	Cards []Card   `json:"cards"`
}

// Decks is the read-only card-set catalog. Every deck ends with the two
// special cards.
var Decks = map[DeckType]Deck{
	DeckFibonacci: {
		ID:   DeckFibonacci,
		Name: "Fibonacci",
		Cards: withSpecials(
			"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89",
		),
	},
	DeckTShirt: {
		ID:    DeckTShirt,
		Name:  "T-Shirt Sizes",
		Cards: withSpecials("XS", "S", "M", "L", "XL", "XXL"),
	},
	DeckLinear: {
		ID:    DeckLinear,
		Name:  "Linear (1-10)",
		Cards: withSpecials("1", "2", "3", "4", "5", "6", "7", "8", "9", "10"),
	},
}

func withSpecials(values ...string) []Card {
	cards := make([]Card, 0, len(values)+2)
	for _, v := range values {
		cards = append(cards, Card{Value: v, Label: v})
	}
	cards = append(cards,
		Card{Value: CardUnknown, Label: CardUnknown, Special: true},
		Card{Value: CardBreak, Label: CardBreak, Special: true},
	)
	return cards
}

// GetDeck resolves a deck type, falling back to fibonacci for unknown or
// empty identifiers.
func GetDeck(dt DeckType) Deck {
	if d, ok := Decks[dt]; ok {
		return d
	}
	return Decks[DeckFibonacci]
}

// IsSpecial reports whether a vote value is one of the reserved tokens.
func IsSpecial(value string) bool {
	return value == CardUnknown || value == CardBreak
}

// Contains reports whether value is a card of the deck.
func (d Deck) Contains(value string) bool {
	for _, c := range d.Cards {
		if c.Value == value {
			return true
		}
	}
	return false
}
