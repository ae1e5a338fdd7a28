package timewarp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/five82/cranky/internal/anki"
)

// UndoLabel names the host undo step of Apply.
const UndoLabel = "Time Warp"

// DefaultFilteredDeck is the deck CreateFilteredDeck builds by default.
const DefaultFilteredDeck = "Simulated Timeline"

// filteredLimit lets every simulated card into the filtered deck.
const filteredLimit = 1000

const (
	KindNew    = "new"
	KindReview = "review"
)

// CardData is one card's scheduling state during a simulation.
type CardData struct {
	CardID      int64
	Type        string
	Due         int
	OriginalDue int
	Interval    int
	// Timeline has one entry per day of the window; the day the card falls
	// due on is true.
	Timeline []bool
}

// IsReview reports whether the simulation moves this card.
func (c CardData) IsReview() bool {
	return c.Type == KindReview
}

// Params controls the transform.
type Params struct {
	StretchPct       float64
	Shift            int
	HorizonPast      int
	HorizonFuture    int
	CollapseOverdues bool
}

// DefaultParams leaves due dates untouched over a 30 day past, 90 day
// future window.
func DefaultParams() Params {
	return Params{HorizonPast: 30, HorizonFuture: 90}
}

// Window is the number of days in the timeline.
func (p Params) Window() int {
	return p.HorizonPast + p.HorizonFuture
}

// Load reads every unsuspended card matching deck and tags.
func Load(ctx context.Context, store anki.Store, deck string, tags []string) ([]CardData, error) {
	ids, err := store.FindCards(ctx, anki.Query{Deck: deck, Tags: tags, ExcludeSuspended: true})
	if err != nil {
		return nil, fmt.Errorf("find cards: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cards, err := store.CardsInfo(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cards info: %w", err)
	}
	out := make([]CardData, 0, len(cards))
	for _, c := range cards {
		if c.Suspended() {
			continue
		}
		out = append(out, CardData{
			CardID:      c.ID,
			Type:        c.Kind(),
			Due:         c.Due,
			OriginalDue: c.Due,
			Interval:    c.Interval,
		})
	}
	return out, nil
}

// Simulate returns a transformed copy of cards. Review cards due in the
// future are stretched away from today by StretchPct percent then moved by
// Shift days; overdue cards are moved by Shift from their due day, or from
// today when CollapseOverdues is set. New cards keep their due value.
func Simulate(cards []CardData, today int, p Params) []CardData {
	stretch := 1 + p.StretchPct/100
	window := p.Window()
	out := make([]CardData, len(cards))
	for i, c := range cards {
		c.OriginalDue = c.Due
		c.Timeline = make([]bool, window)
		if c.IsReview() {
			relative := c.Due - today
			switch {
			case relative >= 0:
				c.Due = today + int(float64(relative)*stretch+float64(p.Shift))
			case p.CollapseOverdues:
				c.Due = today + p.Shift
			default:
				c.Due += p.Shift
			}
			if idx := c.Due - today + p.HorizonPast; idx >= 0 && idx < window {
				c.Timeline[idx] = true
			}
		}
		out[i] = c
	}
	return out
}

// DueMatrix stacks the timelines of cards, one row per card.
func DueMatrix(cards []CardData) [][]bool {
	matrix := make([][]bool, len(cards))
	for i, c := range cards {
		matrix[i] = c.Timeline
	}
	return matrix
}

// ColumnSums counts the true cells of each column of matrix, using the
// width of the first row.
func ColumnSums(matrix [][]bool) []int {
	if len(matrix) == 0 {
		return nil
	}
	counts := make([]int, len(matrix[0]))
	for _, row := range matrix {
		for i := range counts {
			if i < len(row) && row[i] {
				counts[i]++
			}
		}
	}
	return counts
}

// Histogram is ColumnSums over the cards' timelines.
func Histogram(cards []CardData) []int {
	return ColumnSums(DueMatrix(cards))
}

// FirstDay returns the window index of the first marked day of timeline.
func FirstDay(timeline []bool) (int, bool) {
	for i, marked := range timeline {
		if marked {
			return i, true
		}
	}
	return 0, false
}

// Apply writes the simulated due day of every review card that landed in
// the window back to the host as one undo step. It returns the number of
// cards moved.
func Apply(ctx context.Context, store anki.Store, cards []CardData, today, horizonPast int) (int, error) {
	due := make(map[int64]int)
	for _, c := range cards {
		if !c.IsReview() {
			continue
		}
		idx, ok := FirstDay(c.Timeline)
		if !ok {
			continue
		}
		due[c.CardID] = today + idx - horizonPast
	}
	if len(due) == 0 {
		return 0, nil
	}
	if err := store.SetDueDates(ctx, UndoLabel, due); err != nil {
		return 0, fmt.Errorf("set due dates: %w", err)
	}
	return len(due), nil
}

// SetAllToNew resets every card in cards to a new card due at 0.
func SetAllToNew(cards []CardData) {
	for i := range cards {
		cards[i].Type = KindNew
		cards[i].Due = 0
	}
}

// ShuffleNew reorders cards in place: new cards first in random order,
// then the rest in their original order.
func ShuffleNew(cards []CardData, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	fresh := make([]CardData, 0, len(cards))
	rest := make([]CardData, 0, len(cards))
	for _, c := range cards {
		if c.Type == KindNew {
			fresh = append(fresh, c)
		} else {
			rest = append(rest, c)
		}
	}
	rng.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	copy(cards, fresh)
	copy(cards[len(fresh):], rest)
}

// CountRemainingNew counts unsuspended new cards in deck carrying any of
// tags.
func CountRemainingNew(ctx context.Context, store anki.Store, deck string, tags []string) (int, error) {
	ids, err := store.FindCards(ctx, anki.Query{
		Deck:             deck,
		Tags:             tags,
		AnyTag:           true,
		NewOnly:          true,
		ExcludeSuspended: true,
	})
	if err != nil {
		return 0, fmt.Errorf("find new cards: %w", err)
	}
	return len(ids), nil
}

// CreateFilteredDeck gathers the review cards that landed in the window
// into a filtered deck named name, rescheduling them on review.
func CreateFilteredDeck(ctx context.Context, store anki.Store, cards []CardData, name string) (int64, int, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultFilteredDeck
	}
	var ids []int64
	for _, c := range cards {
		if _, ok := FirstDay(c.Timeline); ok && c.IsReview() {
			ids = append(ids, c.CardID)
		}
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}
	did, err := store.CreateFilteredDeck(ctx, name, anki.Query{CardIDs: ids}, filteredLimit, true)
	if err != nil {
		return 0, 0, fmt.Errorf("create filtered deck %q: %w", name, err)
	}
	return did, len(ids), nil
}
