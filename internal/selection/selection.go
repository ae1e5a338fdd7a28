// Package selection picks which cards of a deck go into an export batch.
//
// Cards are first narrowed by a deck and tag query, then reduced to one
// card per note. Ranked modes keep the highest scoring card of each note
// and take the top N winners; Random samples N notes uniformly. A note
// never contributes more than one card to a batch in any mode.
package selection

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/five82/cranky/internal/anki"
)

// DefaultLimit is the batch size used when none is configured.
const DefaultLimit = 25

// Mode is a ranking heuristic.
type Mode int

const (
	MostLapses Mode = iota
	MostRepetitions
	Random
)

// Modes lists every mode in display order.
var Modes = []Mode{MostLapses, MostRepetitions, Random}

func (m Mode) String() string {
	switch m {
	case MostLapses:
		return "Most Lapses"
	case MostRepetitions:
		return "Most Repetitions"
	case Random:
		return "Random"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	return Modes[(int(m)+1)%len(Modes)]
}

// ParseMode accepts a display label or its short form, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "most lapses", "lapses":
		return MostLapses, nil
	case "most repetitions", "reps", "repetitions":
		return MostRepetitions, nil
	case "random":
		return Random, nil
	default:
		return 0, fmt.Errorf("unknown selection mode %q", s)
	}
}

// MarshalText encodes the mode by its short form.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case MostLapses:
		return []byte("lapses"), nil
	case MostRepetitions:
		return []byte("reps"), nil
	case Random:
		return []byte("random"), nil
	}
	return nil, fmt.Errorf("unknown selection mode %d", int(m))
}

// UnmarshalText decodes any form ParseMode accepts.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Score returns the ranking key of c under m. Random scores everything 0.
func (m Mode) Score(c anki.Card) int {
	switch m {
	case MostLapses:
		return c.Lapses
	case MostRepetitions:
		return c.Reps
	default:
		return 0
	}
}

// BuildQuery joins the deck and tag predicates.
func BuildQuery(deck string, tags []string, excludeSuspended bool) anki.Query {
	var clean []string
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			clean = append(clean, tag)
		}
	}
	return anki.Query{Deck: strings.TrimSpace(deck), Tags: clean, ExcludeSuspended: excludeSuspended}
}

// BestPerNote keeps the highest scoring card of each note, in order of
// first appearance. Ties keep the card seen first.
func BestPerNote(cards []anki.Card, mode Mode) []anki.Card {
	index := make(map[int64]int, len(cards))
	out := make([]anki.Card, 0, len(cards))
	for _, c := range cards {
		i, seen := index[c.NoteID]
		if !seen {
			index[c.NoteID] = len(out)
			out = append(out, c)
			continue
		}
		if mode.Score(c) > mode.Score(out[i]) {
			out[i] = c
		}
	}
	return out
}

// TopN returns the n highest scoring note winners, best first.
func TopN(cards []anki.Card, mode Mode, n int) []anki.Card {
	winners := BestPerNote(cards, mode)
	if n <= 0 || len(winners) == 0 {
		return nil
	}
	h := &minHeap{mode: mode}
	for i, c := range winners {
		entry := ranked{card: c, seq: i}
		if h.Len() < n {
			heap.Push(h, entry)
			continue
		}
		if h.less(h.items[0], entry) {
			h.items[0] = entry
			heap.Fix(h, 0)
		}
	}
	out := make([]anki.Card, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ranked).card
	}
	return out
}

type ranked struct {
	card anki.Card
	seq  int
}

// minHeap keeps the weakest retained card at the root. Among equal scores
// later cards are weaker, so earlier ones survive.
type minHeap struct {
	mode  Mode
	items []ranked
}

func (h *minHeap) less(a, b ranked) bool {
	sa, sb := h.mode.Score(a.card), h.mode.Score(b.card)
	if sa != sb {
		return sa < sb
	}
	return a.seq > b.seq
}

func (h *minHeap) Len() int           { return len(h.items) }
func (h *minHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *minHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *minHeap) Push(x any)         { h.items = append(h.items, x.(ranked)) }
func (h *minHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}

// Sample draws min(n, notes) cards uniformly without replacement after
// reducing cards to one per note.
func Sample(cards []anki.Card, n int, rng *rand.Rand) []anki.Card {
	pool := BestPerNote(cards, Random)
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	// Partial Fisher-Yates.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Criteria describes one selection request.
type Criteria struct {
	Deck             string
	Tags             []string
	Mode             Mode
	Limit            int
	ExcludeSuspended bool
}

// Query renders the criteria as a store query.
func (c Criteria) Query() anki.Query {
	return BuildQuery(c.Deck, c.Tags, c.ExcludeSuspended)
}

func (c Criteria) limit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}

// Select runs the query against store and reduces the matches to a batch.
func Select(ctx context.Context, store anki.Store, criteria Criteria, rng *rand.Rand) ([]anki.Card, error) {
	ids, err := store.FindCards(ctx, criteria.Query())
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
	if criteria.Mode == Random {
		return Sample(cards, criteria.limit(), rng), nil
	}
	return TopN(cards, criteria.Mode, criteria.limit()), nil
}

// Count reports how many cards match the criteria before deduplication.
func Count(ctx context.Context, store anki.Store, criteria Criteria) (int, error) {
	ids, err := store.FindCards(ctx, criteria.Query())
	if err != nil {
		return 0, fmt.Errorf("find cards: %w", err)
	}
	return len(ids), nil
}
