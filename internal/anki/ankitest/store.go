// Package ankitest provides an in-memory anki.Store for tests.
package ankitest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/five82/cranky/internal/anki"
)

// DueUpdate records one SetDueDates call.
type DueUpdate struct {
	Label string
	Due   map[int64]int
}

// FilteredDeck records one CreateFilteredDeck call.
type FilteredDeck struct {
	Name       string
	Query      anki.Query
	Limit      int
	Reschedule bool
}

// Store is a mutable in-memory host store. Set the *Err fields to make the
// matching calls fail.
type Store struct {
	mu sync.Mutex

	Cards  []anki.Card
	Notes  map[int64]anki.Note
	Models map[string]anki.Model
	Media  map[string][]byte
	Day    int

	VersionErr error
	FindErr    error
	CardsErr   error
	NotesErr   error
	DueErr     error
	FilterErr  error

	DueUpdates    []DueUpdate
	FilteredDecks []FilteredDeck
	Finds         int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Notes:  map[int64]anki.Note{},
		Models: map[string]anki.Model{},
		Media:  map[string][]byte{},
	}
}

// AddNote stores note and one card per entry in cards, filling in the note
// and model of each card.
func (s *Store) AddNote(note anki.Note, cards ...anki.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notes[note.ID] = note
	for _, c := range cards {
		c.NoteID = note.ID
		c.ModelName = note.ModelName
		s.Cards = append(s.Cards, c)
	}
}

// AddModel stores model under its name.
func (s *Store) AddModel(model anki.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Models[model.Name] = model
}

func (s *Store) Version(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VersionErr != nil {
		return 0, s.VersionErr
	}
	return 6, nil
}

func (s *Store) DeckNames(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var names []string
	for _, c := range s.Cards {
		if !seen[c.Deck] {
			seen[c.Deck] = true
			names = append(names, c.Deck)
		}
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return names, nil
}

func (s *Store) Tags(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var tags []string
	for _, n := range s.Notes {
		for _, t := range n.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *Store) FindCards(_ context.Context, q anki.Query) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finds++
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	wanted := map[int64]bool{}
	for _, id := range q.CardIDs {
		wanted[id] = true
	}
	var ids []int64
	for _, c := range s.Cards {
		switch {
		case !anki.DeckMatches(c.Deck, q.Deck):
		case !anki.MatchTags(s.Notes[c.NoteID].Tags, q.Tags, q.AnyTag):
		case q.ExcludeSuspended && c.Suspended():
		case q.ReviewOnly && c.Type != anki.CardTypeReview && c.Type != anki.CardTypeRelearning:
		case q.NewOnly && c.Type != anki.CardTypeNew:
		case len(wanted) > 0 && !wanted[c.ID]:
		default:
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *Store) CardsInfo(_ context.Context, ids []int64) ([]anki.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CardsErr != nil {
		return nil, s.CardsErr
	}
	byID := make(map[int64]anki.Card, len(s.Cards))
	for _, c := range s.Cards {
		byID[c.ID] = c
	}
	out := make([]anki.Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) NotesInfo(_ context.Context, ids []int64) ([]anki.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NotesErr != nil {
		return nil, s.NotesErr
	}
	out := make([]anki.Note, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.Notes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) Model(_ context.Context, name string) (anki.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Models[name]
	if !ok {
		return anki.Model{}, anki.ErrNotFound
	}
	return m, nil
}

func (s *Store) RetrieveMediaFile(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Media[name]
	if !ok {
		return nil, anki.ErrNotFound
	}
	return data, nil
}

func (s *Store) Today(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Day, nil
}

// SetDueDates records the update and applies it to the stored cards.
func (s *Store) SetDueDates(_ context.Context, label string, due map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DueErr != nil {
		return s.DueErr
	}
	copied := make(map[int64]int, len(due))
	for id, d := range due {
		copied[id] = d
	}
	s.DueUpdates = append(s.DueUpdates, DueUpdate{Label: label, Due: copied})
	for i := range s.Cards {
		if d, ok := due[s.Cards[i].ID]; ok {
			s.Cards[i].Due = d
		}
	}
	return nil
}

func (s *Store) CreateFilteredDeck(_ context.Context, name string, q anki.Query, limit int, reschedule bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FilterErr != nil {
		return 0, s.FilterErr
	}
	s.FilteredDecks = append(s.FilteredDecks, FilteredDeck{Name: name, Query: q, Limit: limit, Reschedule: reschedule})
	return int64(len(s.FilteredDecks)), nil
}

func (s *Store) Close() error { return nil }

var _ anki.Store = (*Store)(nil)
