// Package anki reads cards, notes and note types from the flashcard host and
// writes rescheduled due dates back to it.
package anki

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested record or media file does not
	// exist in the host store.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned by backends that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// Store is the host store as seen by the exporter and the time warp.
type Store interface {
	Version(ctx context.Context) (int, error)
	DeckNames(ctx context.Context) ([]string, error)
	Tags(ctx context.Context) ([]string, error)
	FindCards(ctx context.Context, q Query) ([]int64, error)
	CardsInfo(ctx context.Context, ids []int64) ([]Card, error)
	NotesInfo(ctx context.Context, ids []int64) ([]Note, error)
	Model(ctx context.Context, name string) (Model, error)
	RetrieveMediaFile(ctx context.Context, name string) ([]byte, error)
	// Today returns the scheduler's current day number, the unit of review
	// card due values.
	Today(ctx context.Context) (int, error)
	// SetDueDates moves review cards to absolute due days as one undoable
	// step named label.
	SetDueDates(ctx context.Context, label string, due map[int64]int) error
	CreateFilteredDeck(ctx context.Context, name string, q Query, limit int, reschedule bool) (int64, error)
	Close() error
}
