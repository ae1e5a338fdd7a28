// Package timewarp previews and applies bulk changes to review due dates.
//
// Simulate stretches and shifts the due days of review cards and marks
// where each lands in a window around today; Histogram turns the marks
// into per-day counts for display. Nothing touches the host until Apply,
// which writes all moved due days in a single undoable step, or
// CreateFilteredDeck, which collects the moved cards into a filtered deck.
package timewarp
