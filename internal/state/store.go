package state

import (
	"fmt"
	"sync"
	"time"
)

// Stage names a step of a scene run.
type Stage string

const (
	StageIdle     Stage = ""
	StageExport   Stage = "export"
	StageScene    Stage = "scene creation"
	StageUpload   Stage = "media upload"
	StagePoll     Stage = "status poll"
	StageTimeout  Stage = "timeout"
	StageComplete Stage = "complete"
)

// Snapshot is the latest progress of the active run as seen by the UI.
type Snapshot struct {
	Stage       Stage
	SessionID   string
	Theme       string
	Cards       int
	Uploaded    int
	Attempts    int
	MaxAttempts int
	Status      string
	StartedAt   time.Time
	LastUpdated time.Time
	LastError   error
	// ConsecutiveFailures counts status polls in a row that got no usable
	// answer.
	ConsecutiveFailures int
	Finished            bool
}

// Running reports whether a run has started and not yet finished.
func (s Snapshot) Running() bool {
	return s.Stage != StageIdle && !s.Finished
}

// IsOffline returns true when the service has failed several polls in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Elapsed is the run time so far, or the total once finished.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.LastUpdated.Sub(s.StartedAt)
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Begin discards the previous run and records the start of a new one.
func (s *Store) Begin(theme string, cards, maxAttempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.snapshot = Snapshot{
		Stage:       StageExport,
		Theme:       theme,
		Cards:       cards,
		MaxAttempts: maxAttempts,
		StartedAt:   now,
		LastUpdated: now,
	}
}

// SetStage moves the run to stage.
func (s *Store) SetStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Stage = stage
	s.snapshot.LastUpdated = s.clock()
}

// SetSession records the session created by the service.
func (s *Store) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.SessionID = id
	s.snapshot.LastUpdated = s.clock()
}

// SetUploaded records how many media files were sent.
func (s *Store) SetUploaded(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Uploaded = n
	s.snapshot.LastUpdated = s.clock()
}

// Update records one status poll. When err is non-nil the previous status
// is kept but the error is recorded for visibility.
func (s *Store) Update(status string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Attempts++
	s.snapshot.LastUpdated = s.clock()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}
	s.snapshot.Status = status
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Finish marks the run done. A nil err completes it.
func (s *Store) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Finished = true
	s.snapshot.LastUpdated = s.clock()
	if err != nil {
		s.snapshot.LastError = err
		return
	}
	s.snapshot.Stage = StageComplete
	s.snapshot.LastError = nil
}

// Reset returns the store to idle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
