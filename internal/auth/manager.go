package auth

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pkg/browser"
)

// ErrLoginInProgress is returned when a login is started while another is
// still waiting for its token.
var ErrLoginInProgress = errors.New("login already in progress")

// Manager allows at most one login session at a time.
type Manager struct {
	Addr     string
	LoginURL string
	Store    TokenSaver
	Logger   *slog.Logger
	// Open shows LoginURL to the user. Defaults to the system browser.
	Open func(url string) error

	mu     sync.Mutex
	active *Session
}

// Start opens a new session and points the browser at the login page.
func (m *Manager) Start() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return m.active, ErrLoginInProgress
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s, err := NewSession(m.Addr, m.Store, logger)
	if err != nil {
		return nil, err
	}
	m.active = s
	go func() {
		<-s.Done()
		m.mu.Lock()
		if m.active == s {
			m.active = nil
		}
		m.mu.Unlock()
	}()

	if m.LoginURL != "" {
		open := m.Open
		if open == nil {
			open = browser.OpenURL
		}
		if err := open(m.LoginURL); err != nil {
			logger.Warn("open login page failed", "url", m.LoginURL, "error", err)
		}
	}
	return s, nil
}

// Active returns the outstanding session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Cancel stops the outstanding session.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
