package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultAddr is where the login page posts the token.
const DefaultAddr = "127.0.0.1:7777"

const defaultShutdownDelay = time.Second

// TokenSaver persists a received token.
type TokenSaver interface {
	Save(token string) error
}

// Session is one login attempt: a local listener that accepts a single
// token and then stops.
type Session struct {
	ID string

	saver         TokenSaver
	logger        *slog.Logger
	shutdownDelay time.Duration

	listener net.Listener
	server   *http.Server

	tokenOnce sync.Once
	token     chan string
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession starts listening on addr.
func NewSession(addr string, saver TokenSaver, logger *slog.Logger) (*Session, error) {
	return newSession(addr, saver, logger, defaultShutdownDelay)
}

func newSession(addr string, saver TokenSaver, logger *slog.Logger, shutdownDelay time.Duration) (*Session, error) {
	if strings.TrimSpace(addr) == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for login token: %w", err)
	}
	s := &Session{
		ID:            ulid.Make().String(),
		saver:         saver,
		shutdownDelay: shutdownDelay,
		listener:      ln,
		token:         make(chan string, 1),
		closed:        make(chan struct{}),
	}
	s.logger = logger.With("login", s.ID)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", s.handleToken)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		err := s.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("login listener stopped", "error", err)
		}
		s.finish()
	}()
	s.logger.Info("login listener started", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the address the session listens on.
func (s *Session) Addr() string {
	return s.listener.Addr().String()
}

// Token receives the token once it has been stored. It is closed without
// a value if the session ends first.
func (s *Session) Token() <-chan string {
	return s.token
}

// Done is closed when the listener has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Close stops the listener immediately.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.finish()
	return err
}

func (s *Session) finish() {
	s.closeOnce.Do(func() {
		s.tokenOnce.Do(func() { close(s.token) })
		close(s.closed)
	})
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Session) handleToken(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err == nil && len(data) > 0 {
		err = json.Unmarshal(data, &body)
	}
	token := strings.TrimSpace(body.Token)
	if err != nil || token == "" {
		http.Error(w, "No token", http.StatusBadRequest)
		return
	}

	if s.saver != nil {
		if err := s.saver.Save(token); err != nil {
			s.logger.Error("store login token failed", "error", err)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "OK")

	delivered := false
	s.tokenOnce.Do(func() {
		s.token <- token
		close(s.token)
		delivered = true
	})
	if delivered {
		s.logger.Info("login token received")
		time.AfterFunc(s.shutdownDelay, func() { _ = s.Close() })
	}
}
