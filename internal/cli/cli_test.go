package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/anki/ankitest"
	"github.com/five82/cranky/internal/app"
	"github.com/five82/cranky/internal/auth"
	"github.com/five82/cranky/internal/config"
	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/extract"
	"github.com/five82/cranky/internal/palace"
	"github.com/five82/cranky/internal/state"
	"github.com/five82/cranky/internal/timewarp"
)

func newStore() *ankitest.Store {
	s := ankitest.New()
	s.AddModel(anki.Model{
		Name:      "Basic",
		Fields:    []string{"Front", "Back"},
		Templates: []anki.Template{{Name: "Card 1", Front: "{{Front}}", Back: "{{FrontSide}}<hr id=answer>{{Back}}"}},
	})
	s.AddNote(anki.Note{
		ID: 10, ModelName: "Basic", FieldOrder: []string{"Front", "Back"},
		Fields: map[string]string{"Front": "Capital of Peru", "Back": "Lima"},
		Tags:   []string{"geo"},
	}, anki.Card{ID: 1, Deck: "Geo", Type: anki.CardTypeReview, Queue: 2, Due: 105, Interval: 10, Lapses: 3})
	s.Day = 100
	return s
}

// stubApp makes every command use store and a throw-away data directory.
func stubApp(t *testing.T, store anki.Store, apiBase string) *app.App {
	t.Helper()
	t.Setenv(auth.EnvToken, "")
	dir := t.TempDir()
	if apiBase == "" {
		apiBase = "http://127.0.0.1:1"
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &app.App{
		Config: config.Config{
			AnkiConnectURL: "http://127.0.0.1:8765",
			APIBase:        apiBase,
			FrontBase:      "https://cranky.test",
			DataDir:        dir,
			Limit:          25,
		},
		Logger:    logger,
		Store:     store,
		Tokens:    auth.NewTokenStore(dir, logger),
		State:     &state.Store{},
		Templates: extract.NewCache(),
	}
	prev := newApp
	newApp = func(app.Options) (*app.App, error) { return a, nil }
	t.Cleanup(func() { newApp = prev })
	return a
}

func stubPrompts(t *testing.T, consent bool, theme string) {
	t.Helper()
	prevConfirm, prevText := askConfirm, askText
	askConfirm = func(*cobra.Command, string) (bool, error) { return consent, nil }
	askText = func(*cobra.Command, string) (string, error) { return theme, nil }
	t.Cleanup(func() { askConfirm, askText = prevConfirm, prevText })
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExportCmd(t *testing.T) {
	a := stubApp(t, newStore(), "")
	out := filepath.Join(t.TempDir(), "batch.yaml")

	code, stdout, stderr := execute(t, "export", "--deck", "Geo", "--out", out)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "Exported 1 cards to "+out) {
		t.Fatalf("stdout = %q", stdout)
	}
	for _, p := range []string{out, a.Config.ExportPath()} {
		cards, err := export.Load(p)
		if err != nil {
			t.Fatalf("Load(%s) returned error: %v", p, err)
		}
		if len(cards) != 1 || cards[0].UID != "10" || cards[0].Back != "Lima" {
			t.Fatalf("cards in %s = %+v", p, cards)
		}
	}
}

func TestExportCmd_BadMode(t *testing.T) {
	stubApp(t, newStore(), "")
	code, _, stderr := execute(t, "export", "--mode", "loudest")
	if code != 1 || !strings.Contains(stderr, "cranky:") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestRunCmd_HostUnavailable(t *testing.T) {
	store := newStore()
	store.VersionErr = errors.New("connection refused")
	stubApp(t, store, "")
	stubPrompts(t, true, "castle")

	code, stdout, _ := execute(t, "run")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, ankiConnectAddon) {
		t.Fatalf("stdout = %q, want add-on link", stdout)
	}
}

func TestRunCmd_Declined(t *testing.T) {
	store := newStore()
	stubApp(t, store, "")
	stubPrompts(t, false, "")

	code, stdout, _ := execute(t, "run")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Operation cancelled.") {
		t.Fatalf("stdout = %q", stdout)
	}
	if store.Finds != 0 {
		t.Fatalf("cards were read after consent was refused")
	}
}

func TestRunCmd_EmptyTheme(t *testing.T) {
	stubApp(t, newStore(), "")
	stubPrompts(t, true, "  ")

	code, stdout, _ := execute(t, "run")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "No theme provided.") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunCmd_StoredSceneMissing(t *testing.T) {
	a := stubApp(t, newStore(), "")
	stubPrompts(t, true, "castle")
	if err := export.Save(a.Config.ExportPath(), []export.Card{{UID: "1", Front: "f", Back: "b"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	code, stdout, _ := execute(t, "run", "--stored-cards", "--stored-scene")
	if code != 1 || !strings.Contains(stdout, "Layout file not found") {
		t.Fatalf("code = %d, stdout = %q", code, stdout)
	}
}

func TestRunCmd_Generates(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/v2/generate_scene":
			_, _ = io.WriteString(w, `{"objects":[{"uid":"10"}]}`)
		case "/generate_viewer":
			_, _ = io.WriteString(w, `{"url":"https://cdn.test/v.html"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	a := stubApp(t, newStore(), srv.URL)
	stubPrompts(t, true, "castle")

	code, stdout, stderr := execute(t, "run", "--deck", "Geo")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "Viewer URL:\n https://cdn.test/v.html") {
		t.Fatalf("stdout = %q", stdout)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("requests = %v", paths)
	}
	scene, err := palace.LoadScene(a.Config.LayoutPath())
	if err != nil {
		t.Fatalf("LoadScene returned error: %v", err)
	}
	if len(scene.SessionID) != 8 {
		t.Fatalf("session id = %q, want 8 hex digits", scene.SessionID)
	}
}

func TestLoginPasteAndLogout(t *testing.T) {
	a := stubApp(t, newStore(), "")

	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetArgs([]string{"login", "--paste"})
	root.SetIn(strings.NewReader("tok-123\n"))
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if got := a.Tokens.Token(); got != "tok-123" {
		t.Fatalf("token = %q", got)
	}

	code, out, _ := execute(t, "logout")
	if code != 0 || !strings.Contains(out, "Logged out.") {
		t.Fatalf("code = %d, stdout = %q", code, out)
	}
	if got := a.Tokens.Token(); got != "" {
		t.Fatalf("token after logout = %q", got)
	}
	if _, err := os.Stat(a.Tokens.CredentialsPath); !os.IsNotExist(err) {
		t.Fatalf("credentials file still present: %v", err)
	}
}

func TestLoginPaste_Empty(t *testing.T) {
	stubApp(t, newStore(), "")
	root := NewRootCmd()
	root.SetArgs([]string{"login", "--paste"})
	root.SetIn(strings.NewReader("\n"))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("login with an empty token returned nil error")
	}
}

func TestWarpCmd(t *testing.T) {
	store := newStore()
	stubApp(t, store, "")

	code, stdout, stderr := execute(t, "warp", "--deck", "Geo", "--shift", "2", "--apply", "--filtered-deck", "")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "+7d") || !strings.Contains(stdout, "Moved 1 cards") {
		t.Fatalf("stdout = %q", stdout)
	}
	if len(store.DueUpdates) != 1 || store.DueUpdates[0].Due[1] != 107 || store.DueUpdates[0].Label != timewarp.UndoLabel {
		t.Fatalf("due updates = %+v", store.DueUpdates)
	}
	if len(store.FilteredDecks) != 1 || store.FilteredDecks[0].Name != timewarp.DefaultFilteredDeck {
		t.Fatalf("filtered decks = %+v", store.FilteredDecks)
	}
}

func TestWarpCmd_DryRun(t *testing.T) {
	store := newStore()
	stubApp(t, store, "")

	code, stdout, _ := execute(t, "warp", "--stretch", "100")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "+10d") {
		t.Fatalf("stdout = %q, want card moved to day +10", stdout)
	}
	if len(store.DueUpdates) != 0 || len(store.FilteredDecks) != 0 {
		t.Fatal("dry run wrote to the store")
	}
}

func TestWarpCmd_FilteredUnsupported(t *testing.T) {
	store := newStore()
	store.FilterErr = anki.ErrUnsupported
	stubApp(t, store, "")

	code, _, stderr := execute(t, "warp", "--filtered-deck", "Later")
	if code != 1 || !strings.Contains(stderr, "--collection") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestPrintHistogram(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := timewarp.Params{HorizonPast: 2, HorizonFuture: 3}
	printHistogram(&buf, []int{0, 1, 0, 4, 0}, p)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[1], "5 cards due in the window, peak 4") {
		t.Fatalf("summary = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "   -1d") || strings.Count(lines[2], "█") != barWidth/4 {
		t.Fatalf("first bar = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "   +1d") || strings.Count(lines[3], "█") != barWidth {
		t.Fatalf("peak bar = %q", lines[3])
	}
}
