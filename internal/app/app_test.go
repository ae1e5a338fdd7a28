package app

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/anki/ankitest"
	"github.com/five82/cranky/internal/auth"
	"github.com/five82/cranky/internal/config"
	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/extract"
	"github.com/five82/cranky/internal/selection"
	"github.com/five82/cranky/internal/state"
)

func newTestApp(t *testing.T, store anki.Store) *App {
	t.Helper()
	t.Setenv(auth.EnvToken, "")
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &App{
		Config: config.Config{
			APIBase:          "http://127.0.0.1:1",
			FrontBase:        "https://cranky.test",
			DataDir:          dir,
			Limit:            7,
			ExcludeSuspended: true,
		},
		Logger:    logger,
		Store:     store,
		Tokens:    auth.NewTokenStore(dir, logger),
		State:     &state.Store{},
		Templates: extract.NewCache(),
	}
}

func jwt(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestCriteria(t *testing.T) {
	a := newTestApp(t, ankitest.New())
	c := a.Criteria("Geo", []string{"x"}, selection.Random)
	if c.Deck != "Geo" || len(c.Tags) != 1 || c.Mode != selection.Random || c.Limit != 7 || !c.ExcludeSuspended {
		t.Fatalf("Criteria = %+v", c)
	}
}

func TestToken_ClearsExpired(t *testing.T) {
	a := newTestApp(t, ankitest.New())

	if err := a.SaveToken(jwt(`{"exp":1}`)); err != nil {
		t.Fatalf("SaveToken returned error: %v", err)
	}
	token, expired := a.Token()
	if token != "" || !expired {
		t.Fatalf("Token() = %q, %v; want empty, expired", token, expired)
	}
	if _, err := os.Stat(a.Tokens.CredentialsPath); !os.IsNotExist(err) {
		t.Fatalf("expired token file still present: %v", err)
	}

	fresh := jwt(`{"exp":4102444800}`)
	if err := a.SaveToken(fresh); err != nil {
		t.Fatalf("SaveToken returned error: %v", err)
	}
	if token, expired := a.Token(); token != fresh || expired {
		t.Fatalf("Token() = %q, %v", token, expired)
	}
	if got := a.DashboardURL(); got == "" {
		t.Fatal("DashboardURL() is empty")
	}

	if err := a.ClearToken(); err != nil {
		t.Fatalf("ClearToken returned error: %v", err)
	}
	if token, expired := a.Token(); token != "" || expired {
		t.Fatalf("Token() after logout = %q, %v", token, expired)
	}
}

func TestExport_WritesFile(t *testing.T) {
	store := ankitest.New()
	store.AddModel(anki.Model{
		Name:      "Basic",
		Fields:    []string{"Front", "Back"},
		Templates: []anki.Template{{Name: "Card 1", Front: "{{Front}}", Back: "{{FrontSide}}<hr id=answer>{{Back}}"}},
	})
	store.AddNote(anki.Note{
		ID: 5, ModelName: "Basic", FieldOrder: []string{"Front", "Back"},
		Fields: map[string]string{"Front": "Sun", "Back": "Star"},
	}, anki.Card{ID: 50, Deck: "Space", Lapses: 1})
	a := newTestApp(t, store)

	stale := filepath.Join(a.Config.MediaDir(), "old.png")
	if err := os.MkdirAll(a.Config.MediaDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll returned error: %v", err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	cards, err := a.Export(context.Background(), a.Criteria("all", nil, selection.MostLapses), nil)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if len(cards) != 1 || cards[0].Front != "Sun" {
		t.Fatalf("cards = %+v", cards)
	}
	saved, err := export.Load(a.Config.ExportPath())
	if err != nil {
		t.Fatalf("export.Load returned error: %v", err)
	}
	if len(saved) != 1 || saved[0].UID != "5" {
		t.Fatalf("saved = %+v", saved)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale media survived: %v", err)
	}
}

func TestCheckHost(t *testing.T) {
	store := ankitest.New()
	a := newTestApp(t, store)
	if err := a.CheckHost(context.Background()); err != nil {
		t.Fatalf("CheckHost returned error: %v", err)
	}
	store.VersionErr = errors.New("refused")
	if err := a.CheckHost(context.Background()); !errors.Is(err, ErrHostUnavailable) {
		t.Fatalf("CheckHost error = %v, want ErrHostUnavailable", err)
	}
}

func TestNew_UsesCollectionOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRANKY_DATA_DIR", dir)
	t.Setenv("CRANKY_LOG_DIR", filepath.Join(dir, "logs"))
	_, err := New(Options{
		ConfigPath:     filepath.Join(dir, "missing.toml"),
		CollectionPath: filepath.Join(dir, "nope", "collection.anki2"),
	})
	if err == nil {
		t.Fatal("New with a missing collection returned nil error")
	}
}
