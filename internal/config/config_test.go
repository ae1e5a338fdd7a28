package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"CRANKY_ANKI_CONNECT_URL", "ANKI_CONNECT_URL", "CRANKY_COLLECTION",
	"CRANKY_API_BASE", "CRANKY_FRONT_BASE", "CRANKY_DATA_DIR", "CRANKY_LOG_DIR",
	"CRANKY_TOKEN_PORT", "CRANKY_LIMIT", "CRANKY_POLL_INTERVAL_SECONDS",
	"CRANKY_MAX_POLLS", "CRANKY_EXCLUDE_SUSPENDED", "COUPON_TOKEN",
}

func cleanEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := cleanEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AnkiConnectURL != defaultAnkiConnectURL {
		t.Fatalf("AnkiConnectURL = %q, want %q", cfg.AnkiConnectURL, defaultAnkiConnectURL)
	}
	if cfg.APIBase != defaultAPIBase || cfg.FrontBase != defaultFrontBase {
		t.Fatalf("bases = %q, %q", cfg.APIBase, cfg.FrontBase)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.TokenPort != 7777 || cfg.Limit != 25 || cfg.PollInterval != 2*time.Second || cfg.MaxPolls != 1000 {
		t.Fatalf("numeric defaults = %+v", cfg)
	}
	if cfg.ExcludeSuspended || cfg.UsesCollection() {
		t.Fatalf("flags = %+v", cfg)
	}
	if cfg.ExportPath() != filepath.Join(wantDataDir, "cards_retrieved.json") {
		t.Fatalf("ExportPath = %q", cfg.ExportPath())
	}
	if cfg.MediaDir() != filepath.Join(wantDataDir, "media") || cfg.LayoutPath() != filepath.Join(wantDataDir, "cranky_layout.json") {
		t.Fatalf("paths = %q, %q", cfg.MediaDir(), cfg.LayoutPath())
	}
	if cfg.TokenAddr() != "127.0.0.1:7777" {
		t.Fatalf("TokenAddr = %q", cfg.TokenAddr())
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := cleanEnv(t)
	path := writeConfig(t, `
anki_connect_url = "  http://10.0.0.5:8765  "
collection_path = " ~/Anki/User 1/collection.anki2 "
api_base = "http://localhost:8000/"
front_base = "http://localhost:3000/"
data_dir = "  ~/.cranky  "
log_dir = "~/.cranky/logs"
token_port = 7788
limit = 40
exclude_suspended = true
poll_interval_seconds = 5
max_polls = 12
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AnkiConnectURL != "http://10.0.0.5:8765" {
		t.Fatalf("AnkiConnectURL = %q", cfg.AnkiConnectURL)
	}
	if cfg.CollectionPath != filepath.Join(home, "Anki/User 1/collection.anki2") || !cfg.UsesCollection() {
		t.Fatalf("CollectionPath = %q", cfg.CollectionPath)
	}
	if cfg.APIBase != "http://localhost:8000" || cfg.FrontBase != "http://localhost:3000" {
		t.Fatalf("bases = %q, %q", cfg.APIBase, cfg.FrontBase)
	}
	if !strings.HasPrefix(cfg.DataDir, home) || !strings.HasPrefix(cfg.LogDir, home) {
		t.Fatalf("dirs = %q, %q, want under HOME %q", cfg.DataDir, cfg.LogDir, home)
	}
	if cfg.LogPath() != filepath.Join(cfg.LogDir, "cranky.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
	if cfg.TokenAddr() != "127.0.0.1:7788" || cfg.Limit != 40 || !cfg.ExcludeSuspended {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Second || cfg.MaxPolls != 12 {
		t.Fatalf("polling = %v, %d", cfg.PollInterval, cfg.MaxPolls)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	cleanEnv(t)
	path := writeConfig(t, `
anki_connect_url = "   "
data_dir = ""
token_port = 99999
limit = -1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AnkiConnectURL != defaultAnkiConnectURL {
		t.Fatalf("AnkiConnectURL = %q, want %q", cfg.AnkiConnectURL, defaultAnkiConnectURL)
	}
	wantDataDir, _ := expandPath(defaultDataDir)
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.TokenPort != defaultTokenPort || cfg.Limit != defaultLimit {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	cleanEnv(t)
	path := writeConfig(t, `
anki_connect_url = "http://file:8765"
limit = 10
`)
	t.Setenv("ANKI_CONNECT_URL", "http://env:8765")
	t.Setenv("CRANKY_LIMIT", "7")
	t.Setenv("CRANKY_EXCLUDE_SUSPENDED", "true")
	t.Setenv("CRANKY_API_BASE", "http://api.test")
	t.Setenv("COUPON_TOKEN", " c0up0n ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AnkiConnectURL != "http://env:8765" || cfg.Limit != 7 || !cfg.ExcludeSuspended {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.APIBase != "http://api.test" || cfg.Coupon != "c0up0n" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("CRANKY_ANKI_CONNECT_URL", "http://cranky:8765")
	cfg, _ = Load(path)
	if cfg.AnkiConnectURL != "http://cranky:8765" {
		t.Fatalf("CRANKY_ANKI_CONNECT_URL not preferred: %q", cfg.AnkiConnectURL)
	}

	t.Setenv("CRANKY_MAX_POLLS", "many")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "CRANKY_MAX_POLLS") {
		t.Fatalf("Load error = %v, want CRANKY_MAX_POLLS parse error", err)
	}
}

func TestLoad_InvalidTOMLReturnsParseError(t *testing.T) {
	cleanEnv(t)
	path := writeConfig(t, "limit = [")

	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoadDotEnv(t *testing.T) {
	cleanEnv(t)
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv on missing file returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CRANKY_LIMIT=3\nCRANKY_FRONT_BASE=http://front.test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRANKY_FRONT_BASE", "http://already.set")
	// Unset so godotenv can fill it; t.Setenv restores it afterwards.
	os.Unsetenv("CRANKY_LIMIT")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if os.Getenv("CRANKY_LIMIT") != "3" {
		t.Fatalf("CRANKY_LIMIT = %q, want 3", os.Getenv("CRANKY_LIMIT"))
	}
	if os.Getenv("CRANKY_FRONT_BASE") != "http://already.set" {
		t.Fatalf("existing variable overridden: %q", os.Getenv("CRANKY_FRONT_BASE"))
	}
}
