package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything cranky reads from config.toml and the
// environment.
type Config struct {
	AnkiConnectURL   string
	CollectionPath   string
	APIBase          string
	FrontBase        string
	DataDir          string
	LogDir           string
	TokenPort        int
	Limit            int
	ExcludeSuspended bool
	PollInterval     time.Duration
	MaxPolls         int
	Coupon           string
}

const (
	defaultConfigPath     = "~/.config/cranky/config.toml"
	defaultDataDir        = "~/.local/share/cranky"
	defaultLogDir         = "~/.local/share/cranky/logs"
	defaultAnkiConnectURL = "http://127.0.0.1:8765"
	defaultAPIBase        = "https://api.cranky.app"
	defaultFrontBase      = "https://cranky.app"
	defaultTokenPort      = 7777
	defaultLimit          = 25
	defaultPollInterval   = 2 * time.Second
	defaultMaxPolls       = 1000
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

type fileConfig struct {
	AnkiConnectURL      string `toml:"anki_connect_url"`
	CollectionPath      string `toml:"collection_path"`
	APIBase             string `toml:"api_base"`
	FrontBase           string `toml:"front_base"`
	DataDir             string `toml:"data_dir"`
	LogDir              string `toml:"log_dir"`
	TokenPort           int    `toml:"token_port"`
	Limit               int    `toml:"limit"`
	ExcludeSuspended    bool   `toml:"exclude_suspended"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MaxPolls            int    `toml:"max_polls"`
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load parses the config at path, falling back to defaults when the file
// is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	if err := applyEnv(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AnkiConnectURL:   orDefault(raw.AnkiConnectURL, defaultAnkiConnectURL),
		APIBase:          strings.TrimRight(orDefault(raw.APIBase, defaultAPIBase), "/"),
		FrontBase:        strings.TrimRight(orDefault(raw.FrontBase, defaultFrontBase), "/"),
		DataDir:          mustExpand(orDefault(raw.DataDir, defaultDataDir)),
		LogDir:           mustExpand(orDefault(raw.LogDir, defaultLogDir)),
		TokenPort:        raw.TokenPort,
		Limit:            raw.Limit,
		ExcludeSuspended: raw.ExcludeSuspended,
		PollInterval:     time.Duration(raw.PollIntervalSeconds) * time.Second,
		MaxPolls:         raw.MaxPolls,
		Coupon:           strings.TrimSpace(os.Getenv("COUPON_TOKEN")),
	}
	if collection := strings.TrimSpace(raw.CollectionPath); collection != "" {
		cfg.CollectionPath = mustExpand(collection)
	}
	if cfg.TokenPort <= 0 || cfg.TokenPort > 65535 {
		cfg.TokenPort = defaultTokenPort
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	return cfg, nil
}

func applyEnv(raw *fileConfig) error {
	strs := []struct {
		dst  *string
		keys []string
	}{
		{&raw.AnkiConnectURL, []string{"CRANKY_ANKI_CONNECT_URL", "ANKI_CONNECT_URL"}},
		{&raw.CollectionPath, []string{"CRANKY_COLLECTION"}},
		{&raw.APIBase, []string{"CRANKY_API_BASE"}},
		{&raw.FrontBase, []string{"CRANKY_FRONT_BASE"}},
		{&raw.DataDir, []string{"CRANKY_DATA_DIR"}},
		{&raw.LogDir, []string{"CRANKY_LOG_DIR"}},
	}
	for _, s := range strs {
		if v, ok := lookup(s.keys...); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&raw.TokenPort, "CRANKY_TOKEN_PORT"},
		{&raw.Limit, "CRANKY_LIMIT"},
		{&raw.PollIntervalSeconds, "CRANKY_POLL_INTERVAL_SECONDS"},
		{&raw.MaxPolls, "CRANKY_MAX_POLLS"},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", i.key, err)
		}
		*i.dst = n
	}

	if v, ok := lookup("CRANKY_EXCLUDE_SUSPENDED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse CRANKY_EXCLUDE_SUSPENDED: %w", err)
		}
		raw.ExcludeSuspended = b
	}
	return nil
}

func lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

// UsesCollection reports whether cranky reads a collection file directly
// instead of going through AnkiConnect.
func (c Config) UsesCollection() bool {
	return strings.TrimSpace(c.CollectionPath) != ""
}

// ExportPath is the export file reused by --stored-cards.
func (c Config) ExportPath() string {
	return filepath.Join(c.DataDir, "cards_retrieved.json")
}

// MediaDir is the working directory for exported media.
func (c Config) MediaDir() string {
	return filepath.Join(c.DataDir, "media")
}

// LayoutPath is the scene layout file reused by --stored-scene.
func (c Config) LayoutPath() string {
	return filepath.Join(c.DataDir, "cranky_layout.json")
}

// LogPath is the rotating application log.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/cranky.log")
	}
	return filepath.Join(c.LogDir, "cranky.log")
}

// TokenAddr is the login listener address.
func (c Config) TokenAddr() string {
	port := c.TokenPort
	if port <= 0 {
		port = defaultTokenPort
	}
	return "127.0.0.1:" + strconv.Itoa(port)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
