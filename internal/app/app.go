package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/auth"
	"github.com/five82/cranky/internal/config"
	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/extract"
	"github.com/five82/cranky/internal/logging"
	"github.com/five82/cranky/internal/media"
	"github.com/five82/cranky/internal/palace"
	"github.com/five82/cranky/internal/selection"
	"github.com/five82/cranky/internal/state"
	"github.com/five82/cranky/internal/workflow"
)

// availabilityTimeout bounds the host preflight check.
const availabilityTimeout = 3 * time.Second

// ErrHostUnavailable is returned by CheckHost when the host store does not
// answer.
var ErrHostUnavailable = errors.New("anki is not reachable")

// Options configure the cranky application.
type Options struct {
	ConfigPath string
	// CollectionPath overrides collection_path from the config file.
	CollectionPath string
	PrefsPath      string // empty uses default ~/.config/cranky/prefs.toml
	Verbose        bool
	// Stderr mirrors log records in verbose mode. The TUI leaves it nil.
	Stderr io.Writer
}

// App holds everything a command needs. Close releases the host store and
// the log file.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     anki.Store
	Tokens    *auth.TokenStore
	State     *state.Store
	Templates *extract.Cache
	PrefsPath string

	log *logging.Logger
}

// New loads configuration and opens the host store.
func New(opts Options) (*App, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load cranky config: %w", err)
	}
	if p := strings.TrimSpace(opts.CollectionPath); p != "" {
		cfg.CollectionPath = p
	}

	var mirror io.Writer
	if opts.Verbose {
		mirror = opts.Stderr
	}
	log, err := logging.New(logging.Options{Path: cfg.LogPath(), Verbose: opts.Verbose, Stderr: mirror})
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.Debug("host store opened", "collection", cfg.UsesCollection(), "anki_connect", cfg.AnkiConnectURL)

	return &App{
		Config:    cfg,
		Logger:    log.Logger,
		Store:     store,
		Tokens:    auth.NewTokenStore(cfg.DataDir, log.Logger),
		State:     &state.Store{},
		Templates: extract.NewCache(),
		PrefsPath: opts.PrefsPath,
		log:       log,
	}, nil
}

func openStore(cfg config.Config) (anki.Store, error) {
	if cfg.UsesCollection() {
		col, err := anki.OpenCollection(cfg.CollectionPath)
		if err != nil {
			return nil, fmt.Errorf("open collection: %w", err)
		}
		return col, nil
	}
	client, err := anki.NewConnectClient(cfg.AnkiConnectURL)
	if err != nil {
		return nil, fmt.Errorf("init anki connect client: %w", err)
	}
	return client, nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	errs = append(errs, a.log.Close())
	return errors.Join(errs...)
}

// CheckHost verifies the host store answers before any work starts.
func (a *App) CheckHost(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()
	version, err := a.Store.Version(ctx)
	if err != nil {
		a.Logger.Warn("host check failed", "error", err)
		return fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	a.Logger.Debug("host available", "version", version)
	return nil
}

// Criteria fills in the configured batch size and suspension filter.
func (a *App) Criteria(deck string, tags []string, mode selection.Mode) selection.Criteria {
	return selection.Criteria{
		Deck:             deck,
		Tags:             tags,
		Mode:             mode,
		Limit:            a.Config.Limit,
		ExcludeSuspended: a.Config.ExcludeSuspended,
	}
}

// Exporter copies media into the configured media directory.
func (a *App) Exporter() *export.Exporter {
	return &export.Exporter{
		Store: a.Store,
		Media: &media.Transfer{
			Dir:          a.Config.MediaDir(),
			Source:       a.Store,
			MinDimension: media.DefaultMinDimension,
			Logger:       a.Logger,
		},
		Templates: a.Templates,
		Logger:    a.Logger,
	}
}

// Export empties the media directory, exports the batch and writes the
// export file. A nil rng uses a random seed.
func (a *App) Export(ctx context.Context, criteria selection.Criteria, rng *rand.Rand) ([]export.Card, error) {
	if err := media.CleanDir(a.Config.MediaDir()); err != nil {
		a.Logger.Warn("clean media dir failed", "error", err)
	}
	cards, err := a.Exporter().Export(ctx, criteria, rng)
	if err != nil {
		return cards, err
	}
	if err := export.Save(a.Config.ExportPath(), cards); err != nil {
		return cards, err
	}
	return cards, nil
}

// Token returns the stored token, clearing it first when it has expired.
// expired reports whether a token was dropped.
func (a *App) Token() (token string, expired bool) {
	token, source := a.Tokens.Load()
	if token == "" {
		return "", false
	}
	if auth.Expired(token, time.Now()) {
		a.Logger.Info("stored token expired", "source", string(source))
		if err := a.Tokens.Clear(); err != nil {
			a.Logger.Warn("clear expired token failed", "error", err)
		}
		return "", true
	}
	return token, false
}

// Palace returns a service client carrying the current token and coupon.
func (a *App) Palace() (*palace.Client, error) {
	client, err := palace.NewClient(a.Config.APIBase)
	if err != nil {
		return nil, fmt.Errorf("init palace client: %w", err)
	}
	token, _ := a.Token()
	return client.WithToken(token).WithCoupon(a.Config.Coupon), nil
}

// Runner reports progress to a.State.
func (a *App) Runner(client workflow.SceneClient) *workflow.Runner {
	return &workflow.Runner{
		Client:       client,
		PollInterval: a.Config.PollInterval,
		MaxPolls:     a.Config.MaxPolls,
		Store:        a.State,
		Logger:       a.Logger,
	}
}

// LoginManager starts browser logins that store into a.Tokens.
func (a *App) LoginManager() *auth.Manager {
	return &auth.Manager{
		Addr:     a.Config.TokenAddr(),
		LoginURL: palace.LoginURL(a.Config.FrontBase),
		Store:    a.Tokens,
		Logger:   a.Logger,
	}
}

// DashboardURL is the dashboard link for the current token.
func (a *App) DashboardURL() string {
	token, _ := a.Token()
	return palace.DashboardURL(a.Config.FrontBase, token)
}

// StartScene starts a scene run for cards exported into the media
// directory.
func (a *App) StartScene(ctx context.Context, job workflow.Job) (<-chan workflow.Result, error) {
	client, err := a.Palace()
	if err != nil {
		return nil, err
	}
	if job.MediaDir == "" {
		job.MediaDir = a.Config.MediaDir()
	}
	return a.Runner(client).Start(ctx, job), nil
}

// SaveToken stores a token obtained outside the login listener.
func (a *App) SaveToken(token string) error {
	return a.Tokens.Save(strings.TrimSpace(token))
}

// ClearToken logs out.
func (a *App) ClearToken() error {
	return a.Tokens.Clear()
}
