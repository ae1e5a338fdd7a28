package app

import (
	"context"
	"fmt"

	"github.com/five82/cranky/internal/prefs"
	"github.com/five82/cranky/internal/ui"
)

var _ ui.Backend = (*App)(nil)

// Run boots the cranky TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	a, err := New(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, _ := prefs.Load(prefsPath)

	login := a.LoginManager()
	defer login.Cancel()

	a.Logger.Info("tui started", "collection", a.Config.UsesCollection())
	if err := ui.Run(ui.Options{
		Context:   ctx,
		Backend:   a,
		Store:     a.Store,
		State:     a.State,
		Login:     login,
		LogPath:   a.Config.LogPath(),
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
		Logger:    a.Logger,
	}); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
