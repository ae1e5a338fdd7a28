// Package cli implements the cranky commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/app"
)

// ExitError asks for a specific process exit code. A nil Err exits quietly.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

type rootOptions struct {
	configPath     string
	collectionPath string
	verbose        bool
}

// newApp opens the application. Tests replace it.
var newApp = app.New

func (o *rootOptions) open(cmd *cobra.Command) (*app.App, error) {
	return newApp(app.Options{
		ConfigPath:     o.configPath,
		CollectionPath: o.collectionPath,
		Verbose:        o.verbose,
		Stderr:         cmd.ErrOrStderr(),
	})
}

// NewRootCmd builds the cranky command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "cranky",
		Short: "Turn Anki cards into memory palaces",
		Long: "cranky exports your hardest Anki cards, sends them to the Cranky service " +
			"and opens the memory palace it builds. Without a subcommand it starts the terminal UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath:     opts.configPath,
				CollectionPath: opts.collectionPath,
				Verbose:        opts.verbose,
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: ~/.config/cranky/config.toml)")
	pf.StringVar(&opts.collectionPath, "collection", "", "Read this collection.anki2 directly instead of using AnkiConnect")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging, mirrored to stderr outside the TUI")

	root.AddCommand(
		newExportCmd(opts),
		newRunCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWarpCmd(opts),
	)
	return root
}

// Execute runs cranky with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintf(stderr, "cranky: %v\n", exit.Err)
		}
		return exit.Code
	}
	fmt.Fprintf(stderr, "cranky: %v\n", err)
	return 1
}
