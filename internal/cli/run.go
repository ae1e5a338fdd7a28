package cli

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/app"
	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/media"
	"github.com/five82/cranky/internal/palace"
	"github.com/five82/cranky/internal/ui"
	"github.com/five82/cranky/internal/workflow"
)

const consentText = `
 This tool transfers Anki card content and media to the Cranky API server
 and to the model endpoints it uses for layout generation.

 By using Cranky, you acknowledge that you do so at your own discretion and risk.

 The application providers accept no responsibility for any loss, misuse, or
 harm arising from use of this tool.
`

// errCancelled ends a run the user declined to continue.
var errCancelled = errors.New("cancelled")

const ankiConnectAddon = "https://ankiweb.net/shared/info/2055492159"

// Prompts used by run. Tests replace them.
var (
	askConfirm = func(cmd *cobra.Command, question string) (bool, error) {
		return ui.Confirm(question, ttyOptions(cmd)...)
	}
	askText = func(cmd *cobra.Command, question string) (string, error) {
		return ui.Prompt(question, "", ttyOptions(cmd)...)
	}
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		sel         selectFlags
		storedScene bool
		storedCards bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a memory palace without the TUI",
		Long: "Export cards, ask for a theme, generate the scene layout, upload media and print the viewer URL. " +
			"--stored-cards reuses the last export file and --stored-scene reuses the last layout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return legacyRun(cmd, a, sel, storedScene, storedCards)
		},
	}
	sel.register(cmd)
	cmd.Flags().BoolVar(&storedScene, "stored-scene", false, "Use the existing layout from disk")
	cmd.Flags().BoolVar(&storedCards, "stored-cards", false, "Use the cached export instead of refreshing")
	return cmd
}

func legacyRun(cmd *cobra.Command, a *app.App, sel selectFlags, storedScene, storedCards bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	refresh := !storedCards
	regenerate := !storedScene || refresh

	if refresh {
		fmt.Fprintln(w, "Checking Anki...")
		if err := a.CheckHost(ctx); err != nil {
			fmt.Fprintf(w, "Anki is not available at %s.\n", a.Config.AnkiConnectURL)
			fmt.Fprintf(w, "Install the AnkiConnect add-on: %s\n", ankiConnectAddon)
			return &ExitError{Code: 1}
		}
		fmt.Fprintln(w, "Anki detected.")
	}

	fmt.Fprint(w, consentText)
	ok, err := askConfirm(cmd, "Do you agree to proceed?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "Operation cancelled.")
		return nil
	}

	criteria, err := sel.criteria(a.Criteria)
	if err != nil {
		return err
	}
	cards, err := export.Cached(a.Config.ExportPath(), refresh, func() ([]export.Card, error) {
		if err := media.CleanDir(a.Config.MediaDir()); err != nil {
			a.Logger.Warn("clean media dir failed", "error", err)
		}
		return a.Exporter().Export(ctx, criteria, sel.rng())
	})
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}
	fmt.Fprintf(w, "Loaded %d cards.\n", len(cards))

	client, err := a.Palace()
	if err != nil {
		return err
	}

	var scene palace.Scene
	if regenerate {
		scene, err = generate(cmd, a, client, cards)
		if errors.Is(err, errCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
	} else {
		scene, err = palace.LoadScene(a.Config.LayoutPath())
		if errors.Is(err, palace.ErrNoLayout) {
			fmt.Fprintln(w, "Layout file not found. Please regenerate the scene.")
			return &ExitError{Code: 1}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Layout loaded from %s\n", a.Config.LayoutPath())
	}

	fmt.Fprintln(w, "Generating HTML viewer...")
	url, err := client.GenerateViewer(ctx, scene.SessionID, scene.Layout)
	if err != nil {
		return fmt.Errorf("generate viewer: %w", err)
	}
	fmt.Fprintln(w, "Viewer created successfully.")
	fmt.Fprintf(w, "Viewer URL:\n %s\n", url)
	return nil
}

func generate(cmd *cobra.Command, a *app.App, client *palace.Client, cards []export.Card) (palace.Scene, error) {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	theme, err := askText(cmd, "Enter a theme for the memory palace:")
	if err != nil {
		return palace.Scene{}, err
	}
	if strings.TrimSpace(theme) == "" {
		fmt.Fprintln(w, "Operation cancelled: No theme provided.")
		return palace.Scene{}, errCancelled
	}

	sessionID := newSessionID()
	fmt.Fprintf(w, "Generating layout for theme: %q (session %s)\n", theme, sessionID)
	scene, err := client.GenerateScene(ctx, palace.SceneRequest{
		Theme:     theme,
		Cards:     cards,
		SessionID: sessionID,
	})
	if err != nil {
		return palace.Scene{}, fmt.Errorf("generate scene: %w", err)
	}
	if !scene.HasObjects() {
		return palace.Scene{}, errors.New("scene layout is empty, aborting")
	}
	if err := palace.SaveScene(a.Config.LayoutPath(), scene); err != nil {
		return palace.Scene{}, err
	}
	fmt.Fprintf(w, "Layout saved to %s\n", a.Config.LayoutPath())

	paths := workflow.MediaPaths(a.Config.MediaDir(), cards)
	if len(paths) > 0 {
		if err := client.UploadMedia(ctx, scene.SessionID, paths); err != nil {
			fmt.Fprintf(w, "Media upload failed: %v\n", err)
		} else {
			fmt.Fprintf(w, "Uploaded %d media files to server.\n", len(paths))
		}
	}
	return scene, nil
}

// newSessionID is the first 8 hex digits of a random UUID.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func ttyOptions(cmd *cobra.Command) []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout())}
}
