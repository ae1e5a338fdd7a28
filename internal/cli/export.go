package cli

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/selection"
)

type selectFlags struct {
	deck  string
	tags  []string
	mode  string
	limit int
	seed  uint64
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.deck, "deck", "d", "all", "Deck name; subdecks are included")
	cmd.Flags().StringArrayVarP(&f.tags, "tag", "t", nil, "Required tag (repeatable)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "lapses", "Selection mode: lapses, reps or random")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Cards per batch (default: config limit)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Seed for random mode (0 picks one)")
}

func (f *selectFlags) rng() *rand.Rand {
	if f.seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(f.seed, f.seed))
}

func (f *selectFlags) criteria(build func(string, []string, selection.Mode) selection.Criteria) (selection.Criteria, error) {
	mode, err := selection.ParseMode(f.mode)
	if err != nil {
		return selection.Criteria{}, err
	}
	c := build(f.deck, f.tags, mode)
	if f.limit > 0 {
		c.Limit = f.limit
	}
	return c, nil
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		sel selectFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a batch of cards and their media",
		Long: "Select cards, convert them to plain front/back text and copy the images they reference " +
			"into the media directory. The batch is written to the data directory and, with --out, " +
			"to a JSON or YAML file of your choice.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			criteria, err := sel.criteria(a.Criteria)
			if err != nil {
				return err
			}
			cards, err := a.Export(cmd.Context(), criteria, sel.rng())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			path := a.Config.ExportPath()
			if out != "" {
				if err := export.Save(out, cards); err != nil {
					return err
				}
				path = out
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Exported %d cards to %s\n", len(cards), path)
			fmt.Fprintf(w, "Media in %s\n", a.Config.MediaDir())
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the batch here (.json, .yaml or .yml)")
	return cmd
}
