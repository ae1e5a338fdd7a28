package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/timewarp"
)

const barWidth = 40

func newWarpCmd(root *rootOptions) *cobra.Command {
	var (
		deck     string
		tags     []string
		params   = timewarp.DefaultParams()
		apply    bool
		filtered string
	)
	cmd := &cobra.Command{
		Use:   "warp",
		Short: "Simulate stretched or shifted due dates",
		Long: "Load the review schedule of a deck, move future due dates away from today by --stretch percent " +
			"and by --shift days, and print how many cards fall due on each day. Nothing is written unless " +
			"--apply or --filtered-deck is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			today, err := a.Store.Today(ctx)
			if err != nil {
				return fmt.Errorf("scheduler day: %w", err)
			}
			cards, err := timewarp.Load(ctx, a.Store, deck, tags)
			if err != nil {
				return err
			}
			sim := timewarp.Simulate(cards, today, params)
			printHistogram(w, timewarp.Histogram(sim), params)

			if len(tags) > 0 {
				fresh, err := timewarp.CountRemainingNew(ctx, a.Store, deck, tags)
				if err != nil {
					a.Logger.Warn("count new cards failed", "error", err)
				} else {
					fmt.Fprintf(w, "New cards left with any of %s: %d\n", strings.Join(tags, ", "), fresh)
				}
			}

			if apply {
				moved, err := timewarp.Apply(ctx, a.Store, sim, today, params.HorizonPast)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Moved %d cards (undo step %q).\n", moved, timewarp.UndoLabel)
			}
			if cmd.Flags().Changed("filtered-deck") {
				_, n, err := timewarp.CreateFilteredDeck(ctx, a.Store, sim, filtered)
				if errors.Is(err, anki.ErrUnsupported) {
					return fmt.Errorf("%w: filtered decks need --collection", err)
				}
				if err != nil {
					return err
				}
				name := filtered
				if strings.TrimSpace(name) == "" {
					name = timewarp.DefaultFilteredDeck
				}
				fmt.Fprintf(w, "Filtered deck %q holds %d cards.\n", name, n)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&deck, "deck", "d", "all", "Deck name; subdecks are included")
	f.StringArrayVarP(&tags, "tag", "t", nil, "Required tag (repeatable)")
	f.Float64Var(&params.StretchPct, "stretch", 0, "Stretch future intervals by this percentage")
	f.IntVar(&params.Shift, "shift", 0, "Move due dates by this many days")
	f.BoolVar(&params.CollapseOverdues, "collapse-overdues", false, "Move overdue cards to today before shifting")
	f.IntVar(&params.HorizonPast, "past", params.HorizonPast, "Days before today in the window")
	f.IntVar(&params.HorizonFuture, "future", params.HorizonFuture, "Days after today in the window")
	f.BoolVar(&apply, "apply", false, "Write the simulated due dates back as one undo step")
	f.StringVar(&filtered, "filtered-deck", timewarp.DefaultFilteredDeck, "Build a filtered deck of the simulated cards")
	return cmd
}

// printHistogram writes one line per day of the window that has cards due.
func printHistogram(w io.Writer, counts []int, p timewarp.Params) {
	peak, total := 0, 0
	for _, n := range counts {
		peak = max(peak, n)
		total += n
	}
	fmt.Fprintf(w, "Stretch %+.0f%%, shift %+d days, collapse overdues %t\n", p.StretchPct, p.Shift, p.CollapseOverdues)
	fmt.Fprintf(w, "%d cards due in the window, peak %d per day\n", total, peak)
	if peak == 0 {
		return
	}
	for i, n := range counts {
		if n == 0 {
			continue
		}
		bar := strings.Repeat("█", max(n*barWidth/peak, 1))
		fmt.Fprintf(w, "%+5dd %5d %s\n", i-p.HorizonPast, n, bar)
	}
}
