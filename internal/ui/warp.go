package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/timewarp"
)

const (
	stretchStep     = 10
	histogramHeight = 8
)

var barLevels = []rune(" ▁▂▃▄▅▆▇█")

type warpModel struct {
	deck string
	tags []string

	loading bool
	busy    bool
	err     error
	today   int
	cards   []timewarp.CardData
	sim     []timewarp.CardData
	params  timewarp.Params
}

func newWarpModel() warpModel {
	return warpModel{params: timewarp.DefaultParams()}
}

func (w *warpModel) simulate() {
	w.sim = timewarp.Simulate(w.cards, w.today, w.params)
}

type warpLoadedMsg struct {
	cards []timewarp.CardData
	today int
	err   error
}

type warpAppliedMsg struct {
	moved int
	err   error
}

type warpFilteredMsg struct {
	name  string
	cards int
	err   error
}

func (m Model) handleWarpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := &m.warp
	if key.Matches(msg, m.keys.Escape) {
		m.screen = screenSelector
		return m, nil
	}
	if w.loading || w.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.StretchUp):
		w.params.StretchPct += stretchStep
	case key.Matches(msg, m.keys.StretchDown):
		w.params.StretchPct = max(w.params.StretchPct-stretchStep, -90)
	case key.Matches(msg, m.keys.ShiftUp):
		w.params.Shift++
	case key.Matches(msg, m.keys.ShiftDown):
		w.params.Shift--
	case key.Matches(msg, m.keys.Collapse):
		w.params.CollapseOverdues = !w.params.CollapseOverdues
	case key.Matches(msg, m.keys.Reset):
		w.params = timewarp.DefaultParams()
	case key.Matches(msg, m.keys.Apply):
		w.busy = true
		m.flash = "Applying due dates..."
		return m, applyWarpCmd(m.ctx, m.store, w.sim, w.today, w.params.HorizonPast)
	case key.Matches(msg, m.keys.Filtered):
		w.busy = true
		m.flash = "Building filtered deck..."
		return m, filteredDeckCmd(m.ctx, m.store, w.sim, timewarp.DefaultFilteredDeck)
	default:
		return m, nil
	}
	w.simulate()
	return m, nil
}

func (m Model) handleWarpMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	w := &m.warp
	switch msg := msg.(type) {
	case warpLoadedMsg:
		w.loading = false
		w.err = msg.err
		if msg.err != nil {
			m.logger.Error("time warp load failed", "error", msg.err)
			return m, nil
		}
		w.cards = msg.cards
		w.today = msg.today
		w.simulate()
	case warpAppliedMsg:
		w.busy = false
		if msg.err != nil {
			m.flash = ""
			m.modal = newMessageModal("Time Warp Failed", msg.err.Error(), false)
			return m, nil
		}
		m.flash = fmt.Sprintf("Moved %d %s. Undo in Anki with Edit > Undo %s.", msg.moved, plural(msg.moved, "card", "cards"), timewarp.UndoLabel)
		w.loading = true
		return m, loadWarpCmd(m.ctx, m.store, w.deck, w.tags)
	case warpFilteredMsg:
		w.busy = false
		switch {
		case errors.Is(msg.err, anki.ErrUnsupported):
			m.flash = "Filtered decks need the collection backend (--collection)."
		case msg.err != nil:
			m.flash = ""
			m.modal = newMessageModal("Filtered Deck Failed", msg.err.Error(), false)
		case msg.cards == 0:
			m.flash = "No simulated review cards fall inside the window."
		default:
			m.flash = fmt.Sprintf("Filtered deck %q created with %d %s.", msg.name, msg.cards, plural(msg.cards, "card", "cards"))
		}
	}
	return m, nil
}

func (m Model) renderWarp() string {
	styles := m.theme.Styles()
	w := m.warp

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Time Warp"))
	b.WriteString(styles.MutedText.Render("  " + w.deck))
	if len(w.tags) > 0 {
		b.WriteString(styles.FaintText.Render("  tags: " + strings.Join(w.tags, " ")))
	}
	b.WriteString("\n\n")

	switch {
	case w.loading:
		b.WriteString(m.spinner.View() + styles.MutedText.Render(" loading cards"))
		return styles.Panel.Render(b.String())
	case w.err != nil:
		b.WriteString(styles.DangerText.Render("Could not load cards: " + w.err.Error()))
		return styles.Panel.Render(b.String())
	}

	collapse := "off"
	if w.params.CollapseOverdues {
		collapse = "on"
	}
	b.WriteString(styles.MutedText.Render("Stretch "))
	b.WriteString(styles.WarningText.Render(fmt.Sprintf("%+.0f%%", w.params.StretchPct)))
	b.WriteString(styles.MutedText.Render("   Shift "))
	b.WriteString(styles.WarningText.Render(fmt.Sprintf("%+d days", w.params.Shift)))
	b.WriteString(styles.MutedText.Render("   Collapse overdues "))
	b.WriteString(styles.WarningText.Render(collapse))
	b.WriteString("\n")

	reviews := 0
	for _, c := range w.cards {
		if c.IsReview() {
			reviews++
		}
	}
	counts := timewarp.Histogram(w.sim)
	inWindow, peak := 0, 0
	for _, n := range counts {
		inWindow += n
		peak = max(peak, n)
	}
	b.WriteString(styles.FaintText.Render(fmt.Sprintf("%d cards, %d review, %d due in window, peak %d/day",
		len(w.cards), reviews, inWindow, peak)))
	b.WriteString("\n\n")

	width := max(m.width-8, 20)
	for _, line := range renderHistogram(counts, width, histogramHeight) {
		b.WriteString(styles.InfoText.Render(line))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render(histogramAxis(w.params, width)))
	return styles.Panel.Render(b.String())
}

// renderHistogram draws counts as vertical bars, summing neighbouring days
// into one column when there are more days than width.
func renderHistogram(counts []int, width, height int) []string {
	if len(counts) == 0 || width <= 0 || height <= 0 {
		return nil
	}
	per := (len(counts) + width - 1) / width
	cols := make([]int, 0, width)
	for i := 0; i < len(counts); i += per {
		sum := 0
		for _, n := range counts[i:min(i+per, len(counts))] {
			sum += n
		}
		cols = append(cols, sum)
	}
	peak := 0
	for _, n := range cols {
		peak = max(peak, n)
	}

	steps := len(barLevels) - 1
	lines := make([]string, height)
	for row := 0; row < height; row++ {
		var sb strings.Builder
		floor := (height - 1 - row) * steps
		for _, n := range cols {
			level := 0
			if peak > 0 {
				level = (n*height*steps + peak - 1) / peak
			}
			fill := min(max(level-floor, 0), steps)
			sb.WriteRune(barLevels[fill])
		}
		lines[row] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

// histogramAxis labels the window edges and today.
func histogramAxis(p timewarp.Params, width int) string {
	left := fmt.Sprintf("-%dd", p.HorizonPast)
	right := fmt.Sprintf("+%dd", p.HorizonFuture)
	window := max(p.Window(), 1)
	per := (window + width - 1) / width
	cols := (window + per - 1) / per
	todayCol := p.HorizonPast / per

	axis := []rune(strings.Repeat(" ", max(cols, len(left)+len(right)+8)))
	copy(axis, []rune(left))
	if todayCol >= len(left)+1 && todayCol+5 < len(axis)-len(right) {
		copy(axis[todayCol:], []rune("today"))
	}
	copy(axis[len(axis)-len(right):], []rune(right))
	return string(axis)
}

func loadWarpCmd(ctx context.Context, store anki.Store, deck string, tags []string) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return warpLoadedMsg{err: errors.New("no host store")}
		}
		today, err := store.Today(ctx)
		if err != nil {
			return warpLoadedMsg{err: fmt.Errorf("scheduler day: %w", err)}
		}
		cards, err := timewarp.Load(ctx, store, deck, tags)
		return warpLoadedMsg{cards: cards, today: today, err: err}
	}
}

func applyWarpCmd(ctx context.Context, store anki.Store, cards []timewarp.CardData, today, horizonPast int) tea.Cmd {
	return func() tea.Msg {
		moved, err := timewarp.Apply(ctx, store, cards, today, horizonPast)
		return warpAppliedMsg{moved: moved, err: err}
	}
}

func filteredDeckCmd(ctx context.Context, store anki.Store, cards []timewarp.CardData, name string) tea.Cmd {
	return func() tea.Msg {
		_, n, err := timewarp.CreateFilteredDeck(ctx, store, cards, name)
		return warpFilteredMsg{name: name, cards: n, err: err}
	}
}
