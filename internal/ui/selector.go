package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/prefs"
	"github.com/five82/cranky/internal/selection"
)

// allDecks is the first deck entry; it matches every deck.
const allDecks = "all"

type selectorModel struct {
	decks     []string
	cursor    int
	tags      textinput.Model
	hostTags  []string
	mode      selection.Mode
	focusTags bool

	loaded  bool
	loadErr error

	seq      int
	counting bool
	count    int
	countErr error

	// wantDeck is the remembered deck, applied once the list loads.
	wantDeck string
}

func newSelectorModel(p prefs.Prefs) selectorModel {
	input := textinput.New()
	input.Prompt = "Tags: "
	input.Placeholder = "space separated, ctrl+n completes"
	input.SetValue(strings.Join(p.Tags, " "))

	mode := selection.MostLapses
	if p.Mode != "" {
		if parsed, err := selection.ParseMode(p.Mode); err == nil {
			mode = parsed
		}
	}
	return selectorModel{
		decks:    []string{allDecks},
		tags:     input,
		mode:     mode,
		wantDeck: p.Deck,
	}
}

func (s selectorModel) deck() string {
	if s.cursor < 0 || s.cursor >= len(s.decks) {
		return allDecks
	}
	return s.decks[s.cursor]
}

// tagList splits the tag input on spaces and commas.
func (s selectorModel) tagList() []string {
	return strings.FieldsFunc(s.tags.Value(), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

func (s selectorModel) canExport() bool {
	return s.loaded && !s.counting && s.countErr == nil && s.count > 0
}

// completeTag replaces the word being typed with the first host tag it
// prefixes, case-insensitively.
func completeTag(value string, hostTags []string) (string, bool) {
	cut := strings.LastIndexAny(value, " ,") + 1
	partial := strings.ToLower(value[cut:])
	if partial == "" {
		return value, false
	}
	for _, tag := range hostTags {
		if strings.HasPrefix(strings.ToLower(tag), partial) {
			return value[:cut] + tag + " ", true
		}
	}
	return value, false
}

func (s *selectorModel) applyCount(msg countMsg) {
	if msg.seq != s.seq {
		return
	}
	s.counting = false
	s.count = msg.n
	s.countErr = msg.err
}

type decksMsg struct {
	decks []string
	tags  []string
	err   error
}

type countMsg struct {
	seq int
	n   int
	err error
}

func (m Model) handleDecks(msg decksMsg) (tea.Model, tea.Cmd) {
	s := &m.selector
	s.loaded = true
	s.loadErr = msg.err
	if msg.err != nil {
		m.logger.Error("load decks failed", "error", msg.err)
		return m, nil
	}
	s.decks = append([]string{allDecks}, msg.decks...)
	s.hostTags = msg.tags
	s.cursor = 0
	if s.wantDeck != "" {
		if i := slices.Index(s.decks, s.wantDeck); i >= 0 {
			s.cursor = i
		}
		s.wantDeck = ""
	}
	recount := m.recount()
	return m, recount
}

// recount starts a count for the current criteria. Older results are
// ignored when they arrive.
func (m *Model) recount() tea.Cmd {
	m.selector.seq++
	m.selector.counting = true
	return countCmd(m.ctx, m.store, m.criteria(), m.selector.seq)
}

func (m Model) criteria() selection.Criteria {
	s := m.selector
	if m.backend == nil {
		return selection.Criteria{Deck: s.deck(), Tags: s.tagList(), Mode: s.mode}
	}
	return m.backend.Criteria(s.deck(), s.tagList(), s.mode)
}

func (m Model) handleSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.selector
	if key.Matches(msg, m.keys.Tab) {
		s.focusTags = !s.focusTags
		if s.focusTags {
			focus := s.tags.Focus()
			return m, focus
		}
		s.tags.Blur()
		return m, nil
	}

	if s.focusTags {
		switch {
		case key.Matches(msg, m.keys.Escape):
			s.focusTags = false
			s.tags.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			return m.startExport()
		case key.Matches(msg, m.keys.Complete):
			if value, ok := completeTag(s.tags.Value(), s.hostTags); ok {
				s.tags.SetValue(value)
				s.tags.CursorEnd()
				recount := m.recount()
				return m, recount
			}
			return m, nil
		}
		before := s.tags.Value()
		var cmd tea.Cmd
		s.tags, cmd = s.tags.Update(msg)
		if s.tags.Value() != before {
			recount := m.recount()
			return m, tea.Batch(cmd, recount)
		}
		return m, cmd
	}

	prev := s.cursor
	switch {
	case key.Matches(msg, m.keys.Up):
		if s.cursor > 0 {
			s.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if s.cursor < len(s.decks)-1 {
			s.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		s.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		s.cursor = len(s.decks) - 1
	case key.Matches(msg, m.keys.CycleMode):
		s.mode = s.mode.Next()
		recount := m.recount()
		return m, recount
	case key.Matches(msg, m.keys.Confirm):
		return m.startExport()
	case key.Matches(msg, m.keys.Dashboard):
		if !m.loggedIn || m.backend == nil {
			m.flash = "Log in to open the dashboard."
			return m, nil
		}
		return m, openURLCmd(m.openURL, m.backend.DashboardURL())
	case key.Matches(msg, m.keys.TimeWarp):
		m.screen = screenWarp
		m.warp.deck = s.deck()
		m.warp.tags = s.tagList()
		m.warp.loading = true
		return m, loadWarpCmd(m.ctx, m.store, m.warp.deck, m.warp.tags)
	case key.Matches(msg, m.keys.Logout):
		if m.backend != nil {
			if err := m.backend.ClearToken(); err != nil {
				m.flash = "Log out failed: " + err.Error()
				return m, nil
			}
		}
		m.loggedIn = false
		m.screen = screenLogin
		m.flash = "Logged out."
		return m, nil
	}
	if s.cursor != prev {
		recount := m.recount()
		return m, recount
	}
	return m, nil
}

func (m Model) renderSelector() string {
	styles := m.theme.Styles()
	s := m.selector

	listHeight := max(m.height-10, 3)
	if m.showLogs {
		listHeight = max(listHeight-m.logPaneHeight(), 3)
	}
	start := 0
	if s.cursor >= listHeight {
		start = s.cursor - listHeight + 1
	}
	deckWidth := max(m.width/2-6, 16)

	var decks strings.Builder
	decks.WriteString(styles.AccentText.Bold(true).Render("Deck"))
	decks.WriteString("\n")
	switch {
	case !s.loaded:
		decks.WriteString(m.spinner.View() + styles.MutedText.Render(" loading decks"))
	case s.loadErr != nil:
		decks.WriteString(styles.DangerText.Render("Could not load decks: " + s.loadErr.Error()))
	default:
		end := min(start+listHeight, len(s.decks))
		for i := start; i < end; i++ {
			name := padRight(truncate(s.decks[i], deckWidth), deckWidth)
			switch {
			case i == s.cursor && s.focusTags:
				decks.WriteString(styles.Cursor.Render(name))
			case i == s.cursor:
				decks.WriteString(styles.Selected.Render(name))
			default:
				decks.WriteString(styles.Text.Render(name))
			}
			if i < end-1 {
				decks.WriteString("\n")
			}
		}
	}

	var side strings.Builder
	side.WriteString(styles.AccentText.Bold(true).Render("Filter"))
	side.WriteString("\n")
	side.WriteString(s.tags.View())
	side.WriteString("\n\n")
	side.WriteString(styles.MutedText.Render("Mode: "))
	side.WriteString(styles.WarningText.Render(s.mode.String()))
	side.WriteString("\n\n")
	side.WriteString(m.renderCount())
	if !s.canExport() && s.loaded && !s.counting {
		side.WriteString("\n")
		side.WriteString(styles.FaintText.Render("Nothing to export"))
	}

	deckPanel, sidePanel := styles.FocusPanel, styles.Panel
	if s.focusTags {
		deckPanel, sidePanel = styles.Panel, styles.FocusPanel
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		deckPanel.Width(deckWidth+2).Render(decks.String()),
		sidePanel.Width(max(m.width-deckWidth-8, 20)).Render(side.String()),
	)
}

func (m Model) renderCount() string {
	styles := m.theme.Styles()
	s := m.selector
	switch {
	case s.counting:
		return styles.MutedText.Render("Cards in scope: …")
	case s.countErr != nil:
		return styles.DangerText.Render("Cards in scope: error")
	case s.count == 0:
		return styles.WarningText.Render("Cards in scope: 0")
	default:
		return styles.SuccessText.Render(fmt.Sprintf("Cards in scope: %d", s.count))
	}
}

func loadDecksCmd(ctx context.Context, store anki.Store) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return decksMsg{err: fmt.Errorf("no host store")}
		}
		decks, err := store.DeckNames(ctx)
		if err != nil {
			return decksMsg{err: fmt.Errorf("deck names: %w", err)}
		}
		tags, err := store.Tags(ctx)
		if err != nil {
			return decksMsg{err: fmt.Errorf("tags: %w", err)}
		}
		return decksMsg{decks: decks, tags: tags}
	}
}

func countCmd(ctx context.Context, store anki.Store, criteria selection.Criteria, seq int) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return countMsg{seq: seq, err: fmt.Errorf("no host store")}
		}
		n, err := selection.Count(ctx, store, criteria)
		return countMsg{seq: seq, n: n, err: err}
	}
}
