package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/selection"
	"github.com/five82/cranky/internal/state"
	"github.com/five82/cranky/internal/workflow"
)

const noThemeText = "Operation cancelled: No theme provided."

type exportDoneMsg struct {
	cards []export.Card
	err   error
}

type sceneStartedMsg struct {
	results <-chan workflow.Result
	err     error
}

type sceneResultMsg workflow.Result

func (m Model) startExport() (tea.Model, tea.Cmd) {
	s := m.selector
	if !s.canExport() {
		m.flash = "No cards in scope."
		return m, nil
	}
	m.prefs.Deck = s.deck()
	m.prefs.Tags = s.tagList()
	if text, err := s.mode.MarshalText(); err == nil {
		m.prefs.Mode = string(text)
	}
	m.savePrefs()

	m.flash = ""
	m.screen = screenExport
	m.selector.focusTags = false
	m.selector.tags.Blur()
	return m, exportCmd(m.ctx, m.backend, m.criteria())
}

func (m Model) handleExportDone(msg exportDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.screen = screenSelector
		m.modal = newMessageModal("Export Failed", msg.err.Error(), false)
		return m, nil
	}
	if len(msg.cards) == 0 {
		m.screen = screenSelector
		m.modal = newMessageModal("Export Failed", "No cards were exported.", false)
		return m, nil
	}
	m.cards = msg.cards
	m.screen = screenTheme
	m.themeInput.SetValue("")
	focus := m.themeInput.Focus()
	return m, focus
}

func (m Model) handleThemeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		return m.cancelTheme(), nil
	case key.Matches(msg, m.keys.Confirm):
		theme := strings.TrimSpace(m.themeInput.Value())
		if theme == "" {
			return m.cancelTheme(), nil
		}
		m.themeInput.Blur()
		m.screen = screenProgress
		job := workflow.Job{
			Theme:    theme,
			DeckName: m.selector.deck(),
			Cards:    m.cards,
		}
		return m, startSceneCmd(m.ctx, m.backend, job)
	}
	var cmd tea.Cmd
	m.themeInput, cmd = m.themeInput.Update(msg)
	return m, cmd
}

func (m Model) cancelTheme() Model {
	m.themeInput.Blur()
	m.screen = screenSelector
	m.modal = newMessageModal("No Theme", noThemeText, false)
	return m
}

func (m Model) handleSceneStarted(msg sceneStartedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.screen = screenSelector
		m.modal = newMessageModal("Workflow Error", msg.err.Error(), false)
		return m, nil
	}
	m.results = msg.results
	return m, tea.Batch(waitResultCmd(msg.results), fetchSnapshotCmd(m.state))
}

func (m Model) handleSceneResult(res workflow.Result) (tea.Model, tea.Cmd) {
	m.results = nil
	m.screen = screenSelector
	if m.state != nil {
		m.snapshot = m.state.Snapshot()
	}
	if res.Err != nil {
		title := "Workflow Error"
		var stageErr *workflow.StageError
		if errors.As(res.Err, &stageErr) {
			title = stageErr.Title()
		}
		m.modal = newMessageModal(title, res.Err.Error(), false)
		return m, nil
	}

	url := ""
	if m.backend != nil {
		url = m.backend.DashboardURL()
	}
	body := fmt.Sprintf("Memory palace %s is ready. Opening the dashboard in your browser.", res.SessionID)
	if url != "" {
		body += "\n\n" + url
	}
	m.modal = newMessageModal("Scene Ready", body, true)
	if url == "" {
		return m, nil
	}
	return m, openURLCmd(m.openURL, url)
}

func (m Model) renderExporting() string {
	styles := m.theme.Styles()
	return styles.Panel.Render(m.spinner.View() + styles.Text.Render(" Exporting cards from ") +
		styles.AccentText.Render(m.selector.deck()) + styles.Text.Render("..."))
}

func (m Model) renderThemePrompt() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Memory Palace Theme"))
	b.WriteString("\n\n")
	n := len(m.cards)
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("%d %s exported. Enter a theme for the memory palace:", n, plural(n, "card", "cards"))))
	b.WriteString("\n\n")
	b.WriteString(m.themeInput.View())
	return styles.FocusPanel.Render(b.String())
}

func (m Model) renderProgress() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(styles.Text.Bold(true).Render(" Generating scene (this may take several minutes)..."))
	b.WriteString("\n\n")

	stage := snap.Stage
	if stage == state.StageIdle {
		stage = state.StageScene
	}
	b.WriteString(styles.MutedText.Render("Stage     "))
	b.WriteString(styles.StatusStyle(string(stage)).Render(string(stage)))
	b.WriteString("\n")
	if snap.Theme != "" {
		b.WriteString(styles.MutedText.Render("Theme     "))
		b.WriteString(styles.Text.Render(snap.Theme))
		b.WriteString("\n")
	}
	b.WriteString(styles.MutedText.Render("Cards     "))
	b.WriteString(styles.Text.Render(fmt.Sprintf("%d", max(snap.Cards, len(m.cards)))))
	b.WriteString("\n")
	if snap.SessionID != "" {
		b.WriteString(styles.MutedText.Render("Session   "))
		b.WriteString(styles.Text.Render(snap.SessionID))
		b.WriteString("\n")
	}
	if snap.Uploaded > 0 {
		b.WriteString(styles.MutedText.Render("Uploaded  "))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%d %s", snap.Uploaded, plural(snap.Uploaded, "file", "files"))))
		b.WriteString("\n")
	}
	if snap.Attempts > 0 {
		b.WriteString(styles.MutedText.Render("Polls     "))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%d/%d", snap.Attempts, snap.MaxAttempts)))
		if snap.Status != "" {
			b.WriteString(styles.FaintText.Render("  " + snap.Status))
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.MutedText.Render("Elapsed   "))
	b.WriteString(styles.Text.Render(snap.Elapsed().Round(time.Second).String()))
	if snap.IsOffline() {
		b.WriteString("\n\n")
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("Service not answering (%d failed polls). Still trying.", snap.ConsecutiveFailures)))
	}
	return styles.Panel.Render(b.String())
}

func exportCmd(ctx context.Context, backend Backend, criteria selection.Criteria) tea.Cmd {
	return func() tea.Msg {
		if backend == nil {
			return exportDoneMsg{err: errors.New("no backend")}
		}
		cards, err := backend.Export(ctx, criteria, nil)
		return exportDoneMsg{cards: cards, err: err}
	}
}

func startSceneCmd(ctx context.Context, backend Backend, job workflow.Job) tea.Cmd {
	return func() tea.Msg {
		if backend == nil {
			return sceneStartedMsg{err: errors.New("no backend")}
		}
		results, err := backend.StartScene(ctx, job)
		return sceneStartedMsg{results: results, err: err}
	}
}

// waitResultCmd blocks until the run delivers its result.
func waitResultCmd(results <-chan workflow.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return sceneResultMsg{Err: errors.New("scene run ended without a result")}
		}
		return sceneResultMsg(res)
	}
}
