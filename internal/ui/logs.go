package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cranky/internal/logtail"
)

// logTailLines is how much of the log file the pane keeps.
const logTailLines = 400

type logPane struct {
	viewport viewport.Model
	lines    []string
	err      error
	follow   bool
}

func newLogPane() logPane {
	return logPane{viewport: viewport.New(80, 5), follow: true}
}

type logLinesMsg struct {
	lines []string
	err   error
}

func (p *logPane) resize(width, height int) {
	p.viewport.Width = max(width-4, 10)
	p.viewport.Height = max(height-3, 1)
}

func (p *logPane) setLines(msg logLinesMsg, theme Theme) {
	p.err = msg.err
	if msg.err != nil {
		return
	}
	atBottom := p.viewport.AtBottom()
	p.lines = msg.lines
	p.viewport.SetContent(colorizeLog(msg.lines, theme))
	if p.follow && (atBottom || p.viewport.YOffset == 0) {
		p.viewport.GotoBottom()
	}
}

func (p logPane) view(theme Theme, width int) string {
	styles := theme.Styles()
	title := styles.AccentText.Bold(true).Render("Log")
	body := p.viewport.View()
	switch {
	case p.err != nil:
		body = styles.DangerText.Render(p.err.Error())
	case len(p.lines) == 0:
		body = styles.FaintText.Render("No log records yet.")
	}
	return styles.LogPanel.Width(max(width-2, 10)).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// colorizeLog renders parsed records with the level colored.
func colorizeLog(lines []string, theme Theme) string {
	styles := theme.Styles()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		rec := logtail.Parse(line)
		if rec.Level == "" {
			out = append(out, styles.MutedText.Render(line))
			continue
		}
		text := rec.Format()
		idx := strings.Index(text, rec.Level)
		if idx < 0 {
			out = append(out, text)
			continue
		}
		out = append(out, styles.FaintText.Render(text[:idx])+
			styles.LevelStyle(rec.Level).Render(rec.Level)+
			styles.Text.Render(text[idx+len(rec.Level):]))
	}
	return strings.Join(out, "\n")
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		return logLinesMsg{lines: lines, err: err}
	}
}
