package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// messageModal shows a titled message until enter or esc.
type messageModal struct {
	title   string
	body    string
	success bool
}

func newMessageModal(title, body string, success bool) messageModal {
	return messageModal{title: title, body: body, success: success}
}

func (m messageModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(k, keys.Confirm, keys.Escape) {
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m messageModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	border := theme.Danger
	title := styles.DangerText.Render(m.title)
	if m.success {
		border = theme.Success
		title = styles.SuccessText.Render(m.title)
	}

	boxWidth := min(64, max(width-4, 20))
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Width(boxWidth - 6).Render(m.body))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("enter to close"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Width(boxWidth)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
