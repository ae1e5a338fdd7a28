package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/cranky/internal/auth"
)

const loginInProgressText = "Login already in progress. Finish it in the browser tab that was opened, or press l again once that page is closed."

type loginModel struct {
	input   textinput.Model
	pasting bool
	waiting bool
	message string
}

func newLoginModel() loginModel {
	input := textinput.New()
	input.Prompt = "Token: "
	input.Placeholder = "paste the token from the dashboard"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	return loginModel{input: input}
}

type loginTokenMsg struct {
	token string
	err   error
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.auth.pasting {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.auth.pasting = false
			m.auth.input.Blur()
			m.auth.input.SetValue("")
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			token := strings.TrimSpace(m.auth.input.Value())
			m.auth.pasting = false
			m.auth.input.Blur()
			m.auth.input.SetValue("")
			if token == "" {
				m.auth.message = "No token entered."
				return m, nil
			}
			return m, saveTokenCmd(m.backend, token)
		}
		var cmd tea.Cmd
		m.auth.input, cmd = m.auth.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.BrowserLogin):
		if m.login == nil {
			m.auth.message = "Browser login is not available."
			return m, nil
		}
		session, err := m.login.Start()
		if errors.Is(err, auth.ErrLoginInProgress) {
			m.auth.message = loginInProgressText
			return m, nil
		}
		if err != nil {
			m.auth.message = "Could not start login: " + err.Error()
			m.logger.Error("start login failed", "error", err)
			return m, nil
		}
		m.auth.waiting = true
		m.auth.message = "Waiting for the browser to send the token to " + session.Addr() + "..."
		return m, waitForTokenCmd(session)
	case key.Matches(msg, m.keys.PasteToken):
		m.auth.pasting = true
		m.auth.message = ""
		focus := m.auth.input.Focus()
		return m, focus
	}
	return m, nil
}

func (m Model) handleLoginToken(msg loginTokenMsg) (tea.Model, tea.Cmd) {
	m.auth.waiting = false
	if msg.err != nil {
		m.auth.message = "Login failed: " + msg.err.Error()
		return m, nil
	}
	if msg.token == "" {
		m.auth.message = "Login window closed before a token arrived."
		return m, nil
	}
	m.loggedIn = true
	m.auth.message = ""
	m.flash = "Logged in."
	if m.screen == screenLogin {
		m.screen = screenSelector
		return m, loadDecksCmd(m.ctx, m.store)
	}
	return m, nil
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Log in to Cranky"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("A Cranky account is needed to build memory palaces."))
	b.WriteString("\n\n")
	if m.auth.pasting {
		b.WriteString(m.auth.input.View())
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("enter to save · esc to cancel"))
	} else {
		b.WriteString(styles.WarningText.Render("l"))
		b.WriteString(styles.Text.Render("  open the login page in your browser\n"))
		b.WriteString(styles.WarningText.Render("p"))
		b.WriteString(styles.Text.Render("  paste a token"))
	}
	if m.auth.waiting {
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View())
	}
	if m.auth.message != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.MutedText.Width(max(m.width-8, 20)).Render(m.auth.message))
	}
	return styles.FocusPanel.Render(b.String())
}

// waitForTokenCmd resolves when the session receives a token or ends.
func waitForTokenCmd(session *auth.Session) tea.Cmd {
	return func() tea.Msg {
		token, ok := <-session.Token()
		if !ok {
			return loginTokenMsg{}
		}
		return loginTokenMsg{token: token}
	}
}

func saveTokenCmd(backend Backend, token string) tea.Cmd {
	return func() tea.Msg {
		if backend == nil {
			return loginTokenMsg{err: errors.New("no token store")}
		}
		if err := backend.SaveToken(token); err != nil {
			return loginTokenMsg{err: err}
		}
		return loginTokenMsg{token: token}
	}
}
