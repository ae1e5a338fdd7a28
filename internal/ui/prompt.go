package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// promptModel asks one question on a single line.
type promptModel struct {
	question  string
	input     textinput.Model
	theme     Theme
	done      bool
	cancelled bool
}

func newPromptModel(question, placeholder string) promptModel {
	input := textinput.New()
	input.Placeholder = placeholder
	input.Prompt = "> "
	input.Focus()
	return promptModel{question: question, input: input, theme: GetTheme("")}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	styles := m.theme.Styles()
	return styles.AccentText.Bold(true).Render(m.question) + "\n" +
		m.input.View() + "\n" +
		styles.FaintText.Render("enter to confirm · esc to cancel") + "\n"
}

// Answer is the trimmed input, or "" when the prompt was cancelled.
func (m promptModel) Answer() string {
	if m.cancelled {
		return ""
	}
	return strings.TrimSpace(m.input.Value())
}

// Prompt asks question and returns the trimmed answer. Cancelling returns
// an empty answer.
func Prompt(question, placeholder string, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(newPromptModel(question, placeholder), opts...).Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok {
		return "", fmt.Errorf("prompt: unexpected model %T", final)
	}
	return m.Answer(), nil
}

// Confirm asks a yes/no question. Only "y" or "yes" count as consent.
func Confirm(question string, opts ...tea.ProgramOption) (bool, error) {
	answer, err := Prompt(question+" (yes/no)", "no", opts...)
	if err != nil {
		return false, err
	}
	return Consented(answer), nil
}

// Consented reports whether answer is an affirmative reply.
func Consented(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
