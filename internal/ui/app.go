package ui

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/auth"
	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/prefs"
	"github.com/five82/cranky/internal/selection"
	"github.com/five82/cranky/internal/state"
	"github.com/five82/cranky/internal/workflow"
)

type screen int

const (
	screenLogin screen = iota
	screenSelector
	screenExport
	screenTheme
	screenProgress
	screenWarp
)

// Backend is the part of the application the TUI drives.
type Backend interface {
	Criteria(deck string, tags []string, mode selection.Mode) selection.Criteria
	Export(ctx context.Context, criteria selection.Criteria, rng *rand.Rand) ([]export.Card, error)
	StartScene(ctx context.Context, job workflow.Job) (<-chan workflow.Result, error)
	// Token returns the stored token; expired reports that a stale token
	// was dropped.
	Token() (token string, expired bool)
	SaveToken(token string) error
	ClearToken() error
	DashboardURL() string
}

// LoginStarter opens a browser login session.
type LoginStarter interface {
	Start() (*auth.Session, error)
}

// Options configures the UI.
type Options struct {
	Context context.Context
	Backend Backend
	Store   anki.Store
	State   *state.Store
	Login   LoginStarter
	// OpenURL shows a page in the browser. Defaults to browser.OpenURL.
	OpenURL   func(string) error
	LogPath   string
	PollTick  time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	backend   Backend
	store     anki.Store
	state     *state.Store
	login     LoginStarter
	openURL   func(string) error
	logPath   string
	prefs     prefs.Prefs
	prefsPath string
	pollTick  time.Duration
	logger    *slog.Logger
	keys      keyMap

	// UI state
	theme    Theme
	screen   screen
	width    int
	height   int
	ready    bool
	showHelp bool
	showLogs bool
	modal    Modal
	flash    string
	loggedIn bool

	auth       loginModel
	selector   selectorModel
	themeInput textinput.Model
	spinner    spinner.Model
	warp       warpModel
	logs       logPane

	// Run state
	snapshot state.Snapshot
	cards    []export.Card
	results  <-chan workflow.Result
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	openURL := opts.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := opts.State
	if st == nil {
		st = &state.Store{}
	}

	themeInput := textinput.New()
	themeInput.Placeholder = "e.g. haunted lighthouse"
	themeInput.CharLimit = 120
	themeInput.Prompt = "Theme: "

	m := Model{
		ctx:        ctx,
		backend:    opts.Backend,
		store:      opts.Store,
		state:      st,
		login:      opts.Login,
		openURL:    openURL,
		logPath:    opts.LogPath,
		prefs:      opts.Prefs,
		prefsPath:  prefsPath,
		pollTick:   pollTick,
		logger:     logger,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(opts.Prefs.Theme),
		auth:       newLoginModel(),
		selector:   newSelectorModel(opts.Prefs),
		themeInput: themeInput,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		warp:       newWarpModel(),
		logs:       newLogPane(),
		screen:     screenLogin,
	}

	if opts.Backend != nil {
		token, expired := opts.Backend.Token()
		m.loggedIn = token != ""
		if expired {
			m.modal = newMessageModal("Session Expired", "Your Cranky session has expired. Please log in again.", false)
		}
	}
	if m.loggedIn {
		m.screen = screenSelector
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
		m.spinner.Tick,
	}
	if m.loggedIn {
		cmds = append(cmds, loadDecksCmd(m.ctx, m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.logs.resize(m.width, m.logPaneHeight())
		m.themeInput.Width = max(m.width-20, 20)
		m.selector.tags.Width = max(m.width/2-12, 20)
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case logLinesMsg:
		m.logs.setLines(msg, m.theme)
		return m, nil

	case loginTokenMsg:
		return m.handleLoginToken(msg)

	case decksMsg:
		return m.handleDecks(msg)

	case countMsg:
		m.selector.applyCount(msg)
		return m, nil

	case exportDoneMsg:
		return m.handleExportDone(msg)

	case sceneStartedMsg:
		return m.handleSceneStarted(msg)

	case sceneResultMsg:
		return m.handleSceneResult(workflow.Result(msg))

	case warpLoadedMsg, warpAppliedMsg, warpFilteredMsg:
		return m.handleWarpMsg(msg)

	case openedMsg:
		if msg.err != nil {
			m.flash = "Could not open browser: " + msg.url
			m.logger.Warn("open browser failed", "url", msg.url, "error", msg.err)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// typing reports whether a text input currently owns the keyboard.
func (m Model) typing() bool {
	switch m.screen {
	case screenLogin:
		return m.auth.pasting
	case screenSelector:
		return m.selector.focusTags
	case screenTheme:
		return true
	}
	return false
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if !m.typing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.CycleTheme):
			m.theme = GetTheme(NextTheme(m.theme.Name))
			m.prefs.Theme = m.theme.Name
			m.savePrefs()
			return m, nil
		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs
			m.logs.resize(m.width, m.logPaneHeight())
			if m.showLogs {
				return m, readLogsCmd(m.logPath)
			}
			return m, nil
		}
		if m.showLogs {
			switch {
			case key.Matches(msg, m.keys.HalfPageDown):
				m.logs.viewport.HalfPageDown()
				return m, nil
			case key.Matches(msg, m.keys.HalfPageUp):
				m.logs.viewport.HalfPageUp()
				return m, nil
			}
		}
	}

	switch m.screen {
	case screenLogin:
		return m.handleLoginKey(msg)
	case screenSelector:
		return m.handleSelectorKey(msg)
	case screenTheme:
		return m.handleThemeKey(msg)
	case screenWarp:
		return m.handleWarpKey(msg)
	}
	return m, nil
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.state != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.state))
	}
	if m.showLogs {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

// renderMain renders the header, the active screen and the optional log pane.
func (m Model) renderMain() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	var logs string
	if m.showLogs {
		logs = m.logs.view(m.theme, m.width)
		bodyHeight -= lipgloss.Height(logs)
	}
	body := lipgloss.NewStyle().
		Width(m.width).
		Height(max(bodyHeight, 1)).
		MaxHeight(max(bodyHeight, 1)).
		Render(m.renderContent())

	parts := []string{header, body}
	if m.showLogs {
		parts = append(parts, logs)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderContent() string {
	switch m.screen {
	case screenLogin:
		return m.renderLogin()
	case screenSelector:
		return m.renderSelector()
	case screenExport:
		return m.renderExporting()
	case screenTheme:
		return m.renderThemePrompt()
	case screenProgress:
		return m.renderProgress()
	case screenWarp:
		return m.renderWarp()
	default:
		return ""
	}
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	parts := []string{styles.Logo.Render("cranky")}
	switch {
	case m.loggedIn:
		parts = append(parts, styles.SuccessText.Render("logged in"))
	default:
		parts = append(parts, styles.WarningText.Render("not logged in"))
	}
	if m.snapshot.Running() {
		parts = append(parts, styles.StatusStyle(string(m.snapshot.Stage)).Render(string(m.snapshot.Stage)))
	}
	parts = append(parts, styles.FaintText.Render(m.theme.Name))
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	text := m.flash
	if text == "" {
		text = m.footerHint()
	}
	return styles.Footer.Width(m.width).Render(truncate(text, max(m.width-2, 10)))
}

func (m Model) footerHint() string {
	switch m.screen {
	case screenLogin:
		return "l browser login · p paste token · ? help · q quit"
	case screenSelector:
		return "enter export · tab decks/tags · m mode · w time warp · d dashboard · L logs · ? help"
	case screenTheme:
		return "enter generate · esc cancel"
	case screenWarp:
		return "←/→ stretch · ↑/↓ shift · c collapse · a apply · f filtered deck · esc back"
	default:
		return "L logs · ? help · q quit"
	}
}

func (m Model) logPaneHeight() int {
	return max(m.height/3, 5)
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type openedMsg struct {
	url string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func openURLCmd(open func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{url: url, err: open(url)}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
