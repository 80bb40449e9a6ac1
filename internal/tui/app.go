// Package tui is the interactive chat front end of the planning pipeline.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/howell-aikit/ideaflow/internal/state"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	chromeHeight  = 7 // header, progress, input box, help
	minViewport   = 5
)

const helpText = "enter send • ctrl+s skip clarification • ctrl+t retry • ctrl+r reset • esc quit"

// Driver is the conversation the TUI renders and drives
type Driver interface {
	SubmitText(ctx context.Context, text string) state.Session
	SkipClarification(ctx context.Context) state.Session
	Tick(ctx context.Context) state.Session
	Reset(ctx context.Context) state.Session
	Session() state.Session
}

// Model is the main TUI model
type Model struct {
	ctx    context.Context
	driver Driver

	session state.Session
	busy    bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model
	renderer *glamour.TermRenderer
	style    string

	quitting bool
	width    int
	height   int
}

// Option configures the model
type Option func(*Model)

// WithStyle sets the glamour style used for assistant messages, e.g.
// "dark", "light" or "notty". The default follows the terminal.
func WithStyle(style string) Option {
	return func(m *Model) { m.style = style }
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, driver Driver, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "Describe the project you want to build..."
	input.Focus()
	input.Width = defaultWidth - 6

	m := Model{
		ctx:      ctx,
		driver:   driver,
		session:  driver.Session(),
		input:    input,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		spinner:  NewSpinner(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.renderer = newRenderer(m.style, m.width)
	m.refresh()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(minViewport, msg.Height-chromeHeight)
		m.input.Width = max(10, msg.Width-6)
		m.renderer = newRenderer(m.style, msg.Width)
		m.refresh()
		return m, nil

	case sessionMsg:
		m.session = msg.session
		m.busy = false
		m.refresh()
		if m.session.AutoAdvance() {
			return m.start(tickCmd(m.ctx, m.driver))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// one operation at a time; typing stays possible
	if m.busy {
		return m.updateInput(msg)
	}

	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m.start(submitCmd(m.ctx, m.driver, text))
	case "ctrl+s":
		return m.start(skipCmd(m.ctx, m.driver))
	case "ctrl+t":
		return m.start(tickCmd(m.ctx, m.driver))
	case "ctrl+r":
		return m.start(resetCmd(m.ctx, m.driver))
	}
	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start marks the model busy and runs op alongside the spinner
func (m Model) start(op tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	return m, tea.Batch(op, m.spinner.Tick)
}

// View renders the model
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(boxStyle.Width(max(10, m.width-2)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(helpText))
	return b.String()
}

func (m Model) header() string {
	status := m.session.Stage.Label()
	if m.session.HasSummary() {
		status = fmt.Sprintf("%s • clarity %d/10", status, m.session.IdeaRating)
	}
	if best := m.session.BestEvaluation(); best != nil {
		status = fmt.Sprintf("%s • best %s (%d/10)", status, best.Candidate.Title, best.SuitabilityScore)
	}
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return titleStyle.Render("ideaflow") + "  " +
		m.progress.ViewAs(stageProgress(m.session.Stage)) + "  " +
		dimStyle.Render(status)
}

// refresh re-renders the transcript into the viewport
func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.session.Messages, m.renderer))
	m.viewport.GotoBottom()
}

// Session returns the last session snapshot the model rendered
func (m Model) Session() state.Session {
	return m.session
}

// Busy reports whether an operation is in flight
func (m Model) Busy() bool {
	return m.busy
}

// Run starts the TUI and blocks until the user quits
func Run(ctx context.Context, driver Driver, opts ...Option) error {
	p := tea.NewProgram(
		NewModel(ctx, driver, opts...),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	return err
}

// NewSpinner creates a spinner with default style
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return s
}
