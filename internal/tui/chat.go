package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/howell-aikit/ideaflow/internal/state"
)

// sessionMsg carries the session returned by a controller operation
type sessionMsg struct {
	session state.Session
}

func submitCmd(ctx context.Context, d Driver, text string) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{session: d.SubmitText(ctx, text)}
	}
}

func skipCmd(ctx context.Context, d Driver) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{session: d.SkipClarification(ctx)}
	}
}

func tickCmd(ctx context.Context, d Driver) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{session: d.Tick(ctx)}
	}
}

func resetCmd(ctx context.Context, d Driver) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{session: d.Reset(ctx)}
	}
}

// stageOrder places each stage on the progress bar
var stageOrder = map[state.Stage]int{
	state.StageNotStarted:            0,
	state.StageAwaitingClarification: 1,
	state.StageSearchReady:           2,
	state.StageSearched:              3,
	state.StageEvaluating:            4,
	state.StagePlanning:              5,
	state.StageCompleted:             6,
}

func stageProgress(stage state.Stage) float64 {
	return float64(stageOrder[stage]) / float64(stageOrder[state.StageCompleted])
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(max(20, width-4)))
	if err != nil {
		return nil
	}
	return r
}

// renderTranscript formats the conversation. Assistant text is markdown;
// it is shown raw when no renderer is available.
func renderTranscript(messages []state.Message, r *glamour.TermRenderer) string {
	if len(messages) == 0 {
		return dimStyle.Render("Describe the project you want to build to get started.")
	}

	var b strings.Builder
	for _, msg := range messages {
		switch {
		case msg.Role == state.RoleUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Text)
			b.WriteString("\n\n")
		case msg.IsError:
			b.WriteString(errorStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(msg.Text))
			b.WriteString("\n\n")
		default:
			b.WriteString(assistantStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(renderMarkdown(msg.Text, r))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMarkdown(text string, r *glamour.TermRenderer) string {
	if r == nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
