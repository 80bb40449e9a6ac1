package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/howell-aikit/ideaflow/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan a project interactively",
	Long: `Start an interactive planning conversation.

On a terminal this opens the chat UI. Otherwise, or with --plain, it reads
lines from stdin. Line mode understands these commands:
  /skip    search GitHub now without more clarification
  /retry   retry the last failed step
  /reset   discard the conversation and its plan files
  /quit    exit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use line mode even on a terminal")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctrl, _, err := newController(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if !chatPlain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return tui.Run(ctx, ctrl)
	}
	return runLineChat(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// conversation is the controller surface the line front ends use
type conversation interface {
	SubmitText(ctx context.Context, text string) state.Session
	SkipClarification(ctx context.Context) state.Session
	Tick(ctx context.Context) state.Session
	Reset(ctx context.Context) state.Session
}

// transcript prints assistant messages that have not been shown yet
type transcript struct {
	out     io.Writer
	printed int
}

func (t *transcript) show(s state.Session) {
	if t.printed > len(s.Messages) {
		t.printed = 0
	}
	for _, msg := range s.Messages[t.printed:] {
		if msg.Role == state.RoleUser {
			continue
		}
		if msg.IsError {
			fmt.Fprintf(t.out, "! %s\n\n", msg.Text)
		} else {
			fmt.Fprintf(t.out, "%s\n\n", msg.Text)
		}
	}
	t.printed = len(s.Messages)
}

// advance ticks while the session moves on by itself
func advance(ctx context.Context, conv conversation, s state.Session, t *transcript) state.Session {
	for s.AutoAdvance() && ctx.Err() == nil {
		s = conv.Tick(ctx)
		t.show(s)
	}
	return s
}

func runLineChat(ctx context.Context, conv conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Describe the project you want to build. Commands: /skip /retry /reset /quit")
	fmt.Fprintln(out)

	t := &transcript{out: out}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		var s state.Session
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/skip":
			s = conv.SkipClarification(ctx)
		case "/retry":
			s = conv.Tick(ctx)
		case "/reset":
			s = conv.Reset(ctx)
			t.printed = 0
			fmt.Fprintln(out, "Started a new conversation.")
			fmt.Fprintln(out)
		default:
			s = conv.SubmitText(ctx, line)
		}

		t.show(s)
		advance(ctx, conv, s, t)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
