package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/spf13/cobra"
)

var (
	planSkipClarify bool
	planDetails     []string
)

var planCmd = &cobra.Command{
	Use:   "plan <idea>",
	Short: "Create a plan without interaction",
	Long: `Run the whole pipeline for one idea and write the plan documents.

Each --detail is submitted as a clarification round while the idea is still
unclear. If it remains unclear afterwards the search runs anyway.

Examples:
  ideaflow plan "A habit tracker web app with reminders"
  ideaflow plan "A chat bot" --detail "for Discord" --detail "written in Go"
  ideaflow plan "A CLI for notes" --skip-clarify`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planSkipClarify, "skip-clarify", false, "search right away even if the idea is unclear")
	planCmd.Flags().StringArrayVarP(&planDetails, "detail", "d", nil, "extra detail for a clarification round (repeatable)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctrl, out, err := newController(ctx, cfg, logger)
	if err != nil {
		return err
	}

	s, err := planOnce(ctx, ctrl, args[0], planDetails, planSkipClarify, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", out.Path(cfg.Output.PlanFile))
	for _, name := range s.Documents {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", out.Path(name))
	}
	return nil
}

// planOnce drives one idea to a completed plan, printing assistant messages
// as they arrive
func planOnce(ctx context.Context, conv conversation, idea string, details []string, skip bool, out io.Writer) (state.Session, error) {
	t := &transcript{out: out}

	s := conv.SubmitText(ctx, idea)
	t.show(s)

	if !skip {
		for _, detail := range details {
			if s.Stage != state.StageAwaitingClarification {
				break
			}
			s = conv.SubmitText(ctx, detail)
			t.show(s)
		}
	}

	if s.Stage == state.StageAwaitingClarification {
		s = conv.SkipClarification(ctx)
		t.show(s)
	}

	s = advance(ctx, conv, s, t)
	if err := ctx.Err(); err != nil {
		return s, err
	}
	if s.Stage != state.StageCompleted {
		reason := "no further progress"
		if last, ok := s.LastMessage(); ok {
			reason = last.Text
		}
		return s, fmt.Errorf("planning stopped at %q: %s", s.Stage.Label(), reason)
	}
	if len(s.Documents) == 0 {
		return s, errors.New("no plan documents were written")
	}
	return s, nil
}
