package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/spf13/cobra"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove persisted plan documents",
	Long: `Remove the plan, step and export documents from the output directory.

Examples:
  ideaflow clean      # Ask before removing
  ideaflow clean -f   # Remove without confirmation`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "skip confirmation")
}

// cleaner is the sink surface clean needs
type cleaner interface {
	sink.DocumentSink
	sink.Lister
}

func runClean(cmd *cobra.Command, args []string) error {
	out := sink.FromConfig(cfg.Output, logger)
	return clean(out, cleanForce, cmd.InOrStdin(), cmd.OutOrStdout())
}

func clean(s cleaner, force bool, in io.Reader, w io.Writer) error {
	docs, err := s.List()
	if err != nil {
		return fmt.Errorf("failed to list plan documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No plan documents to clean")
		return nil
	}

	if !force {
		fmt.Fprintf(w, "This will remove %d plan document(s):\n", len(docs))
		for _, d := range docs {
			fmt.Fprintf(w, "  - %s\n", d)
		}
		fmt.Fprint(w, "\nContinue? [y/N] ")

		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(w, "Cancelled")
			return nil
		}
	}

	if err := s.DeleteAll(); err != nil {
		return fmt.Errorf("failed to remove plan documents: %w", err)
	}
	fmt.Fprintf(w, "Removed %d plan document(s)\n", len(docs))
	return nil
}
