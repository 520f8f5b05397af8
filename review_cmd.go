package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/voicebank/internal/audio"
	"github.com/dgnsrekt/voicebank/internal/review"
)

var (
	reviewAll bool

	reviewCmd = &cobra.Command{
		Use:   "review",
		Short: "Listen to each word and pick a voice",
		Long: paragraph(fmt.Sprintf("\n%s each word's recording. Accept it, replay it, skip the word for later, or move to the next voice; missing voices are rendered on demand. Decisions are saved as you go.", keyword("Play"))),
		Example: paragraph("voicebank review\nvoicebank review --all\nprintf 'a\\nn\\na\\n' | voicebank review"),
		Args:    cobra.NoArgs,
		RunE:    runReview,
	}
)

func init() {
	reviewCmd.Flags().BoolVarP(&reviewAll, "all", "a", false, "include words accepted in earlier sessions")
}

func runReview(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	kind, err := audio.ParseKind(cfg.Playback.Player)
	if err != nil {
		return err
	}
	player, err := audio.New(kind, cfg.Playback.Command)
	if err != nil {
		return fmt.Errorf("unable to set up playback: %w", err)
	}

	out := cmd.OutOrStdout()
	var source review.DecisionSource
	if term.IsTerminal(int(os.Stdin.Fd())) {
		source = review.NewTeaSource(os.Stdin, out)
	} else {
		source = review.NewLineSource(os.Stdin, out)
	}

	workflow, err := review.New(cfg.Voices, &lazyClient{app: a}, a.cache, a.progress, player, source, a.logger)
	if err != nil {
		return err
	}

	items, err := a.items()
	if err != nil {
		return err
	}

	summary, err := workflow.ReviewAll(ctx, items, review.Options{All: reviewAll})
	printReviewSummary(out, summary)
	return err
}

func printReviewSummary(w io.Writer, s review.Summary) {
	fmt.Fprintf(w, "\n%s %d approved, %d skipped, %d without a recording, %d reviewed\n",
		keyword("Session:"), s.Approved, s.Skipped, s.Failed, s.Total)
	if len(s.FailedIDs) > 0 {
		fmt.Fprintf(w, "%s %s (run generate first)\n", warning("No recording:"), strings.Join(s.FailedIDs, ", "))
	}
	if s.Quit {
		fmt.Fprintln(w, "Stopped early. Run review again to continue.")
	}
}
