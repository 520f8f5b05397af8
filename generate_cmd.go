package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voicebank/internal/batch"
	"github.com/dgnsrekt/voicebank/internal/watch"
	"github.com/dgnsrekt/voicebank/internal/words"
)

var (
	watchWords     bool
	retryExhausted bool

	generateCmd = &cobra.Command{
		Use:   "generate [WORDS]",
		Short: "Render the primary voice for every word",
		Long: paragraph(fmt.Sprintf("\n%s the primary voice for every word that has no recording yet. Runs can be interrupted and resumed; finished words are never rendered twice.", keyword("Render"))),
		Example: paragraph("voicebank generate\nvoicebank generate words.yaml --watch"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runGenerate,
	}
)

func init() {
	generateCmd.Flags().BoolVar(&watchWords, "watch", false, "render again whenever the word list changes")
	generateCmd.Flags().BoolVar(&retryExhausted, "retry-exhausted", false, "retry words that reached generation.max_attempts")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.WordsFile = args[0]
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}

	driver, err := batch.New(client, a.cache, a.progress, batch.Config{
		PrimaryVoice:   cfg.PrimaryVoice(),
		Delay:          cfg.Generation.Delay,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		RetryExhausted: retryExhausted,
	}, a.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	driver.OnItem = func(item words.Item, outcome batch.Outcome, _ error) {
		mark := keyword("✓")
		if outcome == batch.OutcomeFailed {
			mark = warning("✗")
		}
		fmt.Fprintf(out, "%s %-9s %s\n", mark, outcome, item.Text)
	}
	generate := func(ctx context.Context, items []words.Item) error {
		result, err := driver.Run(ctx, items)
		printGenerateResult(out, result)
		return err
	}

	items, err := a.items()
	if err != nil {
		return err
	}
	if err := generate(ctx, items); err != nil {
		return err
	}
	if !watchWords {
		return nil
	}

	return watch.File(ctx, cfg.WordsFile, 0, func(ctx context.Context) error {
		items, err := a.items()
		if err != nil {
			// A half-saved file is common while editing; wait for the next write.
			a.logger.Error("Word list unusable, waiting for the next change", "err", err)
			return nil
		}
		return generate(ctx, items)
	}, a.logger)
}

func printGenerateResult(w io.Writer, r batch.Result) {
	fmt.Fprintf(w, "\n%s %d generated, %d cached, %d failed of %d words\n",
		keyword("Done:"), r.Generated, r.Cached, r.Failed, r.Total)

	if len(r.FailedItems) > 0 {
		fmt.Fprintf(w, "%s %s\n", warning("Failed:"), strings.Join(r.FailedItems, ", "))
	}
	if len(r.ExhaustedItems) > 0 {
		fmt.Fprintf(w, "%s %s (use --retry-exhausted to try again)\n",
			warning("Gave up on:"), strings.Join(r.ExhaustedItems, ", "))
	}
	if r.Interrupted {
		fmt.Fprintln(w, "Interrupted. Run generate again to resume.")
	}
}
