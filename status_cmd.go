package main

import (
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/voicebank/internal/status"
)

var (
	statusFailed   bool
	statusCopy     bool
	statusMarkdown bool

	statusCmd = &cobra.Command{
		Use:   "status [QUERY]",
		Short: "Show campaign progress",
		Long: paragraph(fmt.Sprintf("\n%s how far the campaign has come: rendered, reviewed and published words, cache usage per voice, and words that failed. A query fuzzy-matches words by id or text.", keyword("Show"))),
		Example: paragraph("voicebank status\nvoicebank status aple\nvoicebank status --failed --copy"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runStatus,
	}
)

func init() {
	statusCmd.Flags().BoolVarP(&statusFailed, "failed", "f", false, "list failed words")
	statusCmd.Flags().BoolVarP(&statusCopy, "copy", "c", false, "copy the failed words to the clipboard")
	statusCmd.Flags().BoolVarP(&statusMarkdown, "markdown", "m", false, "render the report as markdown")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}

	stats, err := a.cache.Stats()
	if err != nil {
		return err
	}
	items, err := a.items()
	if err != nil {
		a.logger.Debug("Showing ids only", "err", err)
	}
	report := status.Build(a.progress.Document(), stats, items, time.Now())

	out := cmd.OutOrStdout()
	switch {
	case len(args) == 1:
		return status.WriteRows(out, report.Find(args[0]))

	case statusFailed || statusCopy:
		failed := report.FailedRows()
		if statusCopy {
			if err := clipboard.WriteAll(status.Texts(failed)); err != nil {
				return fmt.Errorf("unable to copy to clipboard: %w", err)
			}
			fmt.Fprintf(out, "Copied %d failed words to the clipboard.\n", len(failed))
		}
		if statusFailed {
			return status.WriteRows(out, failed)
		}
		return nil

	case statusMarkdown:
		md := report.Markdown()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			_, err := fmt.Fprint(out, md)
			return err
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithColorProfile(lipgloss.ColorProfile()),
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(terminalWidth()),
		)
		if err != nil {
			return fmt.Errorf("unable to create renderer: %w", err)
		}
		rendered, err := r.Render(md)
		if err != nil {
			return fmt.Errorf("unable to render markdown: %w", err)
		}
		_, err = fmt.Fprint(out, rendered)
		return err

	default:
		return report.WriteText(out)
	}
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w == 0 {
		return 80
	}
	return min(w, 120)
}
