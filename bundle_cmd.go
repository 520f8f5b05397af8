package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voicebank/internal/bundle"
	"github.com/dgnsrekt/voicebank/internal/cache"
)

var (
	bundleOutput   string
	bundleLevel    int
	bundleAccepted bool

	bundleCmd = &cobra.Command{
		Use:   "bundle",
		Short: "Export cached recordings as a compressed archive",
		Long: paragraph(fmt.Sprintf("\n%s the audio cache into a zstd compressed tar archive laid out as <voice>/<id>.<ext>. Use - to write to stdout.", keyword("Pack"))),
		Example: paragraph("voicebank bundle -o approved.tar.zst\nvoicebank bundle --accepted -o - | zstd -d | tar t"),
		Args:    cobra.NoArgs,
		RunE:    runBundle,
	}
)

func init() {
	bundleCmd.Flags().StringVarP(&bundleOutput, "output", "o", "approved.tar.zst", "archive path, or - for stdout")
	bundleCmd.Flags().IntVarP(&bundleLevel, "level", "l", bundle.DefaultLevel, "zstd compression level (1-22)")
	bundleCmd.Flags().BoolVar(&bundleAccepted, "accepted", false, "only include each word's accepted voice")
}

func runBundle(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}

	entries, err := a.cache.Entries()
	if err != nil {
		return err
	}
	if bundleAccepted {
		entries = acceptedEntries(a, entries)
	}

	if bundleOutput == "-" {
		return bundle.Write(cmd.OutOrStdout(), entries, bundleLevel)
	}

	f, err := os.CreateTemp(filepath.Dir(bundleOutput), filepath.Base(bundleOutput)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create archive: %w", err)
	}
	if err := writeBundle(f, entries); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), bundleOutput); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("unable to write archive: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %d recordings to %s\n", keyword("Bundled"), len(entries), bundleOutput)
	return nil
}

func writeBundle(f *os.File, entries []cache.Entry) error {
	err := bundle.Write(f, entries, bundleLevel)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// acceptedEntries keeps the entries whose voice is the word's accepted one.
func acceptedEntries(a *app, entries []cache.Entry) []cache.Entry {
	var out []cache.Entry
	for _, e := range entries {
		if p, ok := a.progress.Item(e.ItemID); ok && p.VoiceUsed == e.Voice && p.ReviewedAt != nil {
			out = append(out, e)
		}
	}
	return out
}
