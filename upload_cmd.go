package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voicebank/internal/promote"
)

var (
	uploadDryRun bool

	uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Publish cached recordings to object storage",
		Long: paragraph(fmt.Sprintf("\n%s every recording in the audio cache to the configured object store under <prefix>/<voice>/<id>. Files placed in the cache by hand are published too.", keyword("Copy"))),
		Example: paragraph("voicebank upload\nvoicebank upload --dry-run"),
		Args:    cobra.NoArgs,
		RunE:    runUpload,
	}
)

func init() {
	uploadCmd.Flags().BoolVarP(&uploadDryRun, "dry-run", "n", false, "list the object keys without uploading")
}

func runUpload(cmd *cobra.Command, _ []string) error {
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

	out := cmd.OutOrStdout()
	if uploadDryRun {
		p, err := promote.New(discard{}, a.cache, nil, promote.Config{Prefix: cfg.Upload.Prefix}, a.logger)
		if err != nil {
			return err
		}
		candidates, err := p.Collect()
		if err != nil {
			return err
		}
		for _, c := range candidates {
			fmt.Fprintf(out, "%s  %s\n", c.Key, promote.ContentType(c.Path))
		}
		return nil
	}

	store, err := a.objectStore()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	p, err := promote.New(store, a.cache, a.progress, promote.Config{
		Prefix:       cfg.Upload.Prefix,
		CacheControl: cfg.Upload.CacheControl,
	}, a.logger)
	if err != nil {
		return err
	}

	candidates, err := p.Collect()
	if err != nil {
		return err
	}
	report, err := p.Upload(ctx, candidates)
	printUploadReport(out, report)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", report.Failed, report.Total)
	}
	if report.Interrupted {
		return fmt.Errorf("upload interrupted after %d of %d files", report.Uploaded, report.Total)
	}
	return nil
}

// discard satisfies promote.ObjectStore for dry runs.
type discard struct{}

func (discard) Put(_ context.Context, _ string, _ []byte, _, _ string) error { return nil }

func printUploadReport(w io.Writer, r promote.Report) {
	fmt.Fprintf(w, "%s %d uploaded, %d failed of %d files\n", keyword("Upload:"), r.Uploaded, r.Failed, r.Total)
	if len(r.FailedIDs) > 0 {
		fmt.Fprintf(w, "%s %s\n", warning("Failed:"), strings.Join(r.FailedIDs, ", "))
	}
}
