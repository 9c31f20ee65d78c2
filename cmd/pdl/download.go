package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/handiism/patent-downloader/internal/app"
	"github.com/handiism/patent-downloader/internal/download"
	"github.com/handiism/patent-downloader/internal/export"
	"github.com/handiism/patent-downloader/internal/tracker"
)

var errInterrupted = errors.New("interrupted")

func newDownloadCmd() *cobra.Command {
	var (
		output      string
		concurrency int
		exportDir   string
		lists       []string
		bucketURL   string
	)

	cmd := &cobra.Command{
		Use:   "download <file>",
		Short: "Download every patent listed in a file",
		Long: `Download every patent listed in a file.

Documents are saved as <country code><number>.pdf next to the input file
unless --output or downloads_path is set. The first interrupt stops after the
downloads in flight; a second one aborts them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if output != "" {
				settings.DownloadsPath = output
			}
			if concurrency > 0 {
				settings.MaxConcurrentDownloads = concurrency
			}
			if bucketURL != "" {
				settings.BucketURL = bucketURL
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, closeFn, err := app.Open(ctx, settings)
			if err != nil {
				return err
			}
			defer func() {
				a.Wait()
				if err := closeFn(); err != nil {
					slogctx.FromCtx(ctx).ErrorContext(ctx, "closing bucket", slog.Any("error", err))
				}
			}()

			if err := a.LoadFile(ctx, args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, pe := range a.ParseErrors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping line %d: %q\n", pe.Line, pe.Raw)
			}

			a.Subscribe(download.ObserverFuncs{
				ItemComplete: func(rec tracker.Record) {
					fmt.Fprintf(out, "[%3d%%] %s %s\n", a.Progress(), rec.ID.Display(), export.Suffix(rec.Outcome))
				},
			})

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
				case <-ctx.Done():
					return
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, finishing downloads in flight (interrupt again to abort)...")
				a.Stop()

				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			fmt.Fprintf(out, "Downloading %d patent(s) to %s\n", len(a.All()), a.TargetDir())
			if err := a.Download(ctx); err != nil {
				return err
			}
			a.Wait()

			counts := a.Counts()
			fmt.Fprintf(out, "\nDownloaded %d, failed %d, not processed %d\n",
				counts[tracker.Succeeded], counts[tracker.Failed], counts[tracker.Unprocessed])

			if exportDir != "" {
				sels := make([]export.Selection, 0, len(lists))
				for _, name := range lists {
					sel, err := export.ParseSelection(name)
					if err != nil {
						return err
					}
					sels = append(sels, sel)
				}
				written, err := a.ExportDir(exportDir, sels...)
				if err != nil {
					return err
				}
				for _, path := range written {
					fmt.Fprintf(out, "Wrote %s\n", path)
				}
			}

			if a.State() == app.StateStopped {
				return errInterrupted
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (overrides config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "maximum parallel downloads (overrides config)")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write the export lists to this directory when done")
	cmd.Flags().StringSliceVar(&lists, "lists", []string{"successful", "failed", "all"}, "lists written by --export-dir (successful, failed, unprocessed, all)")
	cmd.Flags().StringVar(&bucketURL, "bucket", "", "also store documents in this bucket, e.g. file:///srv/patents (overrides config)")
	return cmd
}
