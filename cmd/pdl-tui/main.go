package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/handiism/patent-downloader/internal/app"
	"github.com/handiism/patent-downloader/internal/config"
	"github.com/handiism/patent-downloader/internal/logging"
	"github.com/handiism/patent-downloader/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logFile    string
	)

	cmd := &cobra.Command{
		Use:   "pdl-tui [file]",
		Short: "Interactive patent downloader",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The screen belongs to the UI, so logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			logger, err := logging.FromCommand(cmd, w)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			ctx := slogctx.NewCtx(cmd.Context(), logger)

			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}

			a, closeFn, err := app.Open(ctx, settings)
			if err != nil {
				return err
			}
			defer func() {
				a.Stop()
				a.Wait()
				if err := closeFn(); err != nil {
					slogctx.FromCtx(ctx).ErrorContext(ctx, "closing bucket", slog.Any("error", err))
				}
			}()

			if len(args) == 1 {
				if err := a.LoadFile(ctx, args[0]); err != nil {
					return err
				}
			}

			return tui.Run(ctx, a)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to a JSON or YAML config file")
	cmd.Flags().StringVar(&logFile, "logfile", "", "append logs to this file")
	logging.RegisterFlags(cmd)
	return cmd
}
