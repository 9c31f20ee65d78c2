package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/handiism/patent-downloader/internal/config"
	"github.com/handiism/patent-downloader/internal/logging"
)

const flagConfig = "config"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdl",
		Short: "Download patent documents from a list of identifiers",
		Long: `pdl reads a text file with one patent identifier per line, such as
"US 9,842,120 B1" or "EP1234567", and downloads the PDF of each patent.

For interactive mode, use: pdl-tui`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.FromCommand(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			cmd.SetContext(slogctx.NewCtx(cmd.Context(), logger))
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	cmd.PersistentFlags().String(flagConfig, config.DefaultPath(), "path to a JSON or YAML config file")
	logging.RegisterFlags(cmd)

	cmd.AddCommand(
		newDownloadCmd(),
		newParseCmd(),
		newExportCmd(),
		newConfigCmd(),
	)
	return cmd
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
