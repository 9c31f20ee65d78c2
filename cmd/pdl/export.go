package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/patent-downloader/internal/export"
	ioutils "github.com/handiism/patent-downloader/internal/io"
	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

func newExportCmd() *cobra.Command {
	var (
		output         string
		noCountryCode  bool
		noStatusSuffix bool
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Rewrite a file as a clean export list without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			opts := settings.ToExportOptions()
			if noCountryCode {
				opts.IncludeCountryCode = false
			}
			if noStatusSuffix {
				opts.IncludeStatusSuffix = false
			}

			lines, err := ioutils.ReadLines(args[0])
			if err != nil {
				return err
			}
			ids, _ := model.BuildFrom(lines)

			t := tracker.New()
			t.Init(ids)
			rendered := export.Lines(export.Select(t, export.All), opts)

			if output != "" {
				return ioutils.WriteLines(output, rendered)
			}
			for _, line := range rendered {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&noCountryCode, "no-country-code", false, "omit the country code")
	cmd.Flags().BoolVar(&noStatusSuffix, "no-status", false, "omit the status suffix")
	return cmd
}
