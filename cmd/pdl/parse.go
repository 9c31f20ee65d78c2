package main

import (
	"fmt"

	"github.com/spf13/cobra"

	ioutils "github.com/handiism/patent-downloader/internal/io"
	"github.com/handiism/patent-downloader/internal/model"
)

func newParseCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Print the normalized, deduplicated identifiers of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := ioutils.ReadLines(args[0])
			if err != nil {
				return err
			}
			ids, parseErrors := model.BuildFrom(lines)

			for _, id := range ids {
				if compact {
					fmt.Fprintln(cmd.OutOrStdout(), id.Compact())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), id.Display())
				}
			}
			for _, pe := range parseErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %q: %v\n", pe.Line, pe.Raw, pe.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "print US9842120 instead of US 9,842,120")
	return cmd
}
