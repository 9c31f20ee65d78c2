package logging

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

const (
	FlagLogLevel  = "loglevel"
	FlagLogFormat = "logformat"
)

// RegisterFlags adds --loglevel and --logformat to cmd and its children.
func RegisterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(FlagLogLevel, "info", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String(FlagLogFormat, string(FormatText), "set the log format (text, json)")
}

// FromCommand builds a logger writing to w from the flags of cmd.
func FromCommand(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	levelFlag, err := cmd.Flags().GetString(FlagLogLevel)
	if err != nil {
		return nil, err
	}
	level, err := ParseLevel(levelFlag)
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString(FlagLogFormat)
	if err != nil {
		return nil, err
	}

	return New(w, Options{Level: level, Format: Format(format)})
}
