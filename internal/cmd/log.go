// SPDX-License-Identifier: MIT

package cmd

import (
	"io"
	"log/slog"
)

func setupLogging(writer io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level: level,
		},
	)))
}
