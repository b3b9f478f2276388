// Package logging configures slog for the canvass server and CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup makes New(os.Stdout, devMode) the process-wide default so code
// without an injected logger still writes in the server's format.
func Setup(devMode bool) {
	slog.SetDefault(New(os.Stdout, devMode))
}

// New returns a text logger at debug level for local runs, or a JSON
// logger at info level for deployed servers.
func New(w io.Writer, devMode bool) *slog.Logger {
	if devMode {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
