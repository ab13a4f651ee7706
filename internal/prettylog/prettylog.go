// Package prettylog installs charmbracelet/log as the slog default handler.
package prettylog

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Setup creates a charmbracelet/log handler writing to w, installs it as the
// slog default and returns it so callers can adjust the level.
func Setup(w io.Writer, debug bool) *log.Logger {
	handler := log.NewWithOptions(
		w,
		log.Options{
			Level:           log.InfoLevel,
			ReportTimestamp: true,
			ReportCaller:    debug,
			Prefix:          "fwstat",
		},
	)
	if debug {
		handler.SetLevel(log.DebugLevel)
	}
	slog.SetDefault(slog.New(handler))

	return handler
}
