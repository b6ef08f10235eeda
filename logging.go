package selector

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logger type used throughout the selector. It is
// a thin alias over logiface's generic Logger, parameterised with the
// slog-backed event implementation, so callers can supply their own
// slog.Handler (JSON, text, an aggregator) without the selector needing to
// know about it.
type Logger = *logiface.Logger[*logifaceslog.Event]

// defaultLogger returns a Logger writing JSON lines to os.Stderr at
// warning level and above, used when WithLogger is not given.
func defaultLogger() Logger {
	handler := slog.NewJSONHandler(os.Stderr, nil)
	return logiface.New[*logifaceslog.Event](
		logifaceslog.NewLogger(handler, logifaceslog.WithLevel(logiface.LevelWarning)),
	)
}

// logPollError records a per-connection failure observed during Poll
// dispatch. Connect/read/write failures are routine under normal network
// conditions (a peer resetting a connection, for instance) and are
// reported at debug level; anything else surfacing from channel dispatch
// is logged as a warning since it points at a less expected condition.
func logPollError(l Logger, id string, stage string, err error) {
	if stage == "connect" || stage == "read" || stage == "write" {
		l.Debug().Str("id", id).Str("stage", stage).Err(err).Log("channel io error")
		return
	}
	l.Warning().Str("id", id).Str("stage", stage).Err(err).Log("channel dispatch error")
}
