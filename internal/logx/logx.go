// Package logx configures process-wide logging. The TUI owns the terminal,
// so everything goes to a file under the user's state directory.
package logx

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init routes the global logger to the given file, creating parent
// directories as needed. An empty path or an unwritable file degrades to a
// discard logger rather than fighting the TUI for stdout.
func Init(path string, debug bool) error {
	var w io.Writer = io.Discard
	var openErr error
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			openErr = err
		} else if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err != nil {
			openErr = err
		} else {
			w = f
		}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
	return openErr
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }
