// Package logx constructs the process-wide structured logger. Every engine
// takes a *zerolog.Logger as a constructor argument instead of reaching for
// a package-level global, so tests can swap in a silent or buffered logger.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options controls how New builds a logger.
type Options struct {
	// Level is the minimum level that will be emitted ("debug", "info",
	// "warn", "error"). Empty defaults to "info".
	Level string
	// Pretty enables zerolog's human-readable console writer. Production
	// deployments should leave this off and ship JSON lines.
	Pretty bool
	// Output overrides the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// New builds a configured logger for a named component ("store", "wal",
// "coordinator", ...); the component name is attached to every event.
func New(component string, opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("component", component).Logger()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
