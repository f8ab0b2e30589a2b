// Package log is a small level-keyed logging facade over zerolog, matching
// the call-site idiom used across novarelay: log.T/D/I/W/E/F for
// trace/debug/info/warn/error/fatal, each exposing F (printf-style) and Ln
// (space-joined, like log.Println) so call sites never have to think about
// which verb to use.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var base = zerolog.New(
	zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"},
).With().Timestamp().Logger()

// Lvl writes to a single zerolog level.
type Lvl struct{ level zerolog.Level }

// F logs a printf-style formatted message.
func (l Lvl) F(format string, v ...any) {
	base.WithLevel(l.level).Msg(fmt.Sprintf(format, v...))
	if l.level == zerolog.FatalLevel {
		os.Exit(1)
	}
}

// Ln logs its arguments space-joined, mirroring log.Println.
func (l Lvl) Ln(v ...any) {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	base.WithLevel(l.level).Msg(strings.Join(parts, " "))
	if l.level == zerolog.FatalLevel {
		os.Exit(1)
	}
}

// S dumps one or more values with %+v, for ad hoc structure inspection.
func (l Lvl) S(v ...any) {
	for _, x := range v {
		base.WithLevel(l.level).Msg(fmt.Sprintf("%+v", x))
	}
}

var (
	// T is the trace level logger.
	T = Lvl{zerolog.TraceLevel}
	// D is the debug level logger.
	D = Lvl{zerolog.DebugLevel}
	// I is the info level logger.
	I = Lvl{zerolog.InfoLevel}
	// W is the warning level logger.
	W = Lvl{zerolog.WarnLevel}
	// E is the error level logger.
	E = Lvl{zerolog.ErrorLevel}
	// F is the fatal level logger; F.F/F.Ln terminate the process after
	// logging, matching zerolog's Fatal semantics.
	F = Lvl{zerolog.FatalLevel}
)

// GetLogLevel parses a textual level name into a zerolog.Level, defaulting
// to info for anything unrecognized.
func GetLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel sets the global minimum level that will be emitted.
func SetLogLevel(level string) { zerolog.SetGlobalLevel(GetLogLevel(level)) }
