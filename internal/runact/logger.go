package runact

import (
	"fmt"
	"io"
)

// Logger writes human-oriented progress lines. Verbosity is fixed at
// construction time; there is no global log level.
type Logger struct {
	out     io.Writer
	verbose bool
}

func NewLogger(out io.Writer, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

func (l *Logger) Logf(format string, v ...any) {
	fmt.Fprintf(l.out, format+"\n", v...)
}

// Verbosef logs only when the logger was constructed verbose.
func (l *Logger) Verbosef(format string, v ...any) {
	if !l.verbose {
		return
	}
	l.Logf(format, v...)
}
