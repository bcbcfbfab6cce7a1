package terminal

import (
	"fmt"
	"io"
	"os"
)

// Style represents a log message style.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

// Logger provides styled logging to stderr.
type Logger struct {
	out     io.Writer
	verbose bool
}

// NewLogger creates a new logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return &Logger{out: os.Stderr, verbose: verbose}
}

// NewLoggerTo creates a logger writing to w. Used by tests.
func NewLoggerTo(w io.Writer, verbose bool) *Logger {
	return &Logger{out: w, verbose: verbose}
}

// Verbose reports whether debug-level messages are printed.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// Log prints a styled log message.
func (l *Logger) Log(msg string, style Style) {
	styleColor := Cyan
	switch style {
	case StyleInfo:
		styleColor = Cyan
	case StyleSuccess:
		styleColor = Green
	case StyleWarning:
		styleColor = Yellow
	case StyleError:
		styleColor = Red
	case StyleDim:
		styleColor = Dim
	case StylePhase:
		styleColor = Magenta + Bold
	}

	tag := fmt.Sprintf("%s[%s%sloop%s%s]%s",
		Color(Dim), Color(Reset), Color(styleColor), Color(Reset), Color(Dim), Color(Reset))
	fmt.Fprintf(l.out, "%s %s\n", tag, msg)
}

// Logf prints a formatted styled log message.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}

// Debugf prints a dim message only when verbose is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.Log(fmt.Sprintf(format, args...), StyleDim)
}

// Banner prints a phase separator followed by a title line. The loop uses
// this to mark iteration and review-cycle boundaries.
func (l *Logger) Banner(title string) {
	rule := "============================================================"
	l.Log(rule, StylePhase)
	l.Log(title, StylePhase)
	l.Log(rule, StylePhase)
}
