// Package log provides the relay's coloured console logger and a connection
// wrapper that records a transcript of each request.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Logger writes prefixed, coloured messages to a single writer.
// A nil *Logger discards everything.
type Logger struct {
	out     io.Writer
	verbose bool

	red    *color.Color
	blue   *color.Color
	yellow *color.Color

	mu sync.Mutex // one message at a time, color writes in several chunks
}

// NewLogger returns a Logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return New(os.Stderr, verbose)
}

// New returns a Logger writing to out. Colours are only used when out is a terminal.
func New(out io.Writer, verbose bool) *Logger {
	l := &Logger{
		out:     out,
		verbose: verbose,
		red:     color.New(color.FgRed),
		blue:    color.New(color.FgBlue),
		yellow:  color.New(color.FgYellow),
	}

	if !isTerminal(out) {
		l.red.DisableColor()
		l.blue.DisableColor()
		l.yellow.DisableColor()
	}

	return l
}

// Verbose reports whether verbose messages are printed.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// ErrorMsg prints an error message in red.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	l.print(func(l *Logger) *color.Color { return l.red }, "[!] Error: ", format, a...)
}

// InfoMsg prints an informational message in blue.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	l.print(func(l *Logger) *color.Color { return l.blue }, "[+] ", format, a...)
}

// VerboseMsg prints a debug message in yellow, only if verbose output is enabled.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.print(func(l *Logger) *color.Color { return l.yellow }, "[v] ", format, a...)
}

// print resolves the colour only after the nil check.
func (l *Logger) print(colour func(*Logger) *color.Color, prefix, format string, a ...interface{}) {
	if l == nil {
		return
	}

	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	colour(l).Fprintf(l.out, prefix+format, a...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
