// Package console is the shared, serialized output sink of xcloc.
//
// Every line goes to one writer (stderr by default) under a single mutex, so
// messages from concurrently running locale pipelines never interleave.
// A progress bar may draw a status line through Writer; log lines printed
// while it is visible clear it first and redraw it afterwards.
package console

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
	// status is the unterminated line last drawn through Writer.
	status []byte
)

// SetOutput redirects the sink. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	status = status[:0]
	log.SetOutput(lockedWriter{})
	return prev
}

func emit(prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if len(status) > 0 {
		fmt.Fprint(out, "\r\033[K")
	}
	if prefix != "" {
		fmt.Fprint(out, prefix+" ")
	}
	fmt.Fprintf(out, format+"\n", args...)
	if len(status) > 0 {
		out.Write(status)
	}
}

// Info prints an [INFO] line.
func Info(format string, args ...any) {
	emit(blue("[INFO]"), format, args...)
}

// Success prints an [OK] line.
func Success(format string, args ...any) {
	emit(green("[OK]"), format, args...)
}

// Warn prints a [WARN] line.
func Warn(format string, args ...any) {
	emit(yellow("[WARN]"), format, args...)
}

// Error prints an [ERROR] line.
func Error(format string, args ...any) {
	emit(red("[ERROR]"), format, args...)
}

// Debug prints a [DEBUG] line.
func Debug(format string, args ...any) {
	emit(cyan("[DEBUG]"), format, args...)
}

// Line prints an unprefixed line.
func Line(format string, args ...any) {
	emit("", format, args...)
}

// Writer returns a writer for status-line output such as a progress bar.
// Whatever follows the last carriage return or newline it receives is kept
// and redrawn below later log lines.
func Writer() io.Writer {
	return statusWriter{}
}

type statusWriter struct{}

func (statusWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	for _, b := range p {
		switch b {
		case '\r', '\n':
			status = status[:0]
		default:
			status = append(status, b)
		}
	}
	return out.Write(p)
}

// ClearStatus forgets the current status line and ends it with a newline
// if one was drawn.
func ClearStatus() {
	mu.Lock()
	defer mu.Unlock()
	if len(status) > 0 {
		fmt.Fprintln(out)
		status = status[:0]
	}
}

// lockedWriter routes the standard logger through the sink.
type lockedWriter struct{}

func (lockedWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if len(status) > 0 {
		fmt.Fprint(out, "\r\033[K")
	}
	n, err := out.Write(p)
	if len(status) > 0 {
		out.Write(status)
	}
	return n, err
}

func init() {
	log.SetOutput(lockedWriter{})
}
