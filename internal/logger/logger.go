// Package logger prints tagged, colorized status lines to the console.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

var (
	mu    sync.Mutex
	quiet bool
)

// SetQuiet suppresses Info lines (warnings and errors are always printed).
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(color, s string) string {
	if !useColor() {
		return s
	}
	return color + s + colorReset
}

func line(color, symbol, tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		paint(colorGray, ts),
		paint(color, symbol),
		paint(colorBold, fmt.Sprintf("[%s]", tag)),
		msg,
	)
}

// Info prints a neutral status line.
func Info(tag, msg string) {
	mu.Lock()
	q := quiet
	mu.Unlock()
	if q {
		return
	}
	line(colorBlue, "•", tag, msg)
}

// Success prints a completed-step line.
func Success(tag, msg string) {
	line(colorGreen, "✓", tag, msg)
}

// Warn prints a warning line.
func Warn(tag, msg string) {
	line(colorYellow, "!", tag, msg)
}

// Error prints an error line.
func Error(tag, msg string) {
	line(colorRed, "✗", tag, msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	mu.Lock()
	defer mu.Unlock()
	bar := strings.Repeat("─", 40)
	fmt.Fprintln(os.Stdout, paint(colorCyan, bar))
	fmt.Fprintln(os.Stdout, paint(colorBold, "  OSRS Flipper ")+paint(colorGray, version))
	fmt.Fprintln(os.Stdout, paint(colorCyan, bar))
}

// Section prints a section heading.
func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stdout, "\n%s\n", paint(colorBold, "── "+title+" ──"))
}

// Stats prints an indented key/value pair under a section.
func Stats(key string, value interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stdout, "   %-18s %v\n", paint(colorGray, key), value)
}

// Server announces the listening address.
func Server(addr string) {
	line(colorGreen, "→", "HTTP", fmt.Sprintf("Listening on http://%s", addr))
}
