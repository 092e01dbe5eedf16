// Package ui holds the terminal output styles and the prompt wrappers the
// command handlers share.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorCyan   = lipgloss.Color("#06b6d4")
	colorDim    = lipgloss.Color("#6b7280")

	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	infoStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// Success prints a confirmation line.
func Success(format string, args ...any) {
	fmt.Printf("%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

// Error prints an error line.
func Error(format string, args ...any) {
	fmt.Printf("%s %s %s\n", errorStyle.Render("✗"), errorStyle.Render("ERROR:"), fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func Warning(format string, args ...any) {
	fmt.Printf("%s %s %s\n", warningStyle.Render("!"), warningStyle.Render("WARNING:"), fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func Info(format string, args ...any) {
	fmt.Printf("%s %s\n", infoStyle.Render("→"), fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(title string) {
	fmt.Printf("\n%s\n\n", headerStyle.Render("=== "+title+" ==="))
}

// Dim renders text in the muted style.
func Dim(text string) string {
	return dimStyle.Render(text)
}

// IsInteractive reports whether stdin and stdout are attached to a
// terminal. Prompts and menus only make sense when it is true.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
