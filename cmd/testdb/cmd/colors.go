package cmd

import (
	"os"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Gray  = "\033[90m" // Bright black
	Cyan  = "\033[36m"
	Red   = "\033[31m"
	Green = "\033[32m"
)

var (
	// colorsEnabled is cached result of supportsColor()
	colorsEnabled = -1
)

// supportsColor reports whether output goes to a terminal that accepts ANSI codes.
func supportsColor() bool {
	if colorsEnabled != -1 {
		return colorsEnabled == 1
	}

	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		colorsEnabled = 0
		return false
	}

	// Only colorize when out is the real stdout and it is a character device
	f, ok := out.(*os.File)
	if !ok {
		colorsEnabled = 0
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil || fileInfo.Mode()&os.ModeCharDevice == 0 {
		colorsEnabled = 0
		return false
	}

	colorsEnabled = 1
	return true
}

func colorize(color, text string) string {
	if !supportsColor() {
		return text
	}
	return color + text + Reset
}

// Info returns text colored in gray for informational messages
func Info(text string) string {
	return colorize(Gray, text)
}

// Warning returns text colored in red for warnings and critical messages
func Warning(text string) string {
	return colorize(Red, text)
}

// Success returns text colored in green for success messages
func Success(text string) string {
	return colorize(Green, text)
}

// DatabaseName returns text colored in cyan for database names
func DatabaseName(text string) string {
	return colorize(Cyan, text)
}
