//go:build windows

package main

import (
	"os"
	"strconv"

	"golang.org/x/sys/windows"
)

// terminalWidth returns the column count of f and whether f is a console.
func terminalWidth(f *os.File) (int, bool) {
	var mode uint32
	isConsole := windows.GetConsoleMode(windows.Handle(f.Fd()), &mode) == nil

	var info windows.ConsoleScreenBufferInfo
	if isConsole && windows.GetConsoleScreenBufferInfo(windows.Handle(f.Fd()), &info) == nil {
		if w := int(info.Window.Right-info.Window.Left) + 1; w > 0 {
			return w, true
		}
	}
	if cols, ok := os.LookupEnv("COLUMNS"); ok {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n, isConsole
		}
	}
	return 0, isConsole
}
