//go:build !windows

package main

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// terminalWidth returns the column count of f and whether f is a terminal.
// COLUMNS is consulted when the ioctl fails.
func terminalWidth(f *os.File) (int, bool) {
	fd := int(f.Fd())
	if ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ); err == nil && ws != nil {
		if ws.Col > 0 {
			return int(ws.Col), true
		}
		return columnsEnv(), true
	}
	return columnsEnv(), false
}

func columnsEnv() int {
	if cols, ok := os.LookupEnv("COLUMNS"); ok {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
