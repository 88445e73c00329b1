// Package rawterm provides a raw terminal interface for the interactive
// console, so single keystrokes reach the device stream without local echo
// or line buffering.
//
// Newlines are always LF. Terminals generally use CR when pressing the enter
// key and CRLF for newline; Getchar and Putchar translate between the two.
package rawterm

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

var terminalState *terminal.State

// Getchar returns a single character from stdin. Newlines are encoded with a
// single LF ('\n').
func Getchar() byte {
	var b [1]byte
	os.Stdin.Read(b[:])
	if b[0] == '\r' {
		return '\n'
	}
	return b[0]
}

// Putchar writes a single character to the terminal. Newlines are expected
// to be encoded as LF symbols ('\n').
func Putchar(ch byte) {
	if ch == '\n' {
		// Terminals expect CRLF.
		Putchar('\r')
	}
	b := [1]byte{ch}
	os.Stdout.Write(b[:])
}

// Configure puts the terminal in raw mode for use with Getchar/Putchar. It
// must be paired with Restore:
//
//	rawterm.Configure()
//	defer rawterm.Restore()
func Configure() {
	terminalState, _ = terminal.MakeRaw(0)
}

// Restore returns the terminal to the state before Configure was called.
func Restore() {
	terminal.Restore(0, terminalState)
}
