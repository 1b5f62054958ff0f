package helpers

import (
	"fmt"
	"io"
)

// MustFprintln and MustFprintf are for console output where a write failure means the process
// has lost its terminal and there is nothing useful left to do.

func MustFprintln(w io.Writer, a ...any) {
	if _, err := fmt.Fprintln(w, a...); err != nil {
		panic(err)
	}
}

func MustFprintf(w io.Writer, format string, a ...any) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		panic(err)
	}
}
