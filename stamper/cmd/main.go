// Binary stamp substitutes {KEY} placeholders in a format string or file
// with values from workspace status files.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newStampCmd(os.Stdout).Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
