// Binary templite renders a template file against variables taken from
// -D defines, stamp info files, data files and imports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/templite/templating"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)

	stop()

	if err != nil {
		slog.Error("fatal", "error", err)

		if detail := templating.Detail(err); detail != "" {
			fmt.Fprint(os.Stderr, detail)
		}

		os.Exit(1)
	}
}
