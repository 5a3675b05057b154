// Command tplsync synchronizes account templates between a local folder and
// one or more firms.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/firmkit/tplsync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
