package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"timesheet/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := cli.DefaultDeps()
	if err := cli.NewRootCommand(deps).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(deps.Stderr, cli.DefaultStyles().Error.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}
