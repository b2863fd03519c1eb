package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := cmd.NewRootCmd()
	root.SetContext(ctx)

	code := cli.Execute(root)
	stop()
	os.Exit(code)
}
