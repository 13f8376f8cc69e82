package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/whispin/modloader/internal/cli"
	"github.com/whispin/modloader/internal/module"
	"github.com/whispin/modloader/internal/process"
	"github.com/whispin/modloader/internal/target"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	deps := cli.Deps{
		Controller: target.NewController(),
		Alive:      process.Alive,
		Inspect:    process.Describe,
		Check:      module.Inspect,
	}

	code := cli.Execute(ctx, deps, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
