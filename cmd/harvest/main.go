package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dkobozev/harvest-cli/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx, &cli.App{}, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stdout, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
