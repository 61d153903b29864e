package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MrEthical07/donorhub/internal/config"
	"github.com/MrEthical07/donorhub/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "donorhub",
		Usage:   "Donor accounts, donations, and Stripe checkout API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
