package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fodormate111/NetCopy/config"
	"github.com/fodormate111/NetCopy/internal/registry"
	"github.com/fodormate111/NetCopy/pkg/env"
	"github.com/fodormate111/NetCopy/pkg/logging"
)

func main() {
	env.LoadEnv()

	app := &cli.App{
		Name:      "checksumd",
		Usage:     "Checksum registry for netcopy transfers",
		ArgsUsage: "<bind_ip> <bind_port>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging",
			},
			&cli.DurationFlag{
				Name:  "sweep-interval",
				Usage: "reclaim expired entries this often (0 disables the sweep)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logging.InitLogger(c.Bool("debug"))
	config.LoadConfig(".")

	if c.NArg() != 2 {
		return cli.Exit("usage: checksumd <bind_ip> <bind_port>", 1)
	}
	bindIP := c.Args().Get(0)
	if _, err := strconv.Atoi(c.Args().Get(1)); err != nil {
		return cli.Exit("port must be a valid integer", 1)
	}

	store := registry.NewStore()

	sweep := c.Duration("sweep-interval")
	if sweep == 0 {
		sweep = config.Config.SweepInterval()
	}
	if sweep > 0 {
		store.StartSweeper(sweep)
		defer store.StopSweeper()
	}

	srv := registry.NewServer(store, config.Config.ReadTimeout())
	if err := srv.Start(net.JoinHostPort(bindIP, c.Args().Get(1))); err != nil {
		return err
	}

	waitForSignal()
	logging.Log.Info("shutting down checksum registry")
	return srv.Stop()
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
