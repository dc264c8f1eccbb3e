package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fodormate111/NetCopy/config"
	"github.com/fodormate111/NetCopy/internal/registry"
	"github.com/fodormate111/NetCopy/internal/sender"
	"github.com/fodormate111/NetCopy/pkg/env"
	"github.com/fodormate111/NetCopy/pkg/logging"
)

func main() {
	env.LoadEnv()

	app := &cli.App{
		Name:      "netcopy",
		Usage:     "Send a file to a netcopyd receiver with a registered checksum",
		ArgsUsage: "<srv_ip> <srv_port> <chsum_ip> <chsum_port> <file_id> <file_path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "checksum time-to-live (default from config, 60s)",
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

	if c.NArg() != 6 {
		return cli.Exit("usage: netcopy <srv_ip> <srv_port> <chsum_ip> <chsum_port> <file_id> <file_path>", 1)
	}
	args := c.Args()
	for _, p := range []string{args.Get(1), args.Get(3)} {
		if _, err := strconv.Atoi(p); err != nil {
			return cli.Exit("port must be a valid integer", 1)
		}
	}
	receiverAddr := net.JoinHostPort(args.Get(0), args.Get(1))
	registryAddr := net.JoinHostPort(args.Get(2), args.Get(3))
	fileID := args.Get(4)
	filePath := args.Get(5)

	if _, err := os.Stat(filePath); err != nil {
		return cli.Exit(fmt.Sprintf("file not found: %s", filePath), 1)
	}

	ttl := c.Duration("ttl")
	if ttl == 0 {
		ttl = config.Config.DefaultTTL()
	}
	if ttl < time.Second {
		return cli.Exit("ttl must be at least one second", 1)
	}

	reg := registry.NewClient(registryAddr, config.Config.DialTimeout(), config.Config.ReadTimeout())
	snd := sender.New(reg, receiverAddr, ttl, config.Config.DialTimeout())
	return snd.Transfer(fileID, filePath)
}
