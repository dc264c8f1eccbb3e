package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fodormate111/NetCopy/config"
	"github.com/fodormate111/NetCopy/internal/journal"
	"github.com/fodormate111/NetCopy/internal/receiver"
	"github.com/fodormate111/NetCopy/internal/registry"
	"github.com/fodormate111/NetCopy/pkg/env"
	"github.com/fodormate111/NetCopy/pkg/logging"
)

// Exit codes in --once mode, one per terminal verdict.
const (
	exitOK           = 0
	exitCorrupted    = 1
	exitUnverifiable = 2
	exitUnreachable  = 3
	exitNoVerdict    = 4
)

func main() {
	env.LoadEnv()

	app := &cli.App{
		Name:      "netcopyd",
		Usage:     "File transfer receiver with registry-backed checksum verification",
		ArgsUsage: "<bind_ip> <bind_port> <chsum_ip> <chsum_port> <out_path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "serve a single transfer, then exit with a verdict code",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "persist verdicts to a BadgerDB journal at this path",
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

	if c.NArg() != 5 {
		return cli.Exit("usage: netcopyd <bind_ip> <bind_port> <chsum_ip> <chsum_port> <out_path>", 1)
	}
	args := c.Args()
	for _, p := range []string{args.Get(1), args.Get(3)} {
		if _, err := strconv.Atoi(p); err != nil {
			return cli.Exit("port must be a valid integer", 1)
		}
	}
	bindAddr := net.JoinHostPort(args.Get(0), args.Get(1))
	registryAddr := net.JoinHostPort(args.Get(2), args.Get(3))
	outPath := args.Get(4)

	var jnl *journal.Journal
	journalPath := c.String("journal")
	if journalPath == "" {
		journalPath = config.Config.JournalPath
	}
	if journalPath != "" {
		var err error
		jnl, err = journal.Open(journalPath)
		if err != nil {
			return err
		}
		defer jnl.Close()
	}

	reg := registry.NewClient(registryAddr, config.Config.DialTimeout(), config.Config.ReadTimeout())
	srv := receiver.NewServer(reg, jnl, outPath)
	if err := srv.Listen(bindAddr); err != nil {
		return err
	}

	if c.Bool("once") {
		verdict, err := srv.ServeOne()
		srv.Stop()
		if err != nil {
			if errors.Is(err, receiver.ErrSessionAbandoned) {
				return cli.Exit("transfer abandoned, no verdict", exitNoVerdict)
			}
			return err
		}
		return cli.Exit("", verdictExitCode(verdict))
	}

	go srv.Serve()
	waitForSignal()
	logging.Log.Info("shutting down receiver")
	return srv.Stop()
}

func verdictExitCode(v receiver.Verdict) int {
	switch v {
	case receiver.VerdictOK:
		return exitOK
	case receiver.VerdictCorrupted:
		return exitCorrupted
	case receiver.VerdictUnverifiable:
		return exitUnverifiable
	case receiver.VerdictRegistryUnreachable:
		return exitUnreachable
	}
	return exitNoVerdict
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
