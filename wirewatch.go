package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/netprobe/wirewatch/commands"
	"github.com/netprobe/wirewatch/config"
	"github.com/urfave/cli"
)

// Entry point of wirewatch
func main() {
	app := cli.NewApp()
	app.Name = "wirewatch"
	app.Usage = "Capture packets, flag HTTP POSTs and serve what was seen."

	// Change the version string with updates so that a quick help command will
	// let the testers know what version of wirewatch they're on
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}
