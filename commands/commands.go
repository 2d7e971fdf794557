package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli"
)

var (
	allCommands []cli.Command

	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Use a given `CONFIG_FILE` when running this command",
		Value: "",
	}

	driverFlag = cli.StringFlag{
		Name:  "driver",
		Usage: "Override the storage `DRIVER` (mongodb, sqlite3, mysql, memory)",
		Value: "",
	}

	interfaceFlag = cli.StringFlag{
		Name:  "interface, i",
		Usage: "Capture on `INTERFACE` instead of the configured one",
		Value: "",
	}

	limitFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "Print upto `N` rows",
		Value: 0,
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a report instead of csv",
	}

	delimFlag = cli.StringFlag{
		Name:  "delimiter, d",
		Usage: "Change the delimiter used in the output",
		Value: ",",
	}
)

// bootstrapCommands simply adds a given command to the allCommands array
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// helper functions for formatting floats and integers
func f(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func i(i int) string {
	return strconv.Itoa(i)
}
