package commands

import (
	"fmt"
	"time"

	"github.com/netprobe/wirewatch/pkg/retention"
	"github.com/netprobe/wirewatch/resources"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "purge",
		Usage:     "Delete captured packets and HTTP requests older than the given age",
		ArgsUsage: "[age]",
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
		},
		Action: func(c *cli.Context) error {
			res := resources.InitResources(c.String("config"), c.String("driver"))
			defer res.Close()

			age := res.Config.S.Storage.Retention
			if c.Args().First() != "" {
				parsed, err := time.ParseDuration(c.Args().First())
				if err != nil {
					return cli.NewExitError(err.Error(), -1)
				}
				age = parsed
			}
			if age <= 0 {
				return cli.NewExitError("no age given and Storage.Retention is not set", -1)
			}

			removed, err := retention.NewPurger(res.Store, res.Config, res.Log).Purge(age)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			fmt.Printf("Removed %d documents older than %s\n", removed, age)
			return nil
		},
	}
	bootstrapCommands(command)
}
