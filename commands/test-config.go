package commands

import (
	"fmt"
	"os"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/resources"

	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"
)

func init() {
	command := cli.Command{
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
		},
		Name:   "test-config",
		Usage:  "Check the configuration file for validity",
		Action: testConfiguration,
	}

	bootstrapCommands(command)
}

// testConfiguration prints out the result of parsing the config file
func testConfiguration(c *cli.Context) error {
	// First, print out the config as it was parsed
	conf, err := config.GetConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("Failed to config: %s", err.Error()), -1)
	}
	if driver := c.String("driver"); driver != "" {
		conf.S.Storage.Driver = driver
	}

	staticConfig, err := yaml.Marshal(conf.S)
	if err != nil {
		return err
	}

	tableConfig, err := yaml.Marshal(conf.T)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\n%s\n", string(staticConfig))
	fmt.Fprintf(os.Stdout, "\n%s\n", string(tableConfig))

	// Then test initializing external resources like db connection and file handles
	res, err := resources.NewResources(c.String("config"), c.String("driver"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	res.Close()

	fmt.Fprintln(os.Stdout, "Configuration OK")
	return nil
}
