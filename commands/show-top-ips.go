package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/query"
	"github.com/netprobe/wirewatch/resources"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "show-top-ips",
		Usage: "Print the busiest source addresses with their location",
		Flags: []cli.Flag{
			humanFlag,
			configFlag,
			driverFlag,
			limitFlag,
			delimFlag,
			cli.BoolFlag{
				Name:  "no-geo",
				Usage: "Skip the geolocation lookups",
			},
		},
		Action: func(c *cli.Context) error {
			res := resources.InitResources(c.String("config"), c.String("driver"))
			defer res.Close()

			var locator geoip.Locator = geoip.Disabled{}
			if !c.Bool("no-geo") {
				locator = geoip.NewLocator(res.Config.S.GeoIP)
			}

			limit := c.Int("limit")
			if limit <= 0 {
				limit = res.Config.S.API.TopIPLimit
			}

			ctx, stop := signalContext()
			defer stop()

			service := query.NewService(res.Store, locator, res.Config, res.Log)
			data, err := service.TopSourceIPsN(ctx, limit)
			if err != nil {
				res.Log.Error(err)
				return cli.NewExitError(err, -1)
			}

			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}

			if c.Bool("human-readable") {
				showTopIPsHuman(os.Stdout, data)
				return nil
			}
			showTopIPs(os.Stdout, data, c.String("delimiter"))
			return nil
		},
	}
	bootstrapCommands(command)
}

var topIPHeaders = []string{"IP", "Packets", "City", "Region", "Country", "ISP"}

func topIPRow(ip query.TopIP) []string {
	return []string{ip.IP, i(ip.Count), ip.City, ip.Region, ip.Country, ip.ISP}
}

func showTopIPs(w io.Writer, ips []query.TopIP, delim string) {
	fmt.Fprintln(w, strings.Join(topIPHeaders, delim))
	for _, ip := range ips {
		fmt.Fprintln(w, strings.Join(topIPRow(ip), delim))
	}
}

func showTopIPsHuman(w io.Writer, ips []query.TopIP) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(topIPHeaders)
	for _, ip := range ips {
		table.Append(topIPRow(ip))
	}
	table.Render()
}
