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
		Name:  "show-stats",
		Usage: "Print packet counts per protocol label",
		Flags: []cli.Flag{
			humanFlag,
			configFlag,
			driverFlag,
			delimFlag,
		},
		Action: func(c *cli.Context) error {
			res := resources.InitResources(c.String("config"), c.String("driver"))
			defer res.Close()

			service := query.NewService(res.Store, geoip.Disabled{}, res.Config, res.Log)
			data, err := service.ProtocolStats()
			if err != nil {
				res.Log.Error(err)
				return cli.NewExitError(err, -1)
			}

			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}

			if c.Bool("human-readable") {
				showStatsHuman(os.Stdout, data)
				return nil
			}
			showStats(os.Stdout, data, c.String("delimiter"))
			return nil
		},
	}
	bootstrapCommands(command)
}

var statsHeaders = []string{"Protocol", "Packets"}

func statsRow(stat query.ProtocolStat) []string {
	name := "(unlabeled)"
	if stat.Protocol != nil {
		name = *stat.Protocol
	}
	return []string{name, i(stat.Count)}
}

func showStats(w io.Writer, stats []query.ProtocolStat, delim string) {
	fmt.Fprintln(w, strings.Join(statsHeaders, delim))
	for _, stat := range stats {
		fmt.Fprintln(w, strings.Join(statsRow(stat), delim))
	}
}

func showStatsHuman(w io.Writer, stats []query.ProtocolStat) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(statsHeaders)
	for _, stat := range stats {
		table.Append(statsRow(stat))
	}
	table.Render()
}
