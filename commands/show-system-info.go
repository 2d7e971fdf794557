package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/query"
	"github.com/netprobe/wirewatch/pkg/sysinfo"
	"github.com/netprobe/wirewatch/resources"
	"github.com/netprobe/wirewatch/util"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "show-system-info",
		Usage: "Print the host recorded by the last capture",
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
			info, err := service.SystemInfo()
			if err != nil {
				res.Log.Error(err)
				return cli.NewExitError(err, -1)
			}

			if info == nil {
				return cli.NewExitError("No system info has been recorded", -1)
			}

			if c.Bool("human-readable") {
				showSystemInfoHuman(os.Stdout, info)
				return nil
			}
			showSystemInfo(os.Stdout, info, c.String("delimiter"))
			return nil
		},
	}
	bootstrapCommands(command)
}

var systemInfoHeaders = []string{"Hostname", "Internal IP", "Total Memory"}

func showSystemInfo(w io.Writer, info *sysinfo.Record, delim string) {
	fmt.Fprintln(w, strings.Join(systemInfoHeaders, delim))
	fmt.Fprintln(w, strings.Join([]string{
		info.Hostname,
		info.InternalIP,
		fmt.Sprintf("%d", info.TotalMemory),
	}, delim))
}

func showSystemInfoHuman(w io.Writer, info *sysinfo.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(systemInfoHeaders)
	table.Append([]string{info.Hostname, info.InternalIP, util.FormatBytes(info.TotalMemory)})
	table.Render()
}
