package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/query"
	"github.com/netprobe/wirewatch/resources"
	"github.com/netprobe/wirewatch/util"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "show-packets",
		Usage: "Print the most recently captured packets",
		Flags: []cli.Flag{
			humanFlag,
			configFlag,
			driverFlag,
			limitFlag,
			delimFlag,
		},
		Action: func(c *cli.Context) error {
			res := resources.InitResources(c.String("config"), c.String("driver"))
			defer res.Close()

			service := query.NewService(res.Store, geoip.Disabled{}, res.Config, res.Log)
			data, err := service.RecentPacketsN(rowLimit(c, res))
			if err != nil {
				res.Log.Error(err)
				return cli.NewExitError(err, -1)
			}

			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}

			if c.Bool("human-readable") {
				showPacketsHuman(os.Stdout, data)
				return nil
			}
			showPackets(os.Stdout, data, c.String("delimiter"))
			return nil
		},
	}
	bootstrapCommands(command)
}

// rowLimit returns --limit or the configured API limit
func rowLimit(c *cli.Context, res *resources.Resources) int {
	if limit := c.Int("limit"); limit > 0 {
		return limit
	}
	return res.Config.S.API.RecentLimit
}

var packetHeaders = []string{"Timestamp", "Source IP", "Source Port", "Destination IP", "Destination Port", "Protocol", "Protocol Name", "Length"}

func packetRow(record packet.Record) []string {
	return []string{
		util.FormatTimestamp(record.Timestamp),
		record.SrcIP,
		optionalPort(record.SrcPort),
		record.DstIP,
		optionalPort(record.DstPort),
		i(record.Protocol),
		record.ProtocolName,
		i(record.Length),
	}
}

func optionalPort(port *int) string {
	if port == nil {
		return ""
	}
	return i(*port)
}

func showPackets(w io.Writer, records []packet.Record, delim string) {
	fmt.Fprintln(w, strings.Join(packetHeaders, delim))
	for _, record := range records {
		fmt.Fprintln(w, strings.Join(packetRow(record), delim))
	}
}

func showPacketsHuman(w io.Writer, records []packet.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(packetHeaders)
	for _, record := range records {
		table.Append(packetRow(record))
	}
	table.Render()
}
