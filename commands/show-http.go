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
		Name:  "show-http",
		Usage: "Print the most recently captured HTTP POST requests",
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
			data, err := service.RecentHTTPRequestsN(rowLimit(c, res))
			if err != nil {
				res.Log.Error(err)
				return cli.NewExitError(err, -1)
			}

			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}

			if c.Bool("human-readable") {
				showHTTPHuman(os.Stdout, data)
				return nil
			}
			showHTTP(os.Stdout, data, c.String("delimiter"))
			return nil
		},
	}
	bootstrapCommands(command)
}

var httpHeaders = []string{"Timestamp", "Source", "Destination", "Method", "Payload"}

// payloadPreviewLength caps the payload column of the table view
const payloadPreviewLength = 60

func httpRow(request packet.HTTPRequest, payload string) []string {
	return []string{
		util.FormatTimestamp(request.Timestamp),
		fmt.Sprintf("%s:%d", request.SrcIP, request.SrcPort),
		fmt.Sprintf("%s:%d", request.DstIP, request.DstPort),
		request.Method,
		payload,
	}
}

func showHTTP(w io.Writer, requests []packet.HTTPRequest, delim string) {
	fmt.Fprintln(w, strings.Join(httpHeaders, delim))
	for _, request := range requests {
		fmt.Fprintln(w, strings.Join(httpRow(request, fmt.Sprintf("%q", request.Payload)), delim))
	}
}

func showHTTPHuman(w io.Writer, requests []packet.HTTPRequest) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(httpHeaders)
	table.SetAutoWrapText(false)
	for _, request := range requests {
		table.Append(httpRow(request, previewPayload(request.Payload)))
	}
	table.Render()
}

// previewPayload keeps the first line of the payload, shortened for display
func previewPayload(payload string) string {
	if idx := strings.IndexAny(payload, "\r\n"); idx >= 0 {
		payload = payload[:idx]
	}
	runes := []rune(payload)
	if len(runes) > payloadPreviewLength {
		return string(runes[:payloadPreviewLength]) + "..."
	}
	return payload
}
