package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/netprobe/wirewatch/pkg/capture"
	"github.com/netprobe/wirewatch/resources"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

func init() {
	importCommand := cli.Command{
		Name:      "import",
		Usage:     "Replay a pcap or pcapng file into the store",
		ArgsUsage: "<capture file>",
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
		},
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return cli.NewExitError("Specify a capture file to import", -1)
			}

			res := resources.InitResources(c.String("config"), c.String("driver"))
			defer res.Close()

			ctx, stop := signalContext()
			defer stop()

			counters, err := importFile(ctx, res, path, true)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			fmt.Printf("\t[+] Imported %d of %d frames (%d HTTP requests, %d skipped, %d write errors)\n",
				counters.Stored, counters.Captured, counters.HTTPRequests, counters.Skipped, counters.WriteErrors)
			return nil
		},
	}

	bootstrapCommands(importCommand)
}

// importFile runs a capture file through the capture loop
func importFile(ctx context.Context, res *resources.Resources, path string, showProgress bool) (capture.Counters, error) {
	file, err := os.Open(path)
	if err != nil {
		return capture.Counters{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return capture.Counters{}, err
	}

	var reader io.ReadSeeker = file
	var progress *progressReader
	var p *mpb.Progress
	if showProgress {
		p = mpb.New(mpb.WithWidth(20))
		bar := p.AddBar(info.Size(),
			mpb.PrependDecorators(
				decor.Name("\t[-] Importing "+filepath.Base(path)+":", decor.WC{W: 30, C: decor.DidentRight}),
				decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		progress = &progressReader{file: file, bar: bar, total: info.Size()}
		reader = progress
	}

	src, err := capture.NewOfflineSource(reader, res.Log)
	if err != nil {
		if progress != nil {
			progress.finish()
			p.Wait()
		}
		return capture.Counters{}, fmt.Errorf("could not read %s: %w", path, err)
	}

	loop := capture.NewLoop(src, res.Store, res.Config, res.Log)
	err = loop.Run(ctx)

	if progress != nil {
		progress.finish()
		p.Wait()
	}
	return loop.Counters(), err
}

// progressReader advances a progress bar as the file is consumed. Seeking
// back does not move the bar backwards.
type progressReader struct {
	file  io.ReadSeeker
	bar   *mpb.Bar
	total int64
	pos   int64
	high  int64
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	r.pos += int64(n)
	if r.pos > r.high {
		r.bar.IncrBy(int(r.pos - r.high))
		r.high = r.pos
	}
	return n, err
}

func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.file.Seek(offset, whence)
	if err == nil {
		r.pos = pos
	}
	return pos, err
}

// finish fills the bar so the progress container can exit
func (r *progressReader) finish() {
	if r.high < r.total {
		r.bar.IncrBy(int(r.total - r.high))
		r.high = r.total
	}
}
