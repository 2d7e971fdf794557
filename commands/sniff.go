package commands

import (
	"context"
	"sync"

	"github.com/netprobe/wirewatch/pkg/capture"
	"github.com/netprobe/wirewatch/pkg/capture/live"
	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/query"
	"github.com/netprobe/wirewatch/pkg/retention"
	"github.com/netprobe/wirewatch/pkg/sysinfo"
	"github.com/netprobe/wirewatch/resources"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	sniff := cli.Command{
		Name:  "sniff",
		Usage: "Record system info, capture packets and serve the query API",
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
			interfaceFlag,
		},
		Action: func(c *cli.Context) error {
			return run(c, true, true)
		},
	}

	captureCommand := cli.Command{
		Name:  "capture",
		Usage: "Capture packets into the store without serving the query API",
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
			interfaceFlag,
		},
		Action: func(c *cli.Context) error {
			return run(c, true, false)
		},
	}

	serve := cli.Command{
		Name:  "serve",
		Usage: "Serve the query API over previously captured packets",
		Flags: []cli.Flag{
			configFlag,
			driverFlag,
		},
		Action: func(c *cli.Context) error {
			return run(c, false, true)
		},
	}

	bootstrapCommands(sniff, captureCommand, serve)
}

// run starts the capture loop and the query server on their own goroutines
// and blocks until both stop. Either stopping on an error stops the other.
func run(c *cli.Context, withCapture, withServer bool) error {
	res := resources.InitResources(c.String("config"), c.String("driver"))
	defer res.Close()

	if iface := c.String("interface"); iface != "" {
		res.Config.S.Capture.Interface = iface
	}

	ctx, stop := signalContext()
	defer stop()

	var workers []func(context.Context) error

	if withCapture {
		reporter := sysinfo.NewReporter(res.Store, res.Config.T.Structure.SystemInfoTable, res.Log)
		if _, err := reporter.Report(); err != nil {
			return cli.NewExitError(err.Error(), -1)
		}

		src, err := live.Open(res.Config.S.Capture, res.Log)
		if err != nil {
			return cli.NewExitError(err.Error(), -1)
		}
		defer src.Close()

		loop := capture.NewLoop(src, res.Store, res.Config, res.Log)
		workers = append(workers, loop.Run)

		scheduler, err := retention.NewPurger(res.Store, res.Config, res.Log).Start()
		switch {
		case err == nil:
			defer scheduler.Stop()
		case err != retention.ErrDisabled:
			return cli.NewExitError(err.Error(), -1)
		}
	}

	if withServer {
		locator := geoip.NewLocator(res.Config.S.GeoIP)
		service := query.NewService(res.Store, locator, res.Config, res.Log)
		server := query.NewServer(service, res.Config.S.API, res.Log)
		workers = append(workers, server.ListenAndServe)
	}

	if err := runWorkers(ctx, stop, res.Log, workers...); err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

// runWorkers runs each worker until ctx is done, cancelling ctx through stop
// as soon as any worker returns. The first error is reported.
func runWorkers(ctx context.Context, stop context.CancelFunc, logger *log.Logger, workers ...func(context.Context) error) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(workers))

	for _, worker := range workers {
		wg.Add(1)
		go func(worker func(context.Context) error) {
			defer wg.Done()
			defer stop()
			if err := worker(ctx); err != nil {
				errs <- err
			}
		}(worker)
	}

	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		logger.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Worker stopped")
		if first == nil {
			first = err
		}
	}
	logger.Info("Shut down")
	return first
}
