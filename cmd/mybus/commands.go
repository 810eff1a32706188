package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mybus-data/internal/api"
	"github.com/mybus-data/internal/common/config"
	"github.com/mybus-data/internal/common/logger"
	"github.com/mybus-data/internal/updater"
	"github.com/urfave/cli/v2"
)

// updateTick is how often the scheduler asks the checker to run. The checker
// itself skips runs inside its check interval.
const updateTick = time.Hour

func serveCommand(cfg *config.Config, log logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run database updates, housekeeping and the HTTP API",
		Action: func(c *cli.Context) error {
			log.Info("MyBus data service starting",
				"version", version,
				"log_level", cfg.Logging.Level,
				"bus_stop_db", cfg.Database.BusStopPath,
				"update_endpoint", cfg.Updater.EndpointURL,
			)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			svc, err := openServices(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			var wg sync.WaitGroup

			if err := svc.cleanup.Start(ctx); err != nil {
				return err
			}
			defer svc.cleanup.Stop()

			scheduler := updater.NewScheduler(svc.checker, min(updateTick, cfg.Updater.CheckInterval), log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := scheduler.Start(ctx); err != nil {
					log.Error("Database update scheduler error", "error", err)
				}
			}()

			var server *api.Server
			if cfg.API.Enabled {
				deps := api.Dependencies{
					Version:     version,
					BusStops:    svc.stops,
					Settings:    svc.settings,
					Updater:     svc.checker,
					Maintenance: svc.cleanup,
				}
				if svc.live != nil {
					deps.LiveTimes = svc.live
				}
				server = api.NewServer(deps, log)

				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := server.Listen(cfg.API.Listen); err != nil {
						log.Error("HTTP API error", "error", err)
					}
				}()
			} else {
				log.Info("HTTP API disabled")
			}

			select {
			case <-sigChan:
				log.Info("Shutdown signal received")
			case <-ctx.Done():
			}

			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error("HTTP API shutdown error", "error", err)
				}
				shutdownCancel()
			}

			wg.Wait()

			log.Info("MyBus data service stopped")
			return nil
		},
	}
}

func checkUpdateCommand(cfg *config.Config, log logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "check-update",
		Usage: "check for a new bus stop database now and install it",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "only report whether an update is available",
			},
		},
		Action: func(c *cli.Context) error {
			svc, err := openServices(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			var result updater.Result
			if c.Bool("dry-run") {
				result, err = svc.checker.CheckForUpdate(c.Context)
			} else {
				result, err = svc.checker.ForceRun(c.Context)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "status: %s\n", result.Status)
			if result.Version != nil {
				fmt.Fprintf(c.App.Writer, "topology: %s\n", result.Version.TopologyID)
			}
			if result.Reason != "" {
				fmt.Fprintf(c.App.Writer, "reason: %s\n", result.Reason)
			}
			return nil
		},
	}
}

func dbInfoCommand(cfg *config.Config, log logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "db-info",
		Usage: "print the version of the installed bus stop database",
		Action: func(c *cli.Context) error {
			svc, err := openServices(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			info, err := svc.stops.CurrentVersion(c.Context)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "schema: %s\n", info.SchemaName)
			fmt.Fprintf(c.App.Writer, "topology: %s\n", info.TopologyID)
			fmt.Fprintf(c.App.Writer, "updated: %s\n", info.UpdatedAt.Format(time.RFC3339))

			last, err := svc.settings.LastUpdateCheck(c.Context)
			if err != nil {
				return err
			}
			if !last.IsZero() {
				fmt.Fprintf(c.App.Writer, "last check: %s\n", last.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func departuresCommand(cfg *config.Config, log logger.Logger) *cli.Command {
	return &cli.Command{
		Name:      "departures",
		Usage:     "print live departures for one or more stops",
		ArgsUsage: "STOP_CODE [STOP_CODE...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one stop code is required")
			}

			svc, err := openServices(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			if svc.live == nil {
				return errors.New("live times are not configured, set MYBUS_LIVE_API_KEY")
			}

			times, err := svc.live.BusTimesForStops(c.Context, c.Args().Slice())
			if err != nil {
				return err
			}

			now := time.Now()
			for _, code := range times.StopCodes() {
				stop := times.BusStop(code)
				fmt.Fprintf(c.App.Writer, "%s %s\n", stop.StopCode(), stop.StopName())
				for _, service := range stop.Services() {
					for _, bus := range service.Buses() {
						fmt.Fprintf(c.App.Writer, "  %-4s %-24s %3d min\n",
							service.ServiceName(), bus.Destination(), bus.MinutesUntil(now))
					}
				}
			}
			return nil
		},
	}
}
