// README: Entry point; loads config, wires services, starts HTTP server and background schedulers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"truckmatch/internal/clock"
	"truckmatch/internal/config"
	httptransport "truckmatch/internal/http"
	"truckmatch/internal/infra"
	"truckmatch/internal/maps"
	"truckmatch/internal/modules/assignment"
	"truckmatch/internal/modules/document"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/tracking"
	"truckmatch/internal/modules/trip"
	"truckmatch/internal/modules/unit"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configDir string
	flagSet := pflag.NewFlagSet("truckmatch-api", pflag.ContinueOnError)
	flagSet.StringVar(&configDir, "config", ".", "directory holding config.yaml")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	log := infra.NewLogger("truckmatch-api", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("redis disabled; using random number suffixes, no live feed and no live unit positions")
	}
	numbers := infra.NewSequencer(redisClient)
	clk := clock.Real()

	driverSvc := driver.NewService(driver.NewStore(dbPool), clk, log)
	unitSvc := unit.NewService(unit.NewStore(dbPool), clk, log)
	documentSvc := document.NewService(document.NewStore(dbPool), clk, log)
	orderSvc := order.NewService(order.NewStore(dbPool), numbers, clk, log)

	var tripOpts []trip.Option
	var feed *trip.RedisFeed
	if redisClient != nil {
		feed = trip.NewRedisFeed(redisClient, log)
		tripOpts = append(tripOpts, trip.WithPublisher(feed))
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		tripOpts = append(tripOpts, trip.WithRouteEstimator(routes))
	}
	tripSvc := trip.NewService(trip.NewStore(dbPool), numbers, clk, log, tripOpts...)
	assignmentSvc := assignment.NewService(assignment.NewStore(dbPool), clk, log)

	var positions tracking.Positions
	if redisClient != nil {
		positions = tracking.NewRedisStore(redisClient, cfg.PositionTTL())
	}
	trackingSvc := tracking.NewService(tripSvc, positions, log)

	deps := httptransport.ServerDeps{
		Drivers:     driverSvc,
		Units:       unitSvc,
		Documents:   documentSvc,
		Orders:      orderSvc,
		Trips:       tripSvc,
		Assignments: assignmentSvc,
		Tracking:    trackingSvc,
		Verifier:    verifier,
		Log:         log,
	}
	if feed != nil {
		deps.Feed = feed
	}
	handler := httptransport.NewServer(deps)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		assignmentSvc.RunRevalidationTicker(gctx, cfg.RevalidateEvery())
		return nil
	})
	g.Go(func() error {
		documentSvc.RunExpiryTicker(gctx, cfg.ExpirySweepEvery())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
