package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablequeue/waitlist-service/internal/cli"
	"tablequeue/waitlist-service/internal/config"
	"tablequeue/waitlist-service/internal/httpapi"
	"tablequeue/waitlist-service/internal/logging"
	"tablequeue/waitlist-service/internal/relay"
	"tablequeue/waitlist-service/internal/telemetry"
	"tablequeue/waitlist-service/internal/waitlist"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "waitlist-service"

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	location, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("invalid restaurant time zone")
	}

	shutdownTracing := telemetry.Setup(serviceName, cfg.Environment, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.WithError(err).Warn("tracing shutdown error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := cli.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("store unavailable")
	}
	defer closeStore()

	service := waitlist.NewService(st, waitlist.Options{
		Logger:       log,
		HistoryWeeks: cfg.HistoryWeeks,
		Location:     location,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:         cfg.RateLimitPerMinute,
		IPBurst:             cfg.RateLimitBurst,
		RestaurantPerMinute: cfg.RestaurantRateLimitPerMinute,
		RestaurantBurst:     cfg.RestaurantRateLimitBurst,
	})
	handler := httpapi.NewHandler(service, httpapi.Options{
		Logger:             log,
		Limiter:            limiter,
		PrioritizePhysical: cfg.PrioritizePhysical,
		GraceMinutes:       &cfg.RemoteGraceMinutes,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(handler.Routes(), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("waitlist-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return waitlist.NewSweeper(service, cfg.ExpiryInterval, cfg.RemoteGraceMinutes).Run(gctx)
	})

	if cfg.NATSURL != "" {
		publisher, err := relay.NewNATSPublisher(cfg.NATSURL, serviceName)
		if err != nil {
			log.WithError(err).Fatal("nats unavailable")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("nats drain error")
			}
		}()
		outbox := relay.New(st, publisher, relay.Config{
			BatchSize: cfg.RelayBatchSize,
			Logger:    log,
		})
		g.Go(func() error {
			return outbox.Start(gctx, cfg.RelayInterval)
		})
	} else {
		log.Info("NATS_URL not set, outbox relay disabled")
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("waitlist-service stopped")
		os.Exit(1)
	}
	log.Info("waitlist-service stopped")
}
