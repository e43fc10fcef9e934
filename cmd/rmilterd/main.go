package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arnej/rmilter"
	"github.com/arnej/rmilter/internal/config"
	"github.com/arnej/rmilter/internal/dnsbl"
	"github.com/arnej/rmilter/internal/greylist"
	"github.com/arnej/rmilter/internal/logging"
	"github.com/arnej/rmilter/internal/metrics"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var stats rmilter.Stats
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		stats = metrics.NewPrometheusCollector(reg)

		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path, reg)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	}

	var checker *dnsbl.Checker
	if cfg.DNSBL.Enabled {
		timeout, _ := time.ParseDuration(cfg.DNSBL.Timeout)
		checker = dnsbl.New(dnsbl.Config{
			Zones:       cfg.DNSBL.Zones,
			Nameservers: cfg.DNSBL.Nameservers,
			Timeout:     timeout,
		})
		logger.Info("dnsbl enabled", "zones", cfg.DNSBL.Zones)
	}

	var grey *greylist.Greylist
	if cfg.Greylist.Enabled {
		delay, _ := time.ParseDuration(cfg.Greylist.Delay)
		window, _ := time.ParseDuration(cfg.Greylist.Window)
		grey = greylist.New(cfg.Greylist.RedisAddr, delay, window)
		defer grey.Close()
		logger.Info("greylisting enabled", "redis", cfg.Greylist.RedisAddr, "delay", delay)
	}

	listener, err := net.Listen(cfg.Listen.Network, cfg.Listen.Address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listening: %v\n", err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	srv := &rmilter.Server{
		NewHandler: func() rmilter.Handler {
			return newFilter(logger, checker, grey)
		},
		Protocol: cfg.Skip.Bits(),
		Logger:   logger,
		Stats:    stats,
	}

	logger.Info("starting rmilterd",
		"network", cfg.Listen.Network,
		"address", cfg.Listen.Address)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, net.ErrClosed) {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("rmilterd stopped")
}
