// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// querymem-bench drives a synthetic workload of concurrent queries against
// a pool.Pool, prints the resulting reservation snapshot, and optionally
// serves it on a Prometheus /metrics endpoint.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	querylog "github.com/skyquery/querymem/internal/log"
	"github.com/skyquery/querymem/internal/metrics"
	"github.com/skyquery/querymem/pool"
)

const clientIdentifier = "querymem-bench"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "simulate concurrent query memory reservations against a pool.Pool",
	Version: "1.0.0",
}

func init() {
	app.Action = runBench
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "optional config file read by viper (yaml/json/toml)"},
		&cli.StringFlag{Name: "capacity", Usage: "pool capacity in bytes", Value: "1073741824"},
		&cli.StringFlag{Name: "queries", Usage: "number of concurrent queries to simulate", Value: "4"},
		&cli.StringFlag{Name: "tasks-per-query", Usage: "tasks spawned per query", Value: "4"},
		&cli.StringFlag{Name: "arrivals-per-sec", Usage: "reservation arrival rate across all tasks", Value: "50"},
		&cli.StringFlag{Name: "duration", Usage: "how long to run the simulation", Value: "10s"},
		&cli.StringFlag{Name: "log-level", Usage: "trace|debug|info|warn|error|crit", Value: "info"},
		&cli.StringFlag{Name: "log-file", Usage: "rotate JSON logs to this path instead of stderr"},
		&cli.StringFlag{Name: "vmodule", Usage: "glog-style per-module verbosity overrides, e.g. pool=5"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "address to serve /metrics on, empty disables it", Value: ":9464"},
		&cli.StringFlag{Name: "filter", Usage: "bexpr expression to filter the final snapshot dump"},
		&cli.StringFlag{Name: "dump-recent-events", Usage: "print the last N pool events before exiting", Value: "0"},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBench(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := configureLogging(cfg); err != nil {
		return err
	}

	p := pool.NewPool(cfg.CapacityBytes, pool.WithLogger(querylog.Root()))
	collector := metrics.NewCollector(p)

	srv := startMetricsServer(cfg, collector)

	if err := runSimulation(c.Context, p, cfg); err != nil {
		return err
	}

	if srv != nil {
		_ = srv.Close()
	}

	return dumpSnapshot(p, cfg)
}

// configureLogging installs either a colorized terminal handler or a
// rotating JSON file handler as the root logger, mirroring the
// log.SetDefault(log.NewLogger(...)) call the teacher's cmd/evm-node
// makes from its App.Before hook.
func configureLogging(cfg Config) error {
	level, err := querylog.LvlFromString(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", cfg.LogLevel, err)
	}

	if cfg.LogFile != "" {
		h := querylog.NewRotatingFileHandler(cfg.LogFile, 100, 5, 28, level)
		querylog.SetDefault(querylog.NewLogger(h))
		return nil
	}

	h := querylog.NewTerminalHandlerWithLevel(os.Stderr, level, true)
	if cfg.Vmodule != "" {
		g, ok := h.(*querylog.GlogHandler)
		if !ok {
			return fmt.Errorf("--vmodule requires the terminal handler")
		}
		if err := g.Vmodule(cfg.Vmodule); err != nil {
			return fmt.Errorf("invalid --vmodule: %w", err)
		}
	}
	querylog.SetDefault(querylog.NewLogger(h))
	return nil
}

func startMetricsServer(cfg Config, collector *metrics.Collector) *http.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		querylog.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			querylog.Error("metrics server stopped", "err", err)
		}
	}()
	return srv
}
