// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// Config holds every tunable of the simulation, loaded from CLI flags
// with optional overrides from a config file or QUERYMEM_ environment
// variables, in the same spf13/viper layering the teacher's larger CLI
// tools (cmd/evm) use for node configuration.
type Config struct {
	CapacityBytes    uint64
	Queries          int
	TasksPerQuery    int
	ArrivalsPerSec   float64
	Duration         string
	LogLevel         string
	LogFile          string
	Vmodule          string
	MetricsAddr      string
	FilterExpr       string
	DumpRecentEvents int
}

// loadConfig resolves every setting through three layers, highest
// precedence first: an explicit CLI flag, a QUERYMEM_* environment
// variable or --config file read by viper, then the hardcoded fallback.
func loadConfig(c *cli.Context) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUERYMEM")
	v.AutomaticEnv()
	if cfgFile := c.String("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	get := func(name string, fallback string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		if v.IsSet(name) {
			return v.GetString(name)
		}
		return fallback
	}

	capacityBytes, err := cast.ToUint64E(get("capacity", "1073741824"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid --capacity: %w", err)
	}
	queries, err := cast.ToIntE(get("queries", "4"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid --queries: %w", err)
	}
	tasksPerQuery, err := cast.ToIntE(get("tasks-per-query", "4"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid --tasks-per-query: %w", err)
	}
	arrivalsPerSec, err := cast.ToFloat64E(get("arrivals-per-sec", "50"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid --arrivals-per-sec: %w", err)
	}
	dumpRecent, err := cast.ToIntE(get("dump-recent-events", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid --dump-recent-events: %w", err)
	}

	return Config{
		CapacityBytes:    capacityBytes,
		Queries:          queries,
		TasksPerQuery:    tasksPerQuery,
		ArrivalsPerSec:   arrivalsPerSec,
		Duration:         get("duration", "10s"),
		LogLevel:         get("log-level", "info"),
		LogFile:          get("log-file", ""),
		Vmodule:          get("vmodule", ""),
		MetricsAddr:      get("metrics-addr", ":9464"),
		FilterExpr:       get("filter", ""),
		DumpRecentEvents: dumpRecent,
	}, nil
}
