package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for values the binaries cannot run with.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Store.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite3 or postgres", cfg.Store.Driver))
	}
	if cfg.Store.DSN == "" {
		errs = append(errs, "store.dsn is required")
	}
	if cfg.Server.WriteQueueDepth < 1 {
		errs = append(errs, "server.write_queue_depth must be positive")
	}
	if cfg.Server.ReconnectBackoffMs < 0 {
		errs = append(errs, "server.reconnect_backoff_ms must not be negative")
	}

	if cfg.Emitter.UpdateIntervalMs < 1 {
		errs = append(errs, "emitter.update_interval_ms must be positive")
	}
	if cfg.Emitter.ConcurrentTrips < 1 {
		errs = append(errs, "emitter.concurrent_trips must be positive")
	}
	if cfg.Emitter.EndProbability < 0 || cfg.Emitter.EndProbability > 1 {
		errs = append(errs, "emitter.end_probability must be within [0, 1]")
	}
	if cfg.Emitter.MinFare < 0 || cfg.Emitter.MaxFare < cfg.Emitter.MinFare {
		errs = append(errs, "emitter fares must satisfy 0 <= min_fare <= max_fare")
	}
	if cfg.Emitter.Spawn.NE.Lat <= cfg.Emitter.Spawn.SW.Lat {
		errs = append(errs, "emitter.spawn.ne.lat must exceed emitter.spawn.sw.lat")
	}
	if cfg.Emitter.Spawn.NE.Lng <= cfg.Emitter.Spawn.SW.Lng {
		errs = append(errs, "emitter.spawn.ne.lng must exceed emitter.spawn.sw.lng")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
