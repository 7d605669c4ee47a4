// Package config loads the application configuration.
//
// A Config has four sections: log, http (the gateway), backend (which data
// service to read from and how to reach it) and datalayer (cache, slots,
// query execution, health probing).
//
// # Loading
//
// Loader starts from Default, merges each file layer in order, loads any
// .env files, applies environment overrides, fills remaining defaults and
// validates:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.json") // Overrides base
//	loader.AddDotEnv(".env")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Layers may be JSON (.json) or YAML (.yaml, .yml). Only keys present in a
// layer override what came before, so a layer can be as small as
//
//	datalayer:
//	  slots:
//	    capacity: 10
//
// Duration values are strings such as "10s", "5m" or "14d", or integer
// nanoseconds. Any string under a key ending in timeout, interval, ttl,
// delay or wait is parsed as a duration.
//
// # Environment
//
// Variables named TOOZALINK_<NAME> override file values, for example
// TOOZALINK_BACKEND_TYPE, TOOZALINK_POSTGRES_DSN, TOOZALINK_NATS_URL,
// TOOZALINK_CACHE_TTL and TOOZALINK_SLOTS_CAPACITY. A value that does not
// parse fails the load. .env files never replace variables already set in
// the process.
//
// # Files
//
// Config files are checked before reading: the path must not escape the
// working directory through "..", the file must be regular and under 10MB,
// and JSON nesting is capped. SaveToFile writes with 0600 permissions.
// String redacts the Postgres password and NATS credentials.
package config
