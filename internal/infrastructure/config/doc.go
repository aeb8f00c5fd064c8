// Package config loads and validates opcburst configuration.
//
// Configuration is layered: hardcoded defaults, then an optional YAML
// file, then OPCBURST_* environment variables, then command-line flags
// (applied by the caller). The config file is only needed when enabling
// the optional result sinks (history, InfluxDB, MQTT); the core polling
// loop is fully configurable from flags.
package config
