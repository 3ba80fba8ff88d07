package main

import (
	"flag"
	"os"
	"strconv"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr          string
	ConfigFile    string
	SnapshotDir   string
	LogLevel      string
	AdvanceLimit  int
	StartInterval int
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

func atoiOr(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

// loadServerConfig resolves every option from args, then the environment,
// then its default.
func loadServerConfig(args []string) (ServerConfig, error) {
	cfg := ServerConfig{}

	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "SURFKMC_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "config-file",
			envVarName:  "SURFKMC_CONFIG_FILE",
			defaultVal:  "",
			description: "optional simulation config (JSON or YAML) to create at startup",
			setter:      func(c *ServerConfig, v string) { c.ConfigFile = v },
		},
		{
			flagName:    "snapshot-dir",
			envVarName:  "SURFKMC_SNAPSHOT_DIR",
			defaultVal:  "./data",
			description: "directory where surface snapshots are stored",
			setter:      func(c *ServerConfig, v string) { c.SnapshotDir = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "SURFKMC_LOG_LEVEL",
			defaultVal:  "info",
			description: "log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
		{
			flagName:    "advance-limit",
			envVarName:  "SURFKMC_ADVANCE_LIMIT",
			defaultVal:  "1000",
			description: "maximum output points a single advance request may run",
			setter:      func(c *ServerConfig, v string) { c.AdvanceLimit = atoiOr(v, 1000) },
		},
		{
			flagName:    "start-interval",
			envVarName:  "SURFKMC_START_INTERVAL",
			defaultVal:  "1000",
			description: "default milliseconds between output points of a started simulation",
			setter:      func(c *ServerConfig, v string) { c.StartInterval = atoiOr(v, 1000) },
		},
	}

	fs := flag.NewFlagSet("surfkmc-server", flag.ContinueOnError)
	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg, nil
}
