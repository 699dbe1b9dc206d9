package info

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenPort     = "5000"
	DefaultListenAddress  = "0.0.0.0"
	DefaultLogLevel       = "info"
	DefaultResolveTimeout = 2 * time.Second
	DefaultNodeCountTTL   = 30 * time.Second

	// ConfigFileEnv names the YAML file to load when --config is not given.
	ConfigFileEnv = "SCALEDEMO_CONFIG"
)

var (
	// Config errors
	ErrInvalidPort       = func(port string) error { return fmt.Errorf("invalid listen port %q", port) }
	ErrInvalidLogLevel   = func(level string) error { return fmt.Errorf("invalid log level %q", level) }
	ErrInvalidDuration   = func(name string, d time.Duration) error { return fmt.Errorf("%s must be positive, got %s", name, d) }
	ErrFailedReadConfig  = func(err error) error { return fmt.Errorf("failed to read config file: %s", err) }
	ErrFailedParseConfig = func(err error) error { return fmt.Errorf("failed to parse config: %s", err) }
)

type Config struct {
	// Frontend address (without port)
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS,overwrite"`
	// Network port that the server listens on
	ListenPort string `yaml:"listenPort" env:"PORT,overwrite"`
	// One of debug, info, warn, error
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL,overwrite"`
	// Upper bound for the hostname lookup used when POD_IP is unset
	ResolveTimeout time.Duration `yaml:"resolveTimeout" env:"RESOLVE_TIMEOUT,overwrite"`
	// Serve /metrics
	Metrics bool `yaml:"metrics" env:"METRICS_ENABLED,overwrite"`
	// Ask the Kubernetes API for the cluster node count
	NodeCount bool `yaml:"nodeCount" env:"NODE_COUNT_ENABLED,overwrite"`
	// How long a node count is reused before the API is asked again
	NodeCountTTL time.Duration `yaml:"nodeCountTTL" env:"NODE_COUNT_TTL,overwrite"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ListenAddress:  DefaultListenAddress,
		ListenPort:     DefaultListenPort,
		LogLevel:       DefaultLogLevel,
		ResolveTimeout: DefaultResolveTimeout,
		Metrics:        true,
		NodeCount:      false,
		NodeCountTTL:   DefaultNodeCountTTL,
	}
}

// Returns the full address with port.
// If no ListenPort or ListenAddress are provided in the configuration,
// it will use default values "0.0.0.0:5000"
func (c *Config) Address() string {
	addr := c.ListenAddress
	if c.ListenAddress == "" {
		addr = DefaultListenAddress
	}
	return addr + ":" + resolvePort(c.ListenPort)
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	name := c.LogLevel
	if name == "" {
		name = DefaultLogLevel
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, ErrInvalidLogLevel(name)
	}
	return level, nil
}

// Validates the configuration
func (c *Config) Validate() error {
	port, err := strconv.Atoi(resolvePort(c.ListenPort))
	if err != nil || port < 1 || port > 65535 {
		return ErrInvalidPort(c.ListenPort)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ResolveTimeout <= 0 {
		return ErrInvalidDuration("resolveTimeout", c.ResolveTimeout)
	}
	if c.NodeCountTTL <= 0 {
		return ErrInvalidDuration("nodeCountTTL", c.NodeCountTTL)
	}
	return nil
}

// LoadConfig layers defaults, an optional YAML file, the environment and
// finally command line flags, later layers winning.
func LoadConfig(ctx context.Context, args []string, lookuper envconfig.Lookuper) (Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet("scaledemo", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (env "+ConfigFileEnv+")")
	fs.String("listen-address", cfg.ListenAddress, "address to listen on")
	fs.String("port", cfg.ListenPort, "port to listen on")
	fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.Duration("resolve-timeout", cfg.ResolveTimeout, "timeout for the pod IP hostname lookup")
	fs.Bool("metrics", cfg.Metrics, "serve Prometheus metrics on /metrics")
	fs.Bool("node-count", cfg.NodeCount, "show the cluster node count (needs in-cluster API access)")
	fs.Duration("node-count-ttl", cfg.NodeCountTTL, "how long a node count is cached")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	path := *configPath
	if path == "" {
		path, _ = lookuper.Lookup(ConfigFileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, ErrFailedReadConfig(err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, ErrFailedParseConfig(err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return cfg, ErrFailedParseConfig(err)
	}

	var flagErr error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "listen-address":
			cfg.ListenAddress, err = fs.GetString(f.Name)
		case "port":
			cfg.ListenPort, err = fs.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, err = fs.GetString(f.Name)
		case "resolve-timeout":
			cfg.ResolveTimeout, err = fs.GetDuration(f.Name)
		case "metrics":
			cfg.Metrics, err = fs.GetBool(f.Name)
		case "node-count":
			cfg.NodeCount, err = fs.GetBool(f.Name)
		case "node-count-ttl":
			cfg.NodeCountTTL, err = fs.GetDuration(f.Name)
		}
		flagErr = errors.Join(flagErr, err)
	})
	if flagErr != nil {
		return cfg, ErrFailedParseConfig(flagErr)
	}

	return cfg, cfg.Validate()
}

func resolvePort(listenPort string) string {
	if listenPort == "" {
		listenPort = DefaultListenPort
	}
	return listenPort
}
