package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/netlogger/internal/forward"
	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
)

const (
	defaultPort         = model.DefaultPort
	defaultBindHost     = ""
	defaultCloseGrace   = model.DefaultCloseGrace
	defaultWriteTimeout = tcpserver.DefaultWriteTimeout
	defaultLogBuffer    = model.DefaultLogBuffer
	defaultQueueSize    = sink.DefaultQueueSize
	defaultAPIHost      = "127.0.0.1"
	defaultAPIPort      = 3000
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Port              int           `mapstructure:"port" yaml:"port"`
	BindHost          string        `mapstructure:"bind-host" yaml:"bind-host"`
	CloseOnDisconnect bool          `mapstructure:"close-on-disconnect" yaml:"close-on-disconnect"`
	CloseGrace        time.Duration `mapstructure:"close-grace" yaml:"close-grace"`
	CloseOnBadFrame   bool          `mapstructure:"close-on-bad-frame" yaml:"close-on-bad-frame"`
	WriteTimeout      time.Duration `mapstructure:"write-timeout" yaml:"write-timeout"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	LogBuffer         int           `mapstructure:"log-buffer" yaml:"log-buffer"`
	QueueSize         int           `mapstructure:"queue-size" yaml:"queue-size"`
	APIEnabled        bool          `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIHost           string        `mapstructure:"api-host" yaml:"api-host"`
	APIPort           int           `mapstructure:"api-port" yaml:"api-port"`
	OTLPEndpoint      string        `mapstructure:"otlp-endpoint" yaml:"otlp-endpoint"`
	OTLPServiceName   string        `mapstructure:"otlp-service-name" yaml:"otlp-service-name"`
	OTLPBatchSize     int           `mapstructure:"otlp-batch-size" yaml:"otlp-batch-size"`
	OTLPFlushInterval time.Duration `mapstructure:"otlp-flush-interval" yaml:"otlp-flush-interval"`

	ListenAddr string `mapstructure:"-" yaml:"-"`
	APIAddr    string `mapstructure:"-" yaml:"-"`
	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}

// newFlagSet declares the command-line flags. Flag names match config keys
// so viper can bind them directly.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("netlogger", pflag.ContinueOnError)
	fs.String("config", "", "config file (default is $HOME/.config/netlogger/config.yml)")
	fs.Int("port", defaultPort, "TCP port to listen on for the logging application")
	fs.Bool("close-on-disconnect", false, "exit after the client disconnects")
	fs.Bool("headless", false, "print records to stdout instead of the terminal viewer")
	fs.Bool("api", false, "enable the HTTP control API")
	fs.Bool("print-config", false, "print the effective configuration and exit")
	fs.Bool("version", false, "print version information")
	return fs
}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("NETLOGGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("port", defaultPort)
	v.SetDefault("bind-host", defaultBindHost)
	v.SetDefault("close-on-disconnect", false)
	v.SetDefault("close-grace", defaultCloseGrace)
	v.SetDefault("close-on-bad-frame", false)
	v.SetDefault("write-timeout", defaultWriteTimeout)
	v.SetDefault("headless", false)
	v.SetDefault("log-buffer", defaultLogBuffer)
	v.SetDefault("queue-size", defaultQueueSize)
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-host", defaultAPIHost)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("otlp-endpoint", "")
	v.SetDefault("otlp-service-name", forward.DefaultServiceName)
	v.SetDefault("otlp-batch-size", forward.DefaultBatchSize)
	v.SetDefault("otlp-flush-interval", forward.DefaultFlushInterval)

	if flags != nil {
		for key, name := range map[string]string{
			"port":                "port",
			"close-on-disconnect": "close-on-disconnect",
			"headless":            "headless",
			"api-enabled":         "api",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, err
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "netlogger", "config.yml"))
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			cfg.ConfigPath = v.ConfigFileUsed()
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.APIPort < 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	// The server treats a zero grace as unset, so only positive values are
	// honoured as written.
	if cfg.CloseGrace <= 0 {
		return cfg, fmt.Errorf("invalid close-grace: %s", cfg.CloseGrace)
	}
	if cfg.LogBuffer <= 0 {
		return cfg, fmt.Errorf("invalid log-buffer: %d", cfg.LogBuffer)
	}

	cfg.ListenAddr = net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.Port))
	cfg.APIAddr = net.JoinHostPort(cfg.APIHost, strconv.Itoa(cfg.APIPort))
	return cfg, nil
}
