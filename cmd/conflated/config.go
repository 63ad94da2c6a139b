package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/younglifestyle/conflate4go/store"
)

// Config is the daemon configuration. Values come from the optional YAML
// file named by --config and are overridden by flags.
type Config struct {
	JID            string `yaml:"jid"`
	Password       string `yaml:"password"`
	Host           string `yaml:"host"`
	AlarmRecipient string `yaml:"alarm_recipient"`

	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Traffic TrafficConfig `yaml:"traffic"`

	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Keepalive      time.Duration `yaml:"keepalive"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LogConfig struct {
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// TrafficConfig enables the stanza traffic log.
type TrafficConfig struct {
	File string `yaml:"file"`
	XML  bool   `yaml:"xml"`
	// Keepalive also logs the whitespace keepalives.
	Keepalive bool `yaml:"keepalive"`
}

func defaultConfig() Config {
	return Config{
		Store:          StoreConfig{Driver: "bolt", Path: "conflate.db"},
		Log:            LogConfig{Level: "info"},
		ReconnectDelay: 5 * time.Second,
		Keepalive:      60 * time.Second,
	}
}

func newFlagSet(cfg *Config, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("conflated", pflag.ContinueOnError)
	fs.StringVarP(configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&cfg.JID, "jid", cfg.JID, "agent address (local@domain/resource)")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "agent password")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "server host[:port], defaults to the jid domain")
	fs.StringVar(&cfg.AlarmRecipient, "alarm-recipient", cfg.AlarmRecipient, "address receiving alarms (default alarms@<domain>)")
	fs.StringVar(&cfg.Store.Driver, "store-driver", cfg.Store.Driver, "storage backend: bolt, sqlite or memory")
	fs.StringVar(&cfg.Store.Path, "store-path", cfg.Store.Path, "storage file")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "log file, rotated (default stderr)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.BoolVar(&cfg.Log.Console, "log-console", cfg.Log.Console, "human-readable log lines instead of JSON")
	fs.StringVar(&cfg.Traffic.File, "traffic-log", cfg.Traffic.File, "write inbound and outbound stanzas to this file")
	fs.BoolVar(&cfg.Traffic.XML, "traffic-xml", cfg.Traffic.XML, "include full stanza XML in the traffic log")
	fs.BoolVar(&cfg.Traffic.Keepalive, "traffic-keepalive", cfg.Traffic.Keepalive, "include keepalives in the traffic log")
	fs.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "wait between connection attempts")
	fs.DurationVar(&cfg.Keepalive, "keepalive", cfg.Keepalive, "keepalive interval")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics on this address")
	fs.SetOutput(os.Stderr)
	return fs
}

// parseConfig reads the file named by --config, then applies the flags on
// top of it.
func parseConfig(args []string) (Config, error) {
	cfg := defaultConfig()
	var configPath string
	fs := newFlagSet(&cfg, &configPath)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		cfg = defaultConfig()
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
		fs = newFlagSet(&cfg, &configPath)
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cfg, cfg.validate()
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	var err error
	if c.JID == "" {
		err = multierr.Append(err, errors.New("jid is required"))
	}
	if !slices.Contains(store.Drivers(), c.Store.Driver) {
		err = multierr.Append(err, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Path == "" {
		err = multierr.Append(err, errors.New("store path is required"))
	}
	if c.ReconnectDelay < 0 {
		err = multierr.Append(err, errors.New("reconnect delay must not be negative"))
	}
	return err
}
