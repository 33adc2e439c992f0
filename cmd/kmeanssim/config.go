package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/mgkmeans"
	"github.com/hupe1980/mgkmeans/codec"
)

// Config is the simulation configuration.
type Config struct {
	Workers  int     `mapstructure:"workers"`
	Rows     int     `mapstructure:"rows"`
	Cols     int     `mapstructure:"cols"`
	Clusters int     `mapstructure:"clusters"`
	Parts    int     `mapstructure:"parts"`
	Std      float64 `mapstructure:"std"`
	Seed     int64   `mapstructure:"seed"`

	Init          string        `mapstructure:"init"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Tolerance     float64       `mapstructure:"tolerance"`
	Delayed       bool          `mapstructure:"delayed"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Compression   string        `mapstructure:"compression"`

	// Store, if set, round-trips the generated dataset through a local
	// shard store in this directory before fitting.
	Store string `mapstructure:"store"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig returns the defaults of every flag.
func DefaultConfig() Config {
	p := mgkmeans.DefaultParams()
	return Config{
		Workers:       4,
		Rows:          1000,
		Cols:          10,
		Clusters:      5,
		Parts:         0,
		Std:           1,
		Seed:          p.RandomSeed,
		Init:          p.Init.String(),
		MaxIterations: p.MaxIterations,
		Tolerance:     p.Tolerance,
		Timeout:       30 * time.Second,
		Compression:   codec.CompressionNone.String(),
		LogLevel:      "warn",
		LogFormat:     "text",
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("workers", d.Workers)
	v.SetDefault("rows", d.Rows)
	v.SetDefault("cols", d.Cols)
	v.SetDefault("clusters", d.Clusters)
	v.SetDefault("parts", d.Parts)
	v.SetDefault("std", d.Std)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("init", d.Init)
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("tolerance", d.Tolerance)
	v.SetDefault("delayed", d.Delayed)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("store", d.Store)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// addFlags registers one flag per config key. Flag names use dashes, keys
// use underscores.
func addFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.Int("workers", d.Workers, "number of simulated workers")
	fs.Int("rows", d.Rows, "rows of the generated dataset")
	fs.Int("cols", d.Cols, "features per row")
	fs.Int("clusters", d.Clusters, "number of clusters to generate and fit")
	fs.Int("parts", d.Parts, "number of shards (0 = one per worker)")
	fs.Float64("std", d.Std, "standard deviation of each blob")
	fs.Int64("seed", d.Seed, "random seed for data and initialization")
	fs.String("init", d.Init, "initialization: scalable-k-means++ or random")
	fs.Int("max-iterations", d.MaxIterations, "maximum Lloyd iterations")
	fs.Float64("tolerance", d.Tolerance, "convergence tolerance on centroid shift")
	fs.Bool("delayed", d.Delayed, "defer inference jobs until results are requested")
	fs.Duration("timeout", d.Timeout, "fit barrier timeout")
	fs.String("compression", d.Compression, "collective frame compression: none, lz4 or zstd")
	fs.String("store", d.Store, "directory to round-trip the dataset through before fitting")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		errs = append(errs, v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f))
	})
	return errors.Join(errs...)
}

// loadConfig layers flags over environment over config file over defaults.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet, file string) (Config, error) {
	setDefaults(v)
	if err := bindFlags(v, fs); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix("MGKMEANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the simulation shape. Estimator parameters are checked by
// Params.Validate.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Rows < 1 {
		errs = append(errs, fmt.Errorf("rows must be >= 1, got %d", c.Rows))
	}
	if c.Cols < 1 {
		errs = append(errs, fmt.Errorf("cols must be >= 1, got %d", c.Cols))
	}
	if c.Parts < 0 {
		errs = append(errs, fmt.Errorf("parts must be >= 0, got %d", c.Parts))
	}
	if _, err := c.logLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Params converts the config to estimator parameters.
func (c Config) Params() (mgkmeans.Params, error) {
	p := mgkmeans.DefaultParams()
	init, err := mgkmeans.ParseInit(c.Init)
	if err != nil {
		return p, err
	}
	p.ClusterCount = c.Clusters
	p.MaxIterations = c.MaxIterations
	p.Tolerance = c.Tolerance
	p.Init = init
	p.RandomSeed = c.Seed
	p.Verbose = c.LogLevel == "debug"
	return p, p.Validate()
}

func (c Config) logLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

func (c Config) logger() *mgkmeans.Logger {
	level, _ := c.logLevel()
	if c.LogFormat == "json" {
		return mgkmeans.NewJSONLogger(level)
	}
	return mgkmeans.NewTextLogger(level)
}
