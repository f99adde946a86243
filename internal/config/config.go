// Package config loads seedctl configuration from environment variables and
// an optional config file using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Target selects where seed data goes (or comes from).
type Target string

const (
	TargetCosmos     Target = "cosmos"
	TargetServiceBus Target = "servicebus"
	TargetRedis      Target = "redis"
)

// Source selects the seeding direction.
type Source string

const (
	// SourceFiles seeds from files into the target (default).
	SourceFiles Source = "files"

	// SourceCosmos exports from the database back into files.
	SourceCosmos Source = "cosmos"
)

type (
	Config struct {
		Run
		Cosmos
		Broker
		Redis
		Export
		Log
	}

	Run struct {
		Target Target
		Source Source
		Path   string // seed file directory (input or output)

		Database  string // optional database filter
		Container string // optional container filter
		Drop      bool   // drop and recreate containers before seeding

		UseManagedIdentity bool // accepted but not implemented
	}

	Cosmos struct {
		ConnectionString string
	}

	Broker struct {
		ConnectionString string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Export struct {
		PageSize    int
		MaxPageSize int
		MaxRU       float64
		ForceUpdate bool
	}

	Log struct {
		Level  string
		Pretty bool
	}
)

const (
	// DefaultPageSize is the initial export page size.
	DefaultPageSize = 100

	// MaxPageSizeCap is the hard page size ceiling.
	MaxPageSizeCap = 1000

	// DefaultMaxRU is the default per-page RU budget.
	DefaultMaxRU = 400
)

// New loads the configuration. Environment variables use the SEEDCTL_
// prefix with underscores (e.g. SEEDCTL_COSMOS_CONNECTIONSTRING); a
// seedctl.yaml in the working directory is read when present.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("seedctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("seedctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	cfg.Run.Target = Target(v.GetString("run.target"))
	cfg.Run.Source = Source(v.GetString("run.source"))
	cfg.Run.Path = v.GetString("run.path")
	cfg.Run.Database = v.GetString("run.database")
	cfg.Run.Container = v.GetString("run.container")
	cfg.Run.Drop = v.GetBool("run.drop")
	cfg.Run.UseManagedIdentity = v.GetBool("run.managedidentity")
	cfg.Cosmos.ConnectionString = v.GetString("cosmos.connectionstring")
	cfg.Broker.ConnectionString = v.GetString("broker.connectionstring")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Export.PageSize = v.GetInt("export.pagesize")
	cfg.Export.MaxPageSize = v.GetInt("export.maxpagesize")
	cfg.Export.MaxRU = v.GetFloat64("export.maxru")
	cfg.Export.ForceUpdate = v.GetBool("export.forceupdate")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Pretty = v.GetBool("log.pretty")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.target", string(TargetCosmos))
	v.SetDefault("run.source", string(SourceFiles))
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("export.pagesize", DefaultPageSize)
	v.SetDefault("export.maxpagesize", MaxPageSizeCap)
	v.SetDefault("export.maxru", DefaultMaxRU)
	v.SetDefault("log.level", "info")
}

// Validate checks cross-field constraints and clamps the page sizes.
func (c *Config) Validate() error {
	switch c.Run.Target {
	case TargetCosmos, TargetServiceBus, TargetRedis:
	default:
		return fmt.Errorf("unknown target %q (want cosmos, servicebus or redis)", c.Run.Target)
	}

	switch c.Run.Source {
	case SourceFiles, SourceCosmos:
	default:
		return fmt.Errorf("unknown source %q (want files or cosmos)", c.Run.Source)
	}

	if c.Run.Source == SourceCosmos && c.Run.Target != TargetCosmos {
		return fmt.Errorf("source cosmos requires target cosmos")
	}

	if c.Run.Path == "" {
		return fmt.Errorf("path is required")
	}

	if c.Export.MaxPageSize <= 0 || c.Export.MaxPageSize > MaxPageSizeCap {
		c.Export.MaxPageSize = MaxPageSizeCap
	}
	if c.Export.PageSize <= 0 {
		c.Export.PageSize = DefaultPageSize
	}
	if c.Export.PageSize > c.Export.MaxPageSize {
		c.Export.PageSize = c.Export.MaxPageSize
	}
	if c.Export.MaxRU <= 0 {
		c.Export.MaxRU = DefaultMaxRU
	}

	return nil
}
