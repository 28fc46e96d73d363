package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/db"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/logging"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	DatabaseURL  string          `mapstructure:"database_url"`
	Port         string          `mapstructure:"service_port"`
	StoreBackend string          `mapstructure:"store_backend"`
	LogLevel     string          `mapstructure:"log_level"`
	LogFormat    string          `mapstructure:"log_format"`
	LogFile      string          `mapstructure:"log_file"`
	DBMaxConns   int32           `mapstructure:"db_max_conns"`
	DBMinConns   int32           `mapstructure:"db_min_conns"`
	SeedFile     string          `mapstructure:"seed_file"`
	Workflow     workflow.Policy `mapstructure:"workflow"`
}

func setDefaults(v *viper.Viper) {
	p := workflow.DefaultPolicy()
	v.SetDefault("database_url", "")
	v.SetDefault("service_port", "8085")
	v.SetDefault("store_backend", BackendPostgres)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_min_conns", 1)
	v.SetDefault("seed_file", "")
	v.SetDefault("workflow.enforce_stage_order", p.EnforceStageOrder)
	v.SetDefault("workflow.require_endorsements", p.RequireEndorsementsBeforeFinalApproval)
	v.SetDefault("workflow.biometrician_required", p.BiometricianRequired)
	v.SetDefault("workflow.authorize_stages", p.AuthorizeStages)
	v.SetDefault("workflow.directorate_area", p.DirectorateArea)
}

// Load reads configuration from defaults, an optional YAML file, the
// environment (DATABASE_URL, WORKFLOW_ENFORCE_STAGE_ORDER, ...) and flags,
// later sources winning. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("config: flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: SERVICE_PORT is empty")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("config: DB_MIN_CONNS %d exceeds DB_MAX_CONNS %d", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

func (c Config) DB() db.Options {
	opts := db.DefaultOptions(c.DatabaseURL)
	opts.MaxConns = c.DBMaxConns
	opts.MinConns = c.DBMinConns
	opts.MaxConnLifetime = 30 * time.Minute
	return opts
}

func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat, Path: c.LogFile}
}
