package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	ETL      ETLConfig      `yaml:"etl" mapstructure:"etl"`
	Stage    StageConfig    `yaml:"stage" mapstructure:"stage"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig holds the destination PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Name               string `yaml:"name" mapstructure:"name"`
	SSLMode            string `yaml:"sslmode" mapstructure:"sslmode"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
	ApplicationName    string `yaml:"application_name" mapstructure:"application_name"`
	PoolSize           int    `yaml:"pool_size" mapstructure:"pool_size"`
	MaxOverflow        int    `yaml:"max_overflow" mapstructure:"max_overflow"`
	RecycleSecs        int    `yaml:"recycle_secs" mapstructure:"recycle_secs"`
	ConnectAttempts    int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// ETLConfig configures the staging-to-destination run.
type ETLConfig struct {
	Schema          string `yaml:"schema" mapstructure:"schema"`
	SourceTable     string `yaml:"source_table" mapstructure:"source_table"`
	ChunkSize       int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	LookupBatchSize int    `yaml:"lookup_batch_size" mapstructure:"lookup_batch_size"`
	FallbackLimit   int    `yaml:"fallback_limit" mapstructure:"fallback_limit"`
}

// StageConfig configures loading a DBF snapshot into the staging table.
type StageConfig struct {
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConnString renders the settings as a libpq keyword/value connection string.
func (d DatabaseConfig) ConnString() string {
	parts := []string{
		kv("host", d.Host),
		kv("port", fmt.Sprint(d.Port)),
		kv("user", d.User),
		kv("password", d.Password),
		kv("dbname", d.Name),
		kv("sslmode", d.SSLMode),
	}
	if d.ConnectTimeoutSecs > 0 {
		parts = append(parts, kv("connect_timeout", fmt.Sprint(d.ConnectTimeoutSecs)))
	}
	if d.ApplicationName != "" {
		parts = append(parts, kv("application_name", d.ApplicationName))
	}
	return strings.Join(parts, " ")
}

func kv(key, value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return key + "=" + value
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return key + "='" + r.Replace(value) + "'"
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPRAISAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.name":     "DB_NAME",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	// Defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.connect_timeout_secs", 30)
	v.SetDefault("database.application_name", "ETL_Avaluos")
	v.SetDefault("database.pool_size", 5)
	v.SetDefault("database.max_overflow", 10)
	v.SetDefault("database.recycle_secs", 1800)
	v.SetDefault("database.connect_attempts", 1)
	v.SetDefault("etl.schema", "public")
	v.SetDefault("etl.source_table", "mi_tabla")
	v.SetDefault("etl.chunk_size", 2000)
	v.SetDefault("etl.lookup_batch_size", 100)
	v.SetDefault("etl.fallback_limit", 1000)
	v.SetDefault("stage.encoding", "latin1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it touches the database.
func (c *Config) Validate(command string) error {
	var problems []string

	switch command {
	case "run", "stage", "migrate", "runs":
		if c.Database.Host == "" {
			problems = append(problems, "database.host is required (DB_HOST)")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required (DB_USER)")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.name is required (DB_NAME)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, fmt.Sprintf("database.port %d is out of range", c.Database.Port))
		}
		if c.Database.PoolSize <= 0 {
			problems = append(problems, "database.pool_size must be positive")
		}
	}

	if command == "run" {
		if c.ETL.ChunkSize <= 0 {
			problems = append(problems, "etl.chunk_size must be positive")
		}
		if c.ETL.LookupBatchSize <= 0 {
			problems = append(problems, "etl.lookup_batch_size must be positive")
		}
		if c.ETL.FallbackLimit < 0 {
			problems = append(problems, "etl.fallback_limit must not be negative")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
