package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/viper"

	"github.com/guileen/dbtrack/pebbletrack"
)

// EnvPrefix prefixes every environment variable Load reads, so server.addr
// is read from DBTRACK_SERVER_ADDR.
const EnvPrefix = "DBTRACK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:6060")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.add_source", false)

	v.SetDefault("postgres.driver_name", "pgx-tracked")
	v.SetDefault("postgres.dsn", "")

	pebble := pebbletrack.DefaultConfig("data/pebble")
	v.SetDefault("pebble.enabled", false)
	v.SetDefault("pebble.path", pebble.Path)
	v.SetDefault("pebble.in_memory", pebble.InMemory)
	v.SetDefault("pebble.cache_size", pebble.CacheSize)
	v.SetDefault("pebble.mem_table_size", pebble.MemTableSize)
	v.SetDefault("pebble.max_open_files", pebble.MaxOpenFiles)
	v.SetDefault("pebble.compaction_concurrency", pebble.CompactionConcurrency)
	v.SetDefault("pebble.block_size", pebble.BlockSize)
	v.SetDefault("pebble.l0_compaction_threshold", pebble.L0CompactionThreshold)
	v.SetDefault("pebble.l0_stop_writes_threshold", pebble.L0StopWritesThreshold)
	v.SetDefault("pebble.compression_enabled", pebble.CompressionEnabled)

	v.SetDefault("leak.threshold", 5*time.Minute)
	v.SetDefault("leak.interval", 30*time.Second)
}

// Load reads the configuration. configFile may be empty; when set it must
// exist and may be in any format viper understands.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %q", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("pgdsn", validatePgDSN); err != nil {
		return errors.Wrap(err, "register pgdsn validation")
	}
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// validatePgDSN accepts anything pgx can parse: URLs and keyword/value
// strings alike.
func validatePgDSN(fl validator.FieldLevel) bool {
	_, err := pgx.ParseConfig(fl.Field().String())
	return err == nil
}
