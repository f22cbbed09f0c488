package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/breeze-rmm/memview/internal/procsnap"
	"github.com/breeze-rmm/memview/internal/terminate"
)

// EnvPrefix prefixes every environment override, e.g. MEMVIEW_SNAPSHOT_WORKERS.
const EnvPrefix = "MEMVIEW"

type SnapshotConfig struct {
	Deadline    time.Duration `mapstructure:"deadline"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	Workers     int           `mapstructure:"workers"`
	Sort        string        `mapstructure:"sort"`
	Descending  bool          `mapstructure:"descending"`
}

type KillConfig struct {
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type Config struct {
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Kill     KillConfig     `mapstructure:"kill"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Audit    AuditConfig    `mapstructure:"audit"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

func Default() *Config {
	return &Config{
		Snapshot: SnapshotConfig{
			Deadline:    procsnap.DefaultDeadline,
			TaskTimeout: procsnap.DefaultTaskTimeout,
			Workers:     procsnap.DefaultWorkers,
			Sort:        string(procsnap.ColumnMemory),
			Descending:  true,
		},
		Kill: KillConfig{
			GracePeriod:    terminate.DefaultGracePeriod,
			ConfirmTimeout: terminate.DefaultConfirmTimeout,
			PollInterval:   terminate.DefaultPollInterval,
		},
		Refresh: RefreshConfig{
			Interval: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		LogLevel:      "warn",
		LogFormat:     "text",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
	}
}

// Load reads configuration from, in increasing priority: built-in defaults,
// the YAML file, and MEMVIEW_* environment variables. envFile (or ./.env when
// envFile is empty and the file exists) is loaded into the environment first;
// variables already set in the environment win over the file.
func Load(cfgFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("memview")
		v.SetConfigType("yaml")
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug("no config file found, using defaults and environment")
	} else {
		log.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Audit.File == "" {
		cfg.Audit.File = filepath.Join(DataDir(), "audit.jsonl")
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("snapshot.deadline", d.Snapshot.Deadline)
	v.SetDefault("snapshot.task_timeout", d.Snapshot.TaskTimeout)
	v.SetDefault("snapshot.workers", d.Snapshot.Workers)
	v.SetDefault("snapshot.sort", d.Snapshot.Sort)
	v.SetDefault("snapshot.descending", d.Snapshot.Descending)
	v.SetDefault("kill.grace_period", d.Kill.GracePeriod)
	v.SetDefault("kill.confirm_timeout", d.Kill.ConfirmTimeout)
	v.SetDefault("kill.poll_interval", d.Kill.PollInterval)
	v.SetDefault("refresh.interval", d.Refresh.Interval)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.file", d.Audit.File)
	v.SetDefault("audit.max_size_mb", d.Audit.MaxSizeMB)
	v.SetDefault("audit.max_backups", d.Audit.MaxBackups)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_max_size_mb", d.LogMaxSizeMB)
	v.SetDefault("log_max_backups", d.LogMaxBackups)
	v.SetDefault("metrics_addr", d.MetricsAddr)
}

// SortKey returns the configured initial sort order.
func (c *Config) SortKey() (procsnap.SortKey, error) {
	return procsnap.ParseSortKey(c.Snapshot.Sort, c.Snapshot.Descending)
}

// SnapshotOptions converts the snapshot section into engine options.
func (c *Config) SnapshotOptions() (procsnap.Options, error) {
	key, err := c.SortKey()
	if err != nil {
		return procsnap.Options{}, err
	}
	return procsnap.Options{
		Deadline:    c.Snapshot.Deadline,
		TaskTimeout: c.Snapshot.TaskTimeout,
		Workers:     c.Snapshot.Workers,
		Sort:        key,
	}, nil
}

// ControllerOptions converts the kill section into controller options.
func (c *Config) ControllerOptions() []terminate.Option {
	return []terminate.Option{
		terminate.WithPollInterval(c.Kill.PollInterval),
		terminate.WithConfirmTimeout(c.Kill.ConfirmTimeout),
	}
}

// DataDir is where memview keeps its audit log when no path is configured.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "memview")
	}
	return ".memview"
}
