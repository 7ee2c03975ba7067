package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConnection `mapstructure:"database"`
	Calendar  CalendarConfig     `mapstructure:"calendar"`
	Sync      SyncConfig         `mapstructure:"sync"`
	Scheduler SchedulerConfig    `mapstructure:"scheduler"`
	Server    ServerConfig       `mapstructure:"server"`
	Logging   LoggingConfig      `mapstructure:"logging"`
}

type DatabaseConnection struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type CalendarConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	RequestTimeout string  `mapstructure:"request_timeout"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

func (c CalendarConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

type SyncConfig struct {
	WindowYears       int `mapstructure:"window_years"`
	ChunkSize         int `mapstructure:"chunk_size"`
	ChunkDelaySeconds int `mapstructure:"chunk_delay_seconds"`
	RetryCap          int `mapstructure:"retry_cap"`
	SweepBatchSize    int `mapstructure:"sweep_batch_size"`
	SweepWorkers      int `mapstructure:"sweep_workers"`
	QueueWorkers      int `mapstructure:"queue_workers"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BDSYNC")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("calendar.request_timeout", "30s")
	v.SetDefault("calendar.rate_per_second", 5)
	v.SetDefault("calendar.rate_burst", 1)
	v.SetDefault("sync.window_years", 10)
	v.SetDefault("sync.chunk_size", 5)
	v.SetDefault("sync.chunk_delay_seconds", 10)
	v.SetDefault("sync.retry_cap", 3)
	v.SetDefault("sync.sweep_batch_size", 50)
	v.SetDefault("sync.sweep_workers", 5)
	v.SetDefault("sync.queue_workers", 4)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "@hourly")
}
