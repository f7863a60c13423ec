// Package config loads process configuration from .env, an optional yaml file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ROOMSYNC_PORT.
const EnvPrefix = "ROOMSYNC"

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	DatabaseDSN   string `mapstructure:"database_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	DebounceWindow    time.Duration `mapstructure:"debounce_window"`
	MaxDebounceDelay  time.Duration `mapstructure:"max_debounce_delay"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	RoomRetention     time.Duration `mapstructure:"room_retention"`
	VideoRoomCapacity int           `mapstructure:"video_room_capacity"`
	TextRoomCapacity  int           `mapstructure:"text_room_capacity"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

// Load reads .env (if present), config/config.<CONFIG_ENV>.yaml (if present)
// and ROOMSYNC_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to load .env file")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults and environment")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("database_dsn", "host=localhost user=user password=password dbname=roomsync port=5432 sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("debounce_window", DefaultDebounceWindow)
	v.SetDefault("max_debounce_delay", DefaultMaxDebounceDelay)
	v.SetDefault("sweep_interval", DefaultSweepInterval)
	v.SetDefault("room_retention", DefaultRoomRetention)
	v.SetDefault("video_room_capacity", DefaultVideoRoomCapacity)
	v.SetDefault("text_room_capacity", DefaultTextRoomCapacity)
	v.SetDefault("store_timeout", DefaultStoreTimeout)

	v.SetDefault("read_limit", DefaultReadLimit)
	v.SetDefault("ping_period", DefaultPingPeriod)
	v.SetDefault("send_buffer", DefaultSendBuffer)
}

// Validate rejects settings the hub cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DebounceWindow <= 0:
		return fmt.Errorf("debounce_window must be positive, got %s", c.DebounceWindow)
	case c.MaxDebounceDelay < c.DebounceWindow:
		return fmt.Errorf("max_debounce_delay (%s) must not be shorter than debounce_window (%s)", c.MaxDebounceDelay, c.DebounceWindow)
	case c.SweepInterval <= 0:
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	case c.RoomRetention <= 0:
		return fmt.Errorf("room_retention must be positive, got %s", c.RoomRetention)
	case c.VideoRoomCapacity < 0 || c.TextRoomCapacity < 0:
		return errors.New("room capacities must not be negative")
	case c.SendBuffer <= 0:
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}
