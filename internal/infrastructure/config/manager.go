// Package config loads and validates matching engine configuration
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. PINCEX_TAPE_PATH.
	EnvPrefix = "PINCEX"

	ClockModeLive   = "live"
	ClockModeReplay = "replay"
)

// ConfigManager owns the viper instance and the validator used to build a Config
type ConfigManager struct {
	viper     *viper.Viper
	validator *validator.Validate
	logger    *zap.Logger
}

// Config represents the complete engine configuration
type Config struct {
	Matching MatchingConfig `mapstructure:"matching" yaml:"matching" validate:"required"`
	Tape     TapeConfig     `mapstructure:"tape" yaml:"tape"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
}

// MatchingConfig describes the instrument and how the engine keeps time
type MatchingConfig struct {
	Instrument string `mapstructure:"instrument" yaml:"instrument" validate:"required"`
	TickSize   string `mapstructure:"tick_size" yaml:"tick_size" validate:"required,tick"`
	ClockMode  string `mapstructure:"clock_mode" yaml:"clock_mode" validate:"oneof=live replay"`
}

// TapeConfig controls where trade tape exports go
type TapeConfig struct {
	Path            string `mapstructure:"path" yaml:"path"`
	Append          bool   `mapstructure:"append" yaml:"append"`
	WipeAfterExport bool   `mapstructure:"wipe_after_export" yaml:"wipe_after_export"`
}

// JournalConfig enables the operation journal
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true"`
}

// KafkaConfig represents the trade publisher settings
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers" validate:"required_if=Enabled true,dive,hostname_port"`
	Topic        string        `mapstructure:"topic" yaml:"topic" validate:"required_if=Enabled true"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout" validate:"min=0"`
	RequiredAcks int           `mapstructure:"required_acks" yaml:"required_acks" validate:"oneof=-1 0 1"`
	Async        bool          `mapstructure:"async" yaml:"async"`
	Compression  string        `mapstructure:"compression" yaml:"compression" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// MetricsConfig holds the prometheus listener; an empty Addr disables it
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig toggles the stdout span exporter
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// Replay reports whether the engine runs on externally supplied timestamps.
func (c *MatchingConfig) Replay() bool {
	return c.ClockMode == ClockModeReplay
}
