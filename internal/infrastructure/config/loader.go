// Config loader with defaults, environment overrides and validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewConfigManager creates a manager with the custom validations registered
func NewConfigManager(logger *zap.Logger) *ConfigManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	// RegisterValidation only fails on an empty tag or a nil func.
	_ = v.RegisterValidation("tick", validateTick)
	v.RegisterStructValidation(validateKafka, KafkaConfig{})
	return &ConfigManager{
		viper:     viper.New(),
		validator: v,
		logger:    logger,
	}
}

// Load is a convenience wrapper around NewConfigManager(logger).LoadConfig(paths...)
func Load(logger *zap.Logger, configPaths ...string) (*Config, error) {
	return NewConfigManager(logger).LoadConfig(configPaths...)
}

// LoadConfig loads configuration from files and PINCEX_ environment variables.
// Missing files are skipped, so defaults plus environment are a valid setup.
func (cm *ConfigManager) LoadConfig(configPaths ...string) (*Config, error) {
	cm.setupViper()
	cm.setDefaults()

	if err := cm.loadConfigFiles(configPaths...); err != nil {
		return nil, fmt.Errorf("failed to load config files: %w", err)
	}

	var cfg Config
	if err := cm.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Matching.ClockMode = strings.ToLower(cfg.Matching.ClockMode)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cm.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.logger.Info("Configuration loaded",
		zap.String("instrument", cfg.Matching.Instrument),
		zap.String("tick_size", cfg.Matching.TickSize),
		zap.String("clock_mode", cfg.Matching.ClockMode))
	return &cfg, nil
}

// setupViper configures viper settings
func (cm *ConfigManager) setupViper() {
	cm.viper.SetConfigType("yaml")
	cm.viper.AutomaticEnv()
	cm.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.viper.SetEnvPrefix(EnvPrefix)
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal
func (cm *ConfigManager) setDefaults() {
	cm.viper.SetDefault("matching.instrument", "DEFAULT")
	cm.viper.SetDefault("matching.tick_size", model.DefaultTickSize.String())
	cm.viper.SetDefault("matching.clock_mode", ClockModeLive)

	cm.viper.SetDefault("tape.path", "trades.csv")
	cm.viper.SetDefault("tape.append", false)
	cm.viper.SetDefault("tape.wipe_after_export", true)

	cm.viper.SetDefault("journal.enabled", false)
	cm.viper.SetDefault("journal.path", "")

	cm.viper.SetDefault("kafka.enabled", false)
	cm.viper.SetDefault("kafka.brokers", []string{})
	cm.viper.SetDefault("kafka.topic", "pincex.trades")
	cm.viper.SetDefault("kafka.batch_timeout", 10*time.Millisecond)
	cm.viper.SetDefault("kafka.required_acks", 1)
	cm.viper.SetDefault("kafka.async", false)
	cm.viper.SetDefault("kafka.compression", "none")

	cm.viper.SetDefault("log.level", "info")
	cm.viper.SetDefault("metrics.addr", "")
	cm.viper.SetDefault("tracing.enabled", false)
	cm.viper.SetDefault("tracing.service_name", "pincex-matching")
}

// loadConfigFiles merges every YAML file that exists, later files winning
func (cm *ConfigManager) loadConfigFiles(configPaths ...string) error {
	if len(configPaths) == 0 {
		configPaths = []string{
			"./config.yaml",
			"./configs/config.yaml",
		}
	}

	var loadedFiles []string
	for _, path := range configPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cm.logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}

		cm.viper.SetConfigFile(path)
		if err := cm.viper.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loadedFiles = append(loadedFiles, path)
	}

	if len(loadedFiles) == 0 {
		cm.logger.Warn("No configuration files found, using defaults and environment variables")
	} else {
		cm.logger.Info("Loaded configuration files", zap.Strings("files", loadedFiles))
	}
	return nil
}

func validateTick(fl validator.FieldLevel) bool {
	_, err := model.ParseTickSize(fl.Field().String())
	return err == nil
}

// validateKafka rejects an enabled publisher without brokers. The brokers
// default is an empty non-nil slice, which required_if counts as set.
func validateKafka(sl validator.StructLevel) {
	kc := sl.Current().Interface().(KafkaConfig)
	if kc.Enabled && len(kc.Brokers) == 0 {
		sl.ReportError(kc.Brokers, "Brokers", "brokers", "required_if", "Enabled true")
	}
}

// TickSize parses the configured tick grid. LoadConfig has already validated it.
func (c *Config) TickSize() (model.TickSize, error) {
	return model.ParseTickSize(c.Matching.TickSize)
}
