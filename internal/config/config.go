package config

import (
	"time"

	"github.com/spf13/viper"

	"gift-auction/utils"
)

// Config holds the runtime settings loaded from config.yaml, environment
// variables prefixed with AUCTION_, or the built-in defaults.
type Config struct {
	ServerPort        int
	LogLevel          string
	SchedulerInterval time.Duration

	AntiSnipingEnabled          bool
	AntiSnipingThresholdSeconds int
	AntiSnipingExtensionSeconds int
	AntiSnipingMaxExtensions    int
}

// Load reads the configuration, falling back to defaults when no config
// file is present.
func Load() Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("auction")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("scheduler.interval", "1s")
	viper.SetDefault("antisniping.enabled", true)
	viper.SetDefault("antisniping.threshold_seconds", 30)
	viper.SetDefault("antisniping.extension_seconds", 30)
	viper.SetDefault("antisniping.max_extensions", 3)

	if err := viper.ReadInConfig(); err != nil {
		utils.Info("no config file found, using defaults", nil)
	}

	return Config{
		ServerPort:                  viper.GetInt("server.port"),
		LogLevel:                    viper.GetString("log.level"),
		SchedulerInterval:           viper.GetDuration("scheduler.interval"),
		AntiSnipingEnabled:          viper.GetBool("antisniping.enabled"),
		AntiSnipingThresholdSeconds: viper.GetInt("antisniping.threshold_seconds"),
		AntiSnipingExtensionSeconds: viper.GetInt("antisniping.extension_seconds"),
		AntiSnipingMaxExtensions:    viper.GetInt("antisniping.max_extensions"),
	}
}
