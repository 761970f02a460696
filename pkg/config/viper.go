// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file and environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.nextfest")

	// Input selection.
	viper.SetDefault("appids_file", "steam_appids.txt")
	viper.SetDefault("appids", []int{})

	// The storefront API allows roughly 200 requests per 5 minutes; 195
	// leaves a little headroom under the limit.
	viper.SetDefault("api.base_url", "https://store.steampowered.com")
	viper.SetDefault("api.rate_max_calls", 195)
	viper.SetDefault("api.rate_period_seconds", 300)
	viper.SetDefault("api.timeout_seconds", 15)
	viper.SetDefault("api.max_retries", 5)
	viper.SetDefault("api.backoff_initial_ms", 500)
	viper.SetDefault("api.backoff_max_ms", 16000)

	viper.SetDefault("pipeline.concurrency", 10)
	viper.SetDefault("pipeline.chunk_size", 100)
	viper.SetDefault("pipeline.max_jitter_ms", 2000)

	viper.SetDefault("output.dir", ".")
	viper.SetDefault("output.prefix", "rando_bin")

	const defaultUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/122.0.0.0 Safari/537.36"
	viper.SetDefault("browser.enabled", true)
	viper.SetDefault("browser.max_parallel", 4)
	viper.SetDefault("browser.nav_timeout_seconds", 30)
	viper.SetDefault("browser.manifest_wait_seconds", 15)
	viper.SetDefault("browser.host_qps", 0.5)
	viper.SetDefault("browser.user_agent", defaultUA)

	viper.SetDefault("logging.development", true)

	viper.SetEnvPrefix("NEXTFEST") // e.g., NEXTFEST_API_RATE_MAX_CALLS=100
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Not fatal; defaults and environment variables still apply.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
