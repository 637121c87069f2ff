package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	APIURL             string  `mapstructure:"API_URL"`
	AppKey             string  `mapstructure:"APP_KEY"`
	HTTPTimeoutSeconds int     `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	StorePath          string  `mapstructure:"STORE_PATH"`
	Lang               string  `mapstructure:"LANG_PREF"`
	FixLat             float64 `mapstructure:"FIX_LAT"`
	FixLon             float64 `mapstructure:"FIX_LON"`
	FixAccuracyM       float64 `mapstructure:"FIX_ACCURACY_M"`
	FixConfigured      bool    `mapstructure:"FIX_CONFIGURED"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	IsLocalDev         bool    `mapstructure:"IS_LOCAL_DEV"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("API_URL", "http://localhost:8090/")
	viper.SetDefault("APP_KEY", "ZAK_ATT_2026_demo")
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("STORE_PATH", "attendance.db")
	viper.SetDefault("LANG_PREF", "en")
	viper.SetDefault("FIX_LAT", 0.0)
	viper.SetDefault("FIX_LON", 0.0)
	viper.SetDefault("FIX_ACCURACY_M", -1.0)
	viper.SetDefault("FIX_CONFIGURED", false)
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4317")
	viper.SetDefault("IS_LOCAL_DEV", true)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
