package config

import "github.com/spf13/viper"

// GetDefaultConfig returns the configuration used when no file or
// environment override is present.
func GetDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic("config: invalid defaults: " + err.Error())
	}
	return &config
}
