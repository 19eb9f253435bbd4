// Package config wraps viper-based configuration for mxpack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// configFilePath stores the path to the loaded config file.
var configFilePath string

// Init initializes the configuration subsystem. It searches for a config
// file in priority order:
//  1. Directory named by the MXPACK_CONFIG_DIR environment variable
//  2. ~/.config/mxpack/
//  3. Current working directory
//
// A missing config file is fine (defaults plus MXPACK_* environment
// variables apply); an unreadable or invalid one is an error.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("MXPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if envPath := os.Getenv("MXPACK_CONFIG_DIR"); envPath != "" {
		viper.AddConfigPath(envPath)
	}
	if home := os.Getenv("HOME"); home != "" {
		viper.AddConfigPath(filepath.Join(home, ".config", "mxpack"))
	}
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			configFilePath = ""
			return nil
		}
		return fmt.Errorf("failed to read config; %w", err)
	}

	configFilePath = viper.ConfigFileUsed()
	return nil
}

// ConfigFilePath returns the path of the loaded config file, or empty when
// running on defaults only.
func ConfigFilePath() string {
	return configFilePath
}

// Reset clears configuration state, for tests.
func Reset() {
	viper.Reset()
	configFilePath = ""
}

// GetString returns the string value for the key.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns the integer value for the key.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetFloat returns the float value for the key.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetPath returns the string value for the key with a leading "~" expanded
// to the user's home directory.
func GetPath(key string) string {
	return ExpandPath(viper.GetString(key))
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// Set overrides a value, primarily for tests.
func Set(key string, value any) {
	viper.Set(key, value)
}

// AllSettings returns the effective configuration tree.
func AllSettings() map[string]any {
	return viper.AllSettings()
}
