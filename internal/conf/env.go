// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		// Core
		{"debug", "BREEDSCAN_DEBUG", validateEnvBool},
		{"webserver.host", "BREEDSCAN_HOST", nil},
		{"webserver.port", "BREEDSCAN_PORT", validateEnvPort},

		// Datastore
		{"datastore.sqlite.enabled", "BREEDSCAN_SQLITE_ENABLED", validateEnvBool},
		{"datastore.sqlite.path", "BREEDSCAN_SQLITE_PATH", nil},
		{"datastore.mysql.enabled", "BREEDSCAN_MYSQL_ENABLED", validateEnvBool},
		{"datastore.mysql.username", "BREEDSCAN_MYSQL_USERNAME", nil},
		{"datastore.mysql.password", "BREEDSCAN_MYSQL_PASSWORD", nil},
		{"datastore.mysql.database", "BREEDSCAN_MYSQL_DATABASE", nil},
		{"datastore.mysql.host", "BREEDSCAN_MYSQL_HOST", nil},
		{"datastore.mysql.port", "BREEDSCAN_MYSQL_PORT", validateEnvPort},

		// Object storage service
		{"storage.url", "STORAGE_URL", validateEnvURL},
		{"storage.servicekey", "STORAGE_SERVICE_KEY", nil},
		{"storage.timeout", "STORAGE_TIMEOUT", validateEnvSeconds},

		// Breed classifier
		{"classifier.endpoint", "CLASSIFIER_ENDPOINT", validateEnvURL},
		{"classifier.apikey", "CLASSIFIER_API_KEY", nil},
		{"classifier.usecache", "CLASSIFIER_USE_CACHE", validateEnvBool},
		{"classifier.timeout", "CLASSIFIER_TIMEOUT", validateEnvSeconds},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be a boolean (true/false)")
	}
	return nil
}

// validateEnvPort validates TCP port environment variables
func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

// validateEnvSeconds validates positive integer second values
func validateEnvSeconds(value string) error {
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 1 {
		return fmt.Errorf("must be a positive number of seconds")
	}
	return nil
}

// validateEnvURL validates URL environment variables
func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}
