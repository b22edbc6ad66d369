// Package conf loads and validates application configuration from a YAML
// config file and environment variables.
package conf

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// WebServerSettings holds the inbound HTTP server configuration.
type WebServerSettings struct {
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// SQLiteSettings holds SQLite datastore configuration.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings holds MySQL datastore configuration.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// DatastoreSettings selects and configures the relational datastore.
type DatastoreSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// StorageSettings configures the object-storage service used for
// bucket downloads of animal images.
type StorageSettings struct {
	URL        string `yaml:"url"`        // base URL of the storage service
	ServiceKey string `yaml:"servicekey"` // service-role credential
	Timeout    int    `yaml:"timeout"`    // request timeout in seconds
}

// ClassifierSettings configures the remote breed classification endpoint.
type ClassifierSettings struct {
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"apikey"`
	UseCache          bool    `yaml:"usecache"`
	Timeout           int     `yaml:"timeout"` // request timeout in seconds
	RequestsPerSecond float64 `yaml:"requestspersecond"`
}

// LogSettings configures optional file logging.
type LogSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Settings is the root configuration for the breedscan service.
type Settings struct {
	Debug      bool               `yaml:"debug"`
	Log        LogSettings        `yaml:"log"`
	WebServer  WebServerSettings  `yaml:"webserver"`
	Datastore  DatastoreSettings  `yaml:"datastore"`
	Storage    StorageSettings    `yaml:"storage"`
	Classifier ClassifierSettings `yaml:"classifier"`
}

// StorageTimeout returns the storage download timeout as a duration.
func (s *Settings) StorageTimeout() time.Duration {
	return time.Duration(s.Storage.Timeout) * time.Second
}

// ClassifierTimeout returns the classifier request timeout as a duration.
func (s *Settings) ClassifierTimeout() time.Duration {
	return time.Duration(s.Classifier.Timeout) * time.Second
}

// Load reads configuration from the config file (if present) and the
// environment, returning validated settings.
func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/breedscan")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine, env vars and defaults apply.
		slog.Debug("no config file found, using defaults and environment")
	}

	if err := bindEnvVars(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("log.enabled", false)
	viper.SetDefault("log.path", "logs/breedscan.log")
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("datastore.sqlite.enabled", true)
	viper.SetDefault("datastore.sqlite.path", "breedscan.db")
	viper.SetDefault("datastore.mysql.enabled", false)
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", "3306")
	viper.SetDefault("storage.timeout", 30)
	viper.SetDefault("classifier.endpoint", "https://serverless.roboflow.com/infer/workflows/innovyom-1s6fe/detect-and-classify")
	viper.SetDefault("classifier.usecache", true)
	// Generous timeout, no retries. Matches the transport behavior the
	// service has always had while making the knob explicit.
	viper.SetDefault("classifier.timeout", 60)
	viper.SetDefault("classifier.requestspersecond", 2)
}
