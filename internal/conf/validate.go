package conf

import (
	"strings"

	"github.com/innovyom/breedscan-go/internal/errors"
)

// ValidateSettings checks the loaded settings for configuration mistakes
// that would otherwise only surface on the first request.
func ValidateSettings(settings *Settings) error {
	var problems []string

	if settings.Datastore.SQLite.Enabled && settings.Datastore.MySQL.Enabled {
		problems = append(problems, "only one of datastore.sqlite and datastore.mysql may be enabled")
	}
	if !settings.Datastore.SQLite.Enabled && !settings.Datastore.MySQL.Enabled {
		problems = append(problems, "one of datastore.sqlite or datastore.mysql must be enabled")
	}
	if settings.Datastore.SQLite.Enabled && settings.Datastore.SQLite.Path == "" {
		problems = append(problems, "datastore.sqlite.path must not be empty")
	}
	if settings.Datastore.MySQL.Enabled {
		if settings.Datastore.MySQL.Username == "" || settings.Datastore.MySQL.Database == "" {
			problems = append(problems, "datastore.mysql requires username and database")
		}
	}

	if settings.Classifier.Endpoint == "" {
		problems = append(problems, "classifier.endpoint must not be empty")
	}
	// The credential must come from configuration, it is never compiled in.
	if settings.Classifier.APIKey == "" {
		problems = append(problems, "classifier.apikey must be set (CLASSIFIER_API_KEY)")
	}

	if settings.Storage.URL != "" && settings.Storage.ServiceKey == "" {
		problems = append(problems, "storage.servicekey must be set when storage.url is configured (STORAGE_SERVICE_KEY)")
	}

	if len(problems) > 0 {
		return errors.Newf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
