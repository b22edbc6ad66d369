package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/innovyom/breedscan-go/internal/errors"
	"github.com/innovyom/breedscan-go/internal/logging"
)

// slowQueryThreshold defines the duration after which a query is
// considered slow by the GORM logger.
const slowQueryThreshold = 1 * time.Second

func dbLogger() *slog.Logger {
	return logging.ForService("datastore")
}

// createGormLogger configures and returns a GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter adapts the structured logger to GORM's Printf-style logger.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	dbLogger().Info(fmt.Sprintf(format, args...))
}

// performAutoMigration migrates the schema for all tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	start := time.Now()

	tables := []struct {
		model any
		name  string
	}{
		{&AnimalRecord{}, "animal_records"},
		{&BreedPrediction{}, "breed_predictions"},
	}

	for _, table := range tables {
		if err := db.AutoMigrate(table.model); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "auto_migrate").
				Context("db_type", dbType).
				Context("table", table.name).
				Build()
		}
	}

	if debug {
		dbLogger().Debug("database migration completed",
			"db_type", dbType,
			"tables", len(tables),
			"duration_ms", time.Since(start).Milliseconds())
	}

	return nil
}
